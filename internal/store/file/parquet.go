package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"globalsearch/internal/store"
)

const parquetBatchSize = 128

// readParquet decodes every row of a parquet table into the same generic
// row shape the JSON Lines reader produces, in file order. Column types are
// taken from the file schema so integer and string community ids both load.
func readParquet(ctx context.Context, table, path string, handle func(map[string]any) error) error {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return store.LoadError(table, fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return store.LoadError(table, fmt.Errorf("stat %s: %w", path, err))
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return store.LoadError(table, fmt.Errorf("%w: %s: %v", store.ErrMalformedRow, name, err))
	}

	schema := pf.Schema()
	columns := make([]string, 0, len(schema.Fields()))
	repeated := make(map[string]bool)
	for _, field := range schema.Fields() {
		columns = append(columns, field.Name())
		repeated[field.Name()] = field.Repeated() || !field.Leaf()
	}
	if err := store.CheckColumns(table, columns); err != nil {
		return store.LoadError(table, fmt.Errorf("%s: %w", name, errors.Unwrap(err)))
	}

	// Leaf column index to top-level field name.
	leaves := schema.Columns()
	owners := make([]string, len(leaves))
	for i, path := range leaves {
		if len(path) > 0 {
			owners[i] = path[0]
		}
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	batch := make([]parquet.Row, parquetBatchSize)
	rowNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := reader.ReadRows(batch)
		for _, row := range batch[:n] {
			rowNo++
			decoded := decodeParquetRow(row, columns, owners, repeated)
			if err := handle(decoded); err != nil {
				return store.LoadError(table, fmt.Errorf("%w: %s row %d: %v", store.ErrMalformedRow, name, rowNo, err))
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return store.LoadError(table, fmt.Errorf("reading %s: %w", path, readErr))
		}
	}
}

func decodeParquetRow(row parquet.Row, columns, owners []string, repeated map[string]bool) map[string]any {
	out := make(map[string]any, len(columns))
	for _, column := range columns {
		if repeated[column] {
			out[column] = []any{}
		} else {
			out[column] = nil
		}
	}
	for _, value := range row {
		column := value.Column()
		if column < 0 || column >= len(owners) {
			continue
		}
		owner := owners[column]
		if value.IsNull() {
			continue
		}
		decoded := parquetValue(value)
		if repeated[owner] {
			out[owner] = append(out[owner].([]any), decoded)
			continue
		}
		out[owner] = decoded
	}
	return out
}

func parquetValue(value parquet.Value) any {
	switch value.Kind() {
	case parquet.Boolean:
		return value.Boolean()
	case parquet.Int32:
		return int64(value.Int32())
	case parquet.Int64:
		return value.Int64()
	case parquet.Float:
		return float64(value.Float())
	case parquet.Double:
		return value.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(value.ByteArray())
	default:
		return nil
	}
}
