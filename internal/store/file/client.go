package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"globalsearch/internal/store"
)

var _ store.ArtifactWriter = (*Client)(nil)

const (
	EntitiesFile = "entities.jsonl"
	ReportsFile  = "community_reports.jsonl"

	EntitiesParquetFile = "entities.parquet"
	ReportsParquetFile  = "communities_reports.parquet"

	maxLineBytes = 16 * 1024 * 1024
)

// Client reads and writes artifacts inside one directory. Reads prefer the
// parquet tables an indexing pipeline emits and fall back to JSON Lines;
// writes always produce JSON Lines.
type Client struct {
	dir string
}

func New(dir string) (*Client, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("artifacts directory is required")
	}
	return &Client{dir: dir}, nil
}

// ParseDSN accepts file://<dir>.
func ParseDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "file://") {
		return "", fmt.Errorf("invalid file DSN scheme, expected file://")
	}
	dir := strings.TrimPrefix(dsn, "file://")
	if dir == "" {
		return "", fmt.Errorf("file DSN has no directory")
	}
	return dir, nil
}

func (c *Client) Dir() string {
	return c.dir
}

func (c *Client) Close(ctx context.Context) error {
	return nil
}

func (c *Client) EnsureSchema(ctx context.Context) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating artifacts directory: %w", err)
	}
	return nil
}

func (c *Client) ReadEntities(ctx context.Context) ([]store.EntityRecord, error) {
	var entities []store.EntityRecord
	err := c.readTable(ctx, store.TableEntities, EntitiesFile, EntitiesParquetFile, func(row map[string]any) error {
		entity, err := entityFromRow(row)
		if err != nil {
			return err
		}
		entities = append(entities, entity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func (c *Client) ReadReports(ctx context.Context) ([]store.ReportRecord, error) {
	var reports []store.ReportRecord
	err := c.readTable(ctx, store.TableReports, ReportsFile, ReportsParquetFile, func(row map[string]any) error {
		report, err := reportFromRow(row)
		if err != nil {
			return err
		}
		reports = append(reports, report)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (c *Client) readTable(ctx context.Context, table, name, parquetName string, handle func(map[string]any) error) error {
	parquetPath := filepath.Join(c.dir, parquetName)
	if _, err := os.Stat(parquetPath); err == nil {
		return readParquet(ctx, table, parquetPath, handle)
	}

	path := filepath.Join(c.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.LoadError(table, fmt.Errorf("%w: %s", store.ErrMissingTable, path))
		}
		return store.LoadError(table, fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		decoder := json.NewDecoder(strings.NewReader(line))
		decoder.UseNumber()
		var row map[string]any
		if err := decoder.Decode(&row); err != nil {
			return store.LoadError(table, fmt.Errorf("%w: %s line %d: %v", store.ErrMalformedRow, name, lineNo, err))
		}
		if err := store.CheckColumns(table, keys(row)); err != nil {
			return store.LoadError(table, fmt.Errorf("%s line %d: %w", name, lineNo, errors.Unwrap(err)))
		}
		if err := handle(row); err != nil {
			return store.LoadError(table, fmt.Errorf("%w: %s line %d: %v", store.ErrMalformedRow, name, lineNo, err))
		}
	}
	if err := scanner.Err(); err != nil {
		return store.LoadError(table, fmt.Errorf("reading %s: %w", path, err))
	}
	return nil
}

func (c *Client) WriteEntities(ctx context.Context, entities []store.EntityRecord) error {
	rows := make([]any, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, entityRow{
			ID:          e.ID,
			Title:       e.Title,
			Type:        e.Type,
			Description: e.Description,
			Communities: store.CommunityIDStrings(e.Communities),
			TextUnitIDs: nonNil(e.TextUnitIDs),
			Degree:      e.Degree,
		})
	}
	return c.writeTable(EntitiesFile, rows)
}

func (c *Client) WriteReports(ctx context.Context, reports []store.ReportRecord) error {
	rows := make([]any, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, reportRow{
			CommunityID: string(r.CommunityID),
			Level:       r.Level,
			Title:       r.Title,
			Summary:     r.Summary,
			Rating:      r.Rating,
			Content:     r.Content,
		})
	}
	return c.writeTable(ReportsFile, rows)
}

func (c *Client) writeTable(name string, rows []any) error {
	path := filepath.Join(c.dir, name)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}

	w := bufio.NewWriter(f)
	encoder := json.NewEncoder(w)
	for _, row := range rows {
		if err := encoder.Encode(row); err != nil {
			f.Close()
			return fmt.Errorf("encoding %s row: %w", name, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

type entityRow struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Communities []string `json:"communities"`
	TextUnitIDs []string `json:"text_unit_ids"`
	Degree      int      `json:"degree"`
}

type reportRow struct {
	CommunityID string  `json:"community_id"`
	Level       int     `json:"level"`
	Title       string  `json:"title"`
	Summary     string  `json:"summary"`
	Rating      float64 `json:"rating"`
	Content     string  `json:"content"`
}

func entityFromRow(row map[string]any) (store.EntityRecord, error) {
	id, err := store.ParseCommunityID(normalizeNumber(row["id"]))
	if err != nil {
		return store.EntityRecord{}, fmt.Errorf("id: %w", err)
	}
	communities, err := toCommunityIDs(row["communities"])
	if err != nil {
		return store.EntityRecord{}, fmt.Errorf("communities: %w", err)
	}
	textUnits, err := toStringSlice(row["text_unit_ids"])
	if err != nil {
		return store.EntityRecord{}, fmt.Errorf("text_unit_ids: %w", err)
	}
	degree, _, err := toFloat(row["degree"])
	if err != nil {
		return store.EntityRecord{}, fmt.Errorf("degree: %w", err)
	}
	if err := checkInt("degree", degree); err != nil {
		return store.EntityRecord{}, err
	}
	return store.EntityRecord{
		ID:          string(id),
		Title:       toString(row["title"]),
		Type:        toString(row["type"]),
		Description: toString(row["description"]),
		Communities: communities,
		TextUnitIDs: textUnits,
		Degree:      int(degree),
	}, nil
}

func reportFromRow(row map[string]any) (store.ReportRecord, error) {
	id, err := store.ParseCommunityID(normalizeNumber(row["community_id"]))
	if err != nil {
		return store.ReportRecord{}, err
	}
	level, ok, err := toFloat(row["level"])
	if err != nil || !ok {
		return store.ReportRecord{}, fmt.Errorf("level must be a number")
	}
	if err := checkInt("level", level); err != nil {
		return store.ReportRecord{}, err
	}
	rating, _, err := toFloat(row["rating"])
	if err != nil {
		return store.ReportRecord{}, fmt.Errorf("rating: %w", err)
	}
	return store.ReportRecord{
		CommunityID: id,
		Level:       int(level),
		Title:       toString(row["title"]),
		Summary:     toString(row["summary"]),
		Rating:      rating,
		Content:     toString(row["content"]),
	}, nil
}

// checkInt rejects values that would not survive conversion to int.
func checkInt(name string, value float64) error {
	if value != math.Trunc(value) {
		return fmt.Errorf("%s %v is not an integer", name, value)
	}
	if value < math.MinInt32 || value > math.MaxInt32 {
		return fmt.Errorf("%s %v is out of range", name, value)
	}
	return nil
}

func toCommunityIDs(value any) ([]store.CommunityID, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		ids := make([]store.CommunityID, 0, len(v))
		for _, item := range v {
			id, err := store.ParseCommunityID(normalizeNumber(item))
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		id, err := store.ParseCommunityID(normalizeNumber(v))
		if err != nil {
			return nil, err
		}
		return []store.CommunityID{id}, nil
	}
}

func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", value)
	}
}

func toFloat(value any) (float64, bool, error) {
	switch v := value.(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, err
		}
		return f, true, nil
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case int32:
		return float64(v), true, nil
	default:
		return 0, false, fmt.Errorf("expected number, got %T", value)
	}
}

func normalizeNumber(value any) any {
	if n, ok := value.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return value
}

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func keys(row map[string]any) []string {
	out := make([]string, 0, len(row))
	for key := range row {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
