package store

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTable  = errors.New("artifact table not found")
	ErrMissingColumn = errors.New("required column missing")
	ErrMalformedRow  = errors.New("malformed row")
)

// ArtifactLoadError reports that one of the artifact tables could not be read.
// It is never retried.
type ArtifactLoadError struct {
	Table string
	Err   error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("loading %s artifact: %v", e.Table, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

func LoadError(table string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ArtifactLoadError
	if errors.As(err, &existing) {
		return err
	}
	return &ArtifactLoadError{Table: table, Err: err}
}

// CheckColumns returns an ArtifactLoadError wrapping ErrMissingColumn for the
// first required column absent from present.
func CheckColumns(table string, present []string) error {
	seen := make(map[string]struct{}, len(present))
	for _, column := range present {
		seen[column] = struct{}{}
	}
	for _, column := range RequiredColumns(table) {
		if _, ok := seen[column]; !ok {
			return &ArtifactLoadError{Table: table, Err: fmt.Errorf("%w: %s", ErrMissingColumn, column)}
		}
	}
	return nil
}
