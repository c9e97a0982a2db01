// Package ingest copies indexing artifacts from one store into another.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"globalsearch/internal/logger"
	"globalsearch/internal/store"
	"globalsearch/internal/validate"
)

var ErrValidationFailed = errors.New("artifacts failed validation")

type Options struct {
	SkipValidate bool
	// Force rewrites the destination even when it already holds the same
	// artifacts.
	Force        bool
	Logger       *logger.Logger
}

type Result struct {
	EntitiesWritten int
	ReportsWritten  int
	Unchanged       bool
	Fingerprint     string
	Validation      *validate.Report
}

func Run(ctx context.Context, source store.ArtifactReader, dest store.ArtifactWriter, options Options) (*Result, error) {
	log := options.Logger
	if log == nil {
		log = logger.NewNop()
	}

	snap, err := store.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("reading source artifacts: %w", err)
	}
	log.Debug("source artifacts loaded", "entities", len(snap.Entities), "reports", len(snap.Reports))

	result := &Result{}
	if !options.SkipValidate {
		result.Validation = validate.Check(snap)
		if result.Validation.HasErrors() {
			return result, fmt.Errorf("%w: %d error(s)", ErrValidationFailed, result.Validation.Count(validate.SeverityError))
		}
	}

	result.Fingerprint, err = fingerprint(snap.Entities, snap.Reports)
	if err != nil {
		return nil, err
	}

	if err := dest.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if !options.Force {
		if existing, ok := existingFingerprint(ctx, dest); ok && existing == result.Fingerprint {
			log.Info("destination already up to date", "fingerprint", result.Fingerprint)
			result.Unchanged = true
			return result, nil
		}
	}

	// Reports go first: graph stores link entities to existing community nodes.
	if err := dest.WriteReports(ctx, snap.Reports); err != nil {
		return nil, fmt.Errorf("writing reports: %w", err)
	}
	result.ReportsWritten = len(snap.Reports)

	if err := dest.WriteEntities(ctx, snap.Entities); err != nil {
		return nil, fmt.Errorf("writing entities: %w", err)
	}
	result.EntitiesWritten = len(snap.Entities)

	log.Info("artifacts ingested",
		"entities", result.EntitiesWritten,
		"reports", result.ReportsWritten,
		"fingerprint", result.Fingerprint,
	)
	return result, nil
}

func existingFingerprint(ctx context.Context, dest store.ArtifactReader) (string, bool) {
	entities, err := dest.ReadEntities(ctx)
	if err != nil {
		return "", false
	}
	reports, err := dest.ReadReports(ctx)
	if err != nil {
		return "", false
	}
	sum, err := fingerprint(entities, reports)
	if err != nil {
		return "", false
	}
	return sum, true
}

// fingerprint hashes both tables in row order. Nil and empty slices hash
// the same.
func fingerprint(entities []store.EntityRecord, reports []store.ReportRecord) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, e := range entities {
		if e.Communities == nil {
			e.Communities = []store.CommunityID{}
		}
		if e.TextUnitIDs == nil {
			e.TextUnitIDs = []string{}
		}
		if err := enc.Encode(e); err != nil {
			return "", fmt.Errorf("hashing entity %s: %w", e.ID, err)
		}
	}
	h.Write([]byte{0})
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("hashing report %s: %w", r.CommunityID, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
