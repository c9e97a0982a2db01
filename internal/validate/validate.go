package validate

import (
	"context"
	"fmt"
	"math"
	"strings"

	"globalsearch/internal/store"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeDuplicateCommunity = "duplicate_community_id"
	codeEmptyCommunity     = "empty_community_id"
	codeNegativeLevel      = "negative_level"
	codeInvalidRating      = "invalid_rating"
	codeEmptyContent       = "empty_report_content"
	codeUnknownCommunity   = "unknown_community"
	codeEmptyCommunityRef  = "community_without_entities"
)

type Issue struct {
	Severity    Severity
	Code        string
	Message     string
	Table       string
	CommunityID store.CommunityID
	EntityID    string
}

type Report struct {
	Issues []Issue
}

func (r *Report) HasErrors() bool {
	return r.Count(SeverityError) > 0
}

func (r *Report) Count(severity Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// Run loads both artifact tables from reader and checks them for
// consistency. Load failures are returned as errors, not issues.
func Run(ctx context.Context, reader store.ArtifactReader) (*Report, error) {
	if reader == nil {
		return nil, fmt.Errorf("artifact reader is required")
	}
	snap, err := store.Load(ctx, reader)
	if err != nil {
		return nil, err
	}
	return Check(snap), nil
}

// Check runs every consistency rule over an already loaded snapshot.
func Check(snap *store.Snapshot) *Report {
	issues := make([]Issue, 0)

	known := make(map[store.CommunityID]struct{}, len(snap.Reports))
	seen := make(map[store.CommunityID]int, len(snap.Reports))
	for _, row := range snap.Reports {
		issues = append(issues, checkReport(row)...)
		if strings.TrimSpace(string(row.CommunityID)) == "" {
			continue
		}
		known[row.CommunityID] = struct{}{}
		seen[row.CommunityID]++
		if seen[row.CommunityID] == 2 {
			issues = append(issues, Issue{
				Severity:    SeverityError,
				Code:        codeDuplicateCommunity,
				Message:     fmt.Sprintf("community %s appears more than once in the reports table", row.CommunityID),
				Table:       store.TableReports,
				CommunityID: row.CommunityID,
			})
		}
	}

	members := make(map[store.CommunityID]int, len(known))
	for _, entity := range snap.Entities {
		for _, id := range entity.Communities {
			if _, ok := known[id]; !ok {
				issues = append(issues, Issue{
					Severity:    SeverityWarn,
					Code:        codeUnknownCommunity,
					Message:     fmt.Sprintf("entity %s references community %s which has no report", entity.ID, id),
					Table:       store.TableEntities,
					CommunityID: id,
					EntityID:    entity.ID,
				})
				continue
			}
			members[id]++
		}
	}

	for _, row := range snap.Reports {
		if _, ok := known[row.CommunityID]; !ok || members[row.CommunityID] > 0 {
			continue
		}
		// Report once per id even when the id is duplicated.
		members[row.CommunityID] = -1
		issues = append(issues, Issue{
			Severity:    SeverityWarn,
			Code:        codeEmptyCommunityRef,
			Message:     fmt.Sprintf("community %s has no member entities and will weigh 0", row.CommunityID),
			Table:       store.TableReports,
			CommunityID: row.CommunityID,
		})
	}

	return &Report{Issues: issues}
}

func checkReport(row store.ReportRecord) []Issue {
	var issues []Issue
	add := func(severity Severity, code, message string) {
		issues = append(issues, Issue{
			Severity:    severity,
			Code:        code,
			Message:     message,
			Table:       store.TableReports,
			CommunityID: row.CommunityID,
		})
	}

	if strings.TrimSpace(string(row.CommunityID)) == "" {
		add(SeverityError, codeEmptyCommunity, "report has an empty community id")
	}
	if row.Level < 0 {
		add(SeverityError, codeNegativeLevel, fmt.Sprintf("community %s has negative level %d", row.CommunityID, row.Level))
	}
	if math.IsNaN(row.Rating) || math.IsInf(row.Rating, 0) {
		add(SeverityError, codeInvalidRating, fmt.Sprintf("community %s has a non-finite rating", row.CommunityID))
	}
	if strings.TrimSpace(row.Content) == "" {
		add(SeverityWarn, codeEmptyContent, fmt.Sprintf("community %s has empty report content", row.CommunityID))
	}
	return issues
}
