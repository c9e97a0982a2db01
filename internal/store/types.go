package store

import (
	"fmt"
	"strconv"
	"strings"
)

// CommunityID names one community within the hierarchy. Integer ids from
// upstream are carried in base-10 form.
type CommunityID string

type EntityRecord struct {
	ID          string
	Title       string
	Type        string
	Description string
	Communities []CommunityID
	TextUnitIDs []string
	Degree      int
}

type ReportRecord struct {
	CommunityID CommunityID
	Level       int
	Title       string
	Summary     string
	Rating      float64
	Content     string
}

var (
	entityColumns = []string{"id", "communities"}
	reportColumns = []string{"community_id", "level", "title", "summary", "rating", "content"}
)

// RequiredColumns returns the columns a table must carry to be loadable.
func RequiredColumns(table string) []string {
	switch table {
	case TableEntities:
		return append([]string{}, entityColumns...)
	case TableReports:
		return append([]string{}, reportColumns...)
	}
	return nil
}

// ParseCommunityID accepts the shapes community ids take in upstream tables:
// strings, integers, and integral floats (JSON numbers).
func ParseCommunityID(value any) (CommunityID, error) {
	switch v := value.(type) {
	case string:
		return CommunityID(strings.TrimSpace(v)), nil
	case CommunityID:
		return v, nil
	case int:
		return CommunityID(strconv.Itoa(v)), nil
	case int64:
		return CommunityID(strconv.FormatInt(v, 10)), nil
	case float64:
		if v != float64(int64(v)) {
			return "", fmt.Errorf("community id %v is not integral", v)
		}
		return CommunityID(strconv.FormatInt(int64(v), 10)), nil
	case nil:
		return "", fmt.Errorf("community id is null")
	default:
		return "", fmt.Errorf("unsupported community id type %T", value)
	}
}

func CommunityIDsFromStrings(values []string) []CommunityID {
	ids := make([]CommunityID, 0, len(values))
	for _, value := range values {
		ids = append(ids, CommunityID(value))
	}
	return ids
}

func CommunityIDStrings(ids []CommunityID) []string {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, string(id))
	}
	return values
}
