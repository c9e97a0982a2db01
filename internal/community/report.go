// Package community turns raw community report rows into weighted, level
// filtered reports ready for the map phase of a global search.
package community

import "globalsearch/internal/store"

// Report is the query-time view of one community report. Reports are built
// once per search and are not modified afterwards.
type Report struct {
	ID      store.CommunityID
	Level   int
	Weight  float64
	Title   string
	Summary string
	Rank    float64
	Content string
}
