package seed

import (
	"strings"

	"github.com/MrSnakeDoc/tenders/internal/domain"
)

// Map flattens a seed file into saved queries. Blank keywords are skipped
// and a keyword repeated across categories keeps its first occurrence.
// Entries default to active.
func Map(file File) []*domain.SavedQuery {
	var queries []*domain.SavedQuery
	seen := make(map[string]bool)

	for _, group := range file {
		for category, entries := range group {
			for _, e := range entries {
				keyword := strings.TrimSpace(e.Keyword)
				if keyword == "" {
					continue
				}

				key := NormalizeKeyword(keyword)
				if seen[key] {
					continue
				}
				seen[key] = true

				q := &domain.SavedQuery{Keyword: keyword, Active: true}
				if e.Active != nil {
					q.Active = *e.Active
				}
				if c := strings.TrimSpace(category); c != "" {
					q.Category = &c
				}
				queries = append(queries, q)
			}
		}
	}

	return queries
}

// NormalizeKeyword is the identity used to match seeded keywords against
// the catalog.
func NormalizeKeyword(keyword string) string {
	return strings.ToLower(strings.Join(strings.Fields(keyword), " "))
}
