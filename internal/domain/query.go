package domain

import (
	"strings"
	"time"
)

// SavedQuery is a persisted search intent polled by the search scheduler.
type SavedQuery struct {
	ID        int64     `json:"id"`
	Keyword   string    `json:"keyword"`
	Category  *string   `json:"category,omitempty"`
	Active    bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// QueryPatch is a partial update; nil fields are left untouched.
type QueryPatch struct {
	Keyword  *string `json:"keyword,omitempty"`
	Category *string `json:"category,omitempty"`
	Active   *bool   `json:"isActive,omitempty"`
}

// Apply mutates q with the non-nil fields of p.
func (p QueryPatch) Apply(q *SavedQuery) {
	if p.Keyword != nil {
		q.Keyword = *p.Keyword
	}
	if p.Category != nil {
		q.Category = p.Category
	}
	if p.Active != nil {
		q.Active = *p.Active
	}
}

// ValidateKeyword rejects blank keywords at the catalog boundary.
func ValidateKeyword(keyword string) error {
	if strings.TrimSpace(keyword) == "" {
		return &ValidationError{Field: "keyword", Msg: "keyword is required"}
	}
	return nil
}
