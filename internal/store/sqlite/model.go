package sqlite

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/tenders/internal/domain"
)

// Times are stored as fixed-width UTC text so that string comparison in
// SQL is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type tenderRow struct {
	ID             int64   `gorm:"column:id;primaryKey;autoIncrement"`
	ExternalID     string  `gorm:"column:external_id;type:text;not null;uniqueIndex"`
	PurchaseNumber string  `gorm:"column:purchase_number;type:text;not null"`
	Title          string  `gorm:"column:title;type:text;not null"`
	CustomerName   *string `gorm:"column:customer_name;type:text"`
	CustomerINN    *string `gorm:"column:customer_inn;type:text"`
	Region         *string `gorm:"column:region;type:text"`
	MaxPrice       *string `gorm:"column:max_price;type:text"`
	AdditionalInfo *string `gorm:"column:additional_info;type:text"`
	SourceURL      *string `gorm:"column:source_url;type:text"`
	PublishDate    *string `gorm:"column:publish_date;type:text"`
	Deadline       *string `gorm:"column:deadline;type:text;index"`
	SavedAt        string  `gorm:"column:saved_at;type:text;not null;index"`
	QueryID        *int64  `gorm:"column:query_id;index"`
}

func (tenderRow) TableName() string {
	return "tenders"
}

// tenderView is a tender row with the originating query keyword joined in.
type tenderView struct {
	tenderRow
	QueryKeyword *string `gorm:"column:query_keyword"`
}

type queryRow struct {
	ID        int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Keyword   string  `gorm:"column:keyword;type:text;not null"`
	Category  *string `gorm:"column:category;type:text"`
	IsActive  bool    `gorm:"column:is_active;not null"`
	CreatedAt string  `gorm:"column:created_at;type:text;not null"`
}

func (queryRow) TableName() string {
	return "saved_queries"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseTime(*s)
	return &t
}

func toTenderRow(t *domain.Tender, savedAt time.Time) tenderRow {
	row := tenderRow{
		ExternalID:     t.ExternalID,
		PurchaseNumber: t.PurchaseNumber,
		Title:          t.Title,
		CustomerName:   t.CustomerName,
		CustomerINN:    t.CustomerINN,
		Region:         t.Region,
		AdditionalInfo: t.AdditionalInfo,
		SourceURL:      t.SourceURL,
		PublishDate:    formatTimePtr(t.PublishDate),
		Deadline:       formatTimePtr(t.Deadline),
		SavedAt:        formatTime(savedAt),
		QueryID:        t.QueryID,
	}
	if t.MaxPrice != nil {
		p := t.MaxPrice.String()
		row.MaxPrice = &p
	}
	return row
}

func (v tenderView) toDomain() *domain.Tender {
	t := &domain.Tender{
		ID:             v.ID,
		ExternalID:     v.ExternalID,
		PurchaseNumber: v.PurchaseNumber,
		Title:          v.Title,
		CustomerName:   v.CustomerName,
		CustomerINN:    v.CustomerINN,
		Region:         v.Region,
		AdditionalInfo: v.AdditionalInfo,
		SourceURL:      v.SourceURL,
		PublishDate:    parseTimePtr(v.PublishDate),
		Deadline:       parseTimePtr(v.Deadline),
		SavedAt:        parseTime(v.SavedAt),
		QueryID:        v.QueryID,
		QueryKeyword:   v.QueryKeyword,
	}
	if v.MaxPrice != nil {
		if d, err := decimal.NewFromString(*v.MaxPrice); err == nil {
			t.MaxPrice = &d
		}
	}
	return t
}

func (r queryRow) toDomain() *domain.SavedQuery {
	return &domain.SavedQuery{
		ID:        r.ID,
		Keyword:   r.Keyword,
		Category:  r.Category,
		Active:    r.IsActive,
		CreatedAt: parseTime(r.CreatedAt),
	}
}
