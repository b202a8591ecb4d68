// Package sqlite is a gorm-backed Store over a pure Go SQLite driver, for
// single-host deployments and tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/store"
)

type Store struct {
	db     *gorm.DB
	clock  clock.Clock
	logger logger.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at dsn and migrates the
// schema. dsn is a file path or a "file:" URI.
func Open(ctx context.Context, dsn string, c clock.Clock, log logger.Logger) (*Store, error) {
	if c == nil {
		c = clock.Real()
	}
	if log == nil {
		log = logger.NewNop()
	}
	if err := ensureDirectory(dsn); err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// one writer at a time; also keeps an in-memory database alive
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&queryRow{}, &tenderRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	log.Info("sqlite store opened", logger.String("dsn", dsn))
	return &Store{db: db, clock: c, logger: log}, nil
}

func ensureDirectory(dsn string) error {
	path := strings.TrimSpace(dsn)
	if path == "" || path == ":memory:" || strings.Contains(path, "mode=memory") {
		return nil
	}
	path = strings.TrimPrefix(path, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite directory %q: %w", dir, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ─────────────────────────────────────────────────────────────────
// Tenders
// ─────────────────────────────────────────────────────────────────

func (s *Store) BatchInsert(ctx context.Context, tenders []*domain.Tender) (int, error) {
	if len(tenders) == 0 {
		return 0, nil
	}
	now := s.clock.Now().UTC()

	type inserted struct {
		tender *domain.Tender
		id     int64
	}
	var done []inserted

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tenders {
			row := toTenderRow(t, now)
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoNothing: true,
			}).Create(&row)
			if res.Error != nil {
				return fmt.Errorf("insert tender %s: %w", t.ExternalID, res.Error)
			}
			if res.RowsAffected == 1 {
				done = append(done, inserted{tender: t, id: row.ID})
			}
		}
		return nil
	})
	if err != nil {
		return 0, &domain.StoreError{Op: "batch insert", Err: err}
	}

	// ids are only handed out once the transaction has committed
	for _, d := range done {
		d.tender.ID = d.id
		d.tender.SavedAt = now
	}
	return len(done), nil
}

func (s *Store) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&tenderRow{}).Where("external_id = ?", externalID).Count(&n).Error
	if err != nil {
		return false, &domain.StoreError{Op: "exists", Err: err}
	}
	return n > 0, nil
}

func (s *Store) ListExpired(ctx context.Context, cutoff time.Time) ([]*domain.Tender, error) {
	var views []tenderView
	err := s.views(ctx).
		Where("tenders.deadline IS NOT NULL AND tenders.deadline < ?", formatTime(cutoff)).
		Order("tenders.deadline ASC, tenders.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, &domain.StoreError{Op: "list expired", Err: err}
	}
	return toTenders(views), nil
}

// deleteChunkSize keeps each DELETE below SQLite's bound variable limit
// (32766 by default).
const deleteChunkSize = 10000

func (s *Store) DeleteTenders(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(ids); start += deleteChunkSize {
			end := min(start+deleteChunkSize, len(ids))
			res := tx.Where("id IN ?", ids[start:end]).Delete(&tenderRow{})
			if res.Error != nil {
				return res.Error
			}
			deleted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, &domain.StoreError{Op: "delete tenders", Err: err}
	}
	return int(deleted), nil
}

func (s *Store) GetTender(ctx context.Context, id int64) (*domain.Tender, error) {
	var views []tenderView
	if err := s.views(ctx).Where("tenders.id = ?", id).Limit(1).Scan(&views).Error; err != nil {
		return nil, &domain.StoreError{Op: "get tender", Err: err}
	}
	if len(views) == 0 {
		return nil, domain.ErrNotFound
	}
	return views[0].toDomain(), nil
}

func (s *Store) ListTenders(ctx context.Context, f domain.TenderFilter) (*domain.TenderPage, error) {
	f = f.Normalize()

	var total int64
	if err := s.filtered(s.db.WithContext(ctx).Model(&tenderRow{}), f).Count(&total).Error; err != nil {
		return nil, &domain.StoreError{Op: "count tenders", Err: err}
	}

	var views []tenderView
	err := s.filtered(s.views(ctx), f).
		Order(orderBy(f)).
		Limit(f.PageSize).
		Offset(f.Offset()).
		Scan(&views).Error
	if err != nil {
		return nil, &domain.StoreError{Op: "list tenders", Err: err}
	}
	return domain.NewTenderPage(toTenders(views), int(total), f), nil
}

func (s *Store) CountTenders(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&tenderRow{}).Count(&n).Error; err != nil {
		return 0, &domain.StoreError{Op: "count tenders", Err: err}
	}
	return int(n), nil
}

func (s *Store) Stats(ctx context.Context, now time.Time) (*domain.TenderStats, error) {
	var total, expired int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&tenderRow{}).Count(&total).Error; err != nil {
		return nil, &domain.StoreError{Op: "stats", Err: err}
	}
	err := db.Model(&tenderRow{}).
		Where("deadline IS NOT NULL AND deadline <= ?", formatTime(now)).
		Count(&expired).Error
	if err != nil {
		return nil, &domain.StoreError{Op: "stats", Err: err}
	}
	return &domain.TenderStats{
		Total:       int(total),
		Expired:     int(expired),
		Active:      int(total - expired),
		LastUpdated: now.UTC(),
	}, nil
}

func (s *Store) views(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("tenders").
		Select("tenders.*, saved_queries.keyword AS query_keyword").
		Joins("LEFT JOIN saved_queries ON saved_queries.id = tenders.query_id")
}

func (s *Store) filtered(db *gorm.DB, f domain.TenderFilter) *gorm.DB {
	if !f.ShowExpired {
		db = db.Where("(tenders.deadline IS NULL OR tenders.deadline > ?)", formatTime(f.Now))
	}
	if f.QueryID != nil {
		db = db.Where("tenders.query_id = ?", *f.QueryID)
	}
	if f.SavedFrom != nil {
		db = db.Where("tenders.saved_at >= ?", formatTime(*f.SavedFrom))
	}
	if f.SavedTo != nil {
		db = db.Where("tenders.saved_at <= ?", formatTime(*f.SavedTo))
	}
	if f.DeadlineFrom != nil {
		db = db.Where("tenders.deadline >= ?", formatTime(*f.DeadlineFrom))
	}
	if f.DeadlineTo != nil {
		db = db.Where("tenders.deadline <= ?", formatTime(*f.DeadlineTo))
	}
	if f.Search != "" {
		like := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		db = db.Where(`(LOWER(tenders.title) LIKE ? ESCAPE '\'
			OR LOWER(tenders.purchase_number) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(tenders.customer_name, '')) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(tenders.additional_info, '')) LIKE ? ESCAPE '\')`,
			like, like, like, like)
	}
	return db
}

var sortColumns = map[string]string{
	domain.SortSavedAt:     "tenders.saved_at",
	domain.SortPublishDate: "tenders.publish_date",
	domain.SortTitle:       "LOWER(tenders.title)",
	domain.SortDeadline:    "tenders.deadline",
	domain.SortMaxPrice:    "CAST(tenders.max_price AS REAL)",
}

// orderBy puts missing values last in either direction and breaks ties
// by id.
func orderBy(f domain.TenderFilter) string {
	col := sortColumns[f.SortBy]
	dir := "ASC"
	if f.SortDescending {
		dir = "DESC"
	}
	return fmt.Sprintf("%s IS NULL, %s %s, tenders.id ASC", col, col, dir)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func toTenders(views []tenderView) []*domain.Tender {
	out := make([]*domain.Tender, 0, len(views))
	for _, v := range views {
		out = append(out, v.toDomain())
	}
	return out
}

// ─────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────

func (s *Store) ListQueries(ctx context.Context) ([]*domain.SavedQuery, error) {
	var rows []queryRow
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, &domain.StoreError{Op: "list queries", Err: err}
	}
	return toQueries(rows), nil
}

func (s *Store) ListActiveQueries(ctx context.Context) ([]*domain.SavedQuery, error) {
	var rows []queryRow
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("keyword ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, &domain.StoreError{Op: "list active queries", Err: err}
	}
	return toQueries(rows), nil
}

func (s *Store) GetQuery(ctx context.Context, id int64) (*domain.SavedQuery, error) {
	row, err := s.getQueryRow(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *Store) getQueryRow(db *gorm.DB, id int64) (*queryRow, error) {
	var row queryRow
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.StoreError{Op: "get query", Err: err}
	}
	return &row, nil
}

func (s *Store) CreateQuery(ctx context.Context, q *domain.SavedQuery) (*domain.SavedQuery, error) {
	if err := domain.ValidateKeyword(q.Keyword); err != nil {
		return nil, err
	}
	row := queryRow{
		Keyword:   q.Keyword,
		Category:  q.Category,
		IsActive:  q.Active,
		CreatedAt: formatTime(s.clock.Now()),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, &domain.StoreError{Op: "create query", Err: err}
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateQuery(ctx context.Context, id int64, patch domain.QueryPatch) (*domain.SavedQuery, error) {
	if patch.Keyword != nil {
		if err := domain.ValidateKeyword(*patch.Keyword); err != nil {
			return nil, err
		}
	}

	var out *domain.SavedQuery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.getQueryRow(tx, id)
		if err != nil {
			return err
		}
		q := row.toDomain()
		patch.Apply(q)

		err = tx.Model(&queryRow{}).Where("id = ?", id).Updates(map[string]any{
			"keyword":   q.Keyword,
			"category":  q.Category,
			"is_active": q.Active,
		}).Error
		if err != nil {
			return &domain.StoreError{Op: "update query", Err: err}
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteQuery(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.getQueryRow(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&tenderRow{}).Where("query_id = ?", id).Update("query_id", nil).Error; err != nil {
			return &domain.StoreError{Op: "delete query", Err: err}
		}
		if err := tx.Where("id = ?", id).Delete(&queryRow{}).Error; err != nil {
			return &domain.StoreError{Op: "delete query", Err: err}
		}
		return nil
	})
}

func toQueries(rows []queryRow) []*domain.SavedQuery {
	out := make([]*domain.SavedQuery, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
