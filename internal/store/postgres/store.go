// Package postgres is the production Store, backed by a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/store"
)

type Store struct {
	pool   *pgxpool.Pool
	clock  clock.Clock
	logger logger.Logger
}

var _ store.Store = (*Store)(nil)

// Connect opens a pool, verifies it and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string, c clock.Clock, log logger.Logger) (*Store, error) {
	if c == nil {
		c = clock.Real()
	}
	if log == nil {
		log = logger.NewNop()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	s := &Store{pool: pool, clock: c, logger: log}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("postgres store connected")
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const tenderColumns = `t.id, t.external_id, t.purchase_number, t.title, t.customer_name,
	t.customer_inn, t.region, t.max_price::text, t.additional_info, t.source_url,
	t.publish_date, t.deadline, t.saved_at, t.query_id, q.keyword`

const tenderFrom = ` FROM tenders t LEFT JOIN saved_queries q ON q.id = t.query_id`

// ─────────────────────────────────────────────────────────────────
// Tenders
// ─────────────────────────────────────────────────────────────────

const insertTender = `INSERT INTO tenders (
	external_id, purchase_number, title, customer_name, customer_inn, region,
	max_price, additional_info, source_url, publish_date, deadline, saved_at, query_id
) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13)
ON CONFLICT (external_id) DO NOTHING
RETURNING id`

func (s *Store) BatchInsert(ctx context.Context, tenders []*domain.Tender) (int, error) {
	if len(tenders) == 0 {
		return 0, nil
	}
	now := s.clock.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &domain.StoreError{Op: "batch insert", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, t := range tenders {
		var price *string
		if t.MaxPrice != nil {
			p := t.MaxPrice.String()
			price = &p
		}
		batch.Queue(insertTender,
			t.ExternalID, t.PurchaseNumber, t.Title, t.CustomerName, t.CustomerINN, t.Region,
			price, t.AdditionalInfo, t.SourceURL, t.PublishDate, t.Deadline, now, t.QueryID)
	}

	ids := make([]int64, len(tenders))
	results := tx.SendBatch(ctx, batch)
	for i := range tenders {
		if err := results.QueryRow().Scan(&ids[i]); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			_ = results.Close()
			return 0, &domain.StoreError{Op: "batch insert", Err: err}
		}
	}
	if err := results.Close(); err != nil {
		return 0, &domain.StoreError{Op: "batch insert", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &domain.StoreError{Op: "batch insert", Err: err}
	}

	added := 0
	for i, t := range tenders {
		if ids[i] != 0 {
			t.ID = ids[i]
			t.SavedAt = now
			added++
		}
	}
	return added, nil
}

func (s *Store) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenders WHERE external_id = $1)`, externalID).Scan(&ok)
	if err != nil {
		return false, &domain.StoreError{Op: "exists", Err: err}
	}
	return ok, nil
}

func (s *Store) ListExpired(ctx context.Context, cutoff time.Time) ([]*domain.Tender, error) {
	sql := `SELECT ` + tenderColumns + tenderFrom +
		` WHERE t.deadline IS NOT NULL AND t.deadline < $1 ORDER BY t.deadline, t.id`
	tenders, err := s.queryTenders(ctx, sql, cutoff)
	if err != nil {
		return nil, &domain.StoreError{Op: "list expired", Err: err}
	}
	return tenders, nil
}

func (s *Store) DeleteTenders(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM tenders WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, &domain.StoreError{Op: "delete tenders", Err: err}
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) GetTender(ctx context.Context, id int64) (*domain.Tender, error) {
	tenders, err := s.queryTenders(ctx, `SELECT `+tenderColumns+tenderFrom+` WHERE t.id = $1`, id)
	if err != nil {
		return nil, &domain.StoreError{Op: "get tender", Err: err}
	}
	if len(tenders) == 0 {
		return nil, domain.ErrNotFound
	}
	return tenders[0], nil
}

func (s *Store) ListTenders(ctx context.Context, f domain.TenderFilter) (*domain.TenderPage, error) {
	f = f.Normalize()
	where, args := whereClause(f)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tenders t`+where, args...).Scan(&total); err != nil {
		return nil, &domain.StoreError{Op: "count tenders", Err: err}
	}

	sql := fmt.Sprintf(`SELECT %s%s%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		tenderColumns, tenderFrom, where, orderBy(f), len(args)+1, len(args)+2)
	args = append(args, f.PageSize, f.Offset())

	tenders, err := s.queryTenders(ctx, sql, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "list tenders", Err: err}
	}
	return domain.NewTenderPage(tenders, total, f), nil
}

func (s *Store) CountTenders(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tenders`).Scan(&n); err != nil {
		return 0, &domain.StoreError{Op: "count tenders", Err: err}
	}
	return n, nil
}

func (s *Store) Stats(ctx context.Context, now time.Time) (*domain.TenderStats, error) {
	stats := &domain.TenderStats{LastUpdated: now.UTC()}
	err := s.pool.QueryRow(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE deadline IS NOT NULL AND deadline <= $1)
		FROM tenders`, now).Scan(&stats.Total, &stats.Expired)
	if err != nil {
		return nil, &domain.StoreError{Op: "stats", Err: err}
	}
	stats.Active = stats.Total - stats.Expired
	return stats, nil
}

func (s *Store) queryTenders(ctx context.Context, sql string, args ...any) ([]*domain.Tender, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Tender, 0)
	for rows.Next() {
		var (
			t     domain.Tender
			price *string
		)
		err := rows.Scan(&t.ID, &t.ExternalID, &t.PurchaseNumber, &t.Title, &t.CustomerName,
			&t.CustomerINN, &t.Region, &price, &t.AdditionalInfo, &t.SourceURL,
			&t.PublishDate, &t.Deadline, &t.SavedAt, &t.QueryID, &t.QueryKeyword)
		if err != nil {
			return nil, err
		}
		if price != nil {
			if d, err := decimal.NewFromString(*price); err == nil {
				t.MaxPrice = &d
			}
		}
		t.SavedAt = t.SavedAt.UTC()
		t.PublishDate = utc(t.PublishDate)
		t.Deadline = utc(t.Deadline)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// whereClause renders the filter as a WHERE clause over alias t with
// positional arguments.
func whereClause(f domain.TenderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if !f.ShowExpired {
		add("(t.deadline IS NULL OR t.deadline > ?)", f.Now)
	}
	if f.QueryID != nil {
		add("t.query_id = ?", *f.QueryID)
	}
	if f.SavedFrom != nil {
		add("t.saved_at >= ?", *f.SavedFrom)
	}
	if f.SavedTo != nil {
		add("t.saved_at <= ?", *f.SavedTo)
	}
	if f.DeadlineFrom != nil {
		add("t.deadline >= ?", *f.DeadlineFrom)
	}
	if f.DeadlineTo != nil {
		add("t.deadline <= ?", *f.DeadlineTo)
	}
	if f.Search != "" {
		add(`(t.title ILIKE ? OR t.purchase_number ILIKE ?
			OR COALESCE(t.customer_name, '') ILIKE ? OR COALESCE(t.additional_info, '') ILIKE ?)`,
			"%"+escapeLike(f.Search)+"%")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var sortColumns = map[string]string{
	domain.SortSavedAt:     "t.saved_at",
	domain.SortPublishDate: "t.publish_date",
	domain.SortTitle:       "LOWER(t.title)",
	domain.SortDeadline:    "t.deadline",
	domain.SortMaxPrice:    "t.max_price",
}

func orderBy(f domain.TenderFilter) string {
	dir := "ASC"
	if f.SortDescending {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s NULLS LAST, t.id ASC", sortColumns[f.SortBy], dir)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ─────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────

const queryColumns = `id, keyword, category, is_active, created_at`

func (s *Store) ListQueries(ctx context.Context) ([]*domain.SavedQuery, error) {
	qs, err := s.queryQueries(ctx, `SELECT `+queryColumns+` FROM saved_queries ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list queries", Err: err}
	}
	return qs, nil
}

func (s *Store) ListActiveQueries(ctx context.Context) ([]*domain.SavedQuery, error) {
	qs, err := s.queryQueries(ctx, `SELECT `+queryColumns+` FROM saved_queries WHERE is_active ORDER BY keyword, id`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list active queries", Err: err}
	}
	return qs, nil
}

func (s *Store) GetQuery(ctx context.Context, id int64) (*domain.SavedQuery, error) {
	return s.queryOne(ctx, "get query", `SELECT `+queryColumns+` FROM saved_queries WHERE id = $1`, id)
}

func (s *Store) CreateQuery(ctx context.Context, q *domain.SavedQuery) (*domain.SavedQuery, error) {
	if err := domain.ValidateKeyword(q.Keyword); err != nil {
		return nil, err
	}
	return s.queryOne(ctx, "create query",
		`INSERT INTO saved_queries (keyword, category, is_active, created_at)
		VALUES ($1, $2, $3, $4) RETURNING `+queryColumns,
		q.Keyword, q.Category, q.Active, s.clock.Now().UTC())
}

func (s *Store) UpdateQuery(ctx context.Context, id int64, patch domain.QueryPatch) (*domain.SavedQuery, error) {
	if patch.Keyword != nil {
		if err := domain.ValidateKeyword(*patch.Keyword); err != nil {
			return nil, err
		}
	}
	return s.queryOne(ctx, "update query",
		`UPDATE saved_queries SET
			keyword   = COALESCE($2, keyword),
			category  = COALESCE($3, category),
			is_active = COALESCE($4, is_active)
		WHERE id = $1 RETURNING `+queryColumns,
		id, patch.Keyword, patch.Category, patch.Active)
}

// DeleteQuery relies on the ON DELETE SET NULL foreign key to detach the
// query's tenders.
func (s *Store) DeleteQuery(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM saved_queries WHERE id = $1`, id)
	if err != nil {
		return &domain.StoreError{Op: "delete query", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) queryOne(ctx context.Context, op, sql string, args ...any) (*domain.SavedQuery, error) {
	var q domain.SavedQuery
	err := s.pool.QueryRow(ctx, sql, args...).Scan(&q.ID, &q.Keyword, &q.Category, &q.Active, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.StoreError{Op: op, Err: err}
	}
	q.CreatedAt = q.CreatedAt.UTC()
	return &q, nil
}

func (s *Store) queryQueries(ctx context.Context, sql string, args ...any) ([]*domain.SavedQuery, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	qs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.SavedQuery, error) {
		var q domain.SavedQuery
		err := row.Scan(&q.ID, &q.Keyword, &q.Category, &q.Active, &q.CreatedAt)
		q.CreatedAt = q.CreatedAt.UTC()
		return &q, err
	})
	if err != nil {
		return nil, err
	}
	return qs, nil
}
