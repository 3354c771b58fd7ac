package recstore

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/bookworm/pkg/recommendations"
)

const table = "recommendations"

var columns = []string{
	"id", "user_id", "book_id", "recommendation_type", "score", "explanation",
	"viewed", "clicked", "added_to_shelf", "expires_at", "created_at", "updated_at",
}

// Store persists recommendations in SQL
type Store struct {
	db      *stdsql.DB
	dialect string
}

// New creates a recommendation store
func New(db *stdsql.DB, dialect string) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) sqlb() *sql.DialectBuilder {
	return sql.Dialect(s.dialect)
}

func (s *Store) selectRows() *sql.Selector {
	b := s.sqlb()
	return b.Select(columns...).From(b.Table(table))
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*stdsql.Rows, error)
}

func scanRows(ctx context.Context, q queryer, sel *sql.Selector) ([]recommendations.Recommendation, error) {
	query, args := sel.Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []recommendations.Recommendation
	for rows.Next() {
		var r recommendations.Recommendation
		var typ string
		if err := rows.Scan(&r.ID, &r.UserID, &r.BookID, &typ, &r.Score, &r.Explanation,
			&r.Viewed, &r.Clicked, &r.AddedToShelf, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		r.Type = recommendations.Type(typ)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// ListActive returns active rows ordered by score desc then newest
func (s *Store) ListActive(ctx context.Context, userID string, filter recommendations.ActiveFilter, now time.Time) ([]recommendations.Recommendation, error) {
	sel := s.selectRows().Where(sql.And(
		sql.EQ("user_id", userID),
		sql.GT("expires_at", now.UTC()),
	))
	if filter.Type != "" {
		sel.Where(sql.EQ("recommendation_type", string(filter.Type)))
	}
	if !filter.IncludeViewed {
		sel.Where(sql.EQ("viewed", false))
	}
	sel.OrderBy(sql.Desc("score"), sql.Desc("created_at"), sql.Asc("id"))
	if filter.Limit > 0 {
		sel.Limit(filter.Limit)
	}

	return scanRows(ctx, s.db, sel)
}

// LatestForBook returns the newest row for the (user, book) pair
func (s *Store) LatestForBook(ctx context.Context, userID, bookID string) (*recommendations.Recommendation, error) {
	sel := s.selectRows().
		Where(sql.And(sql.EQ("user_id", userID), sql.EQ("book_id", bookID))).
		OrderBy(sql.Desc("created_at")).
		Limit(1)

	recs, err := scanRows(ctx, s.db, sel)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, recommendations.ErrRecommendationNotFound
	}
	return &recs[0], nil
}

// ReplaceActive deletes the user's active rows and inserts recs in one transaction
func (s *Store) ReplaceActive(ctx context.Context, userID string, recs []recommendations.Recommendation, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args := s.activeDelete(userID, now).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete active recommendations: %w", err)
	}

	if len(recs) > 0 {
		ins := s.sqlb().Insert(table).Columns(columns...)
		for _, r := range recs {
			ins.Values(r.ID, r.UserID, r.BookID, string(r.Type), r.Score, r.Explanation,
				r.Viewed, r.Clicked, r.AddedToShelf, r.ExpiresAt.UTC(), r.CreatedAt.UTC(), r.UpdatedAt.UTC())
		}
		query, args := ins.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert recommendations: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) activeDelete(userID string, now time.Time) *sql.DeleteBuilder {
	return s.sqlb().Delete(table).Where(sql.And(
		sql.EQ("user_id", userID),
		sql.GT("expires_at", now.UTC()),
	))
}

// DeleteActive removes the user's active rows
func (s *Store) DeleteActive(ctx context.Context, userID string, now time.Time) (int64, error) {
	query, args := s.activeDelete(userID, now).Query()
	return s.exec(ctx, query, args)
}

func (s *Store) exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) mark(ctx context.Context, column, userID, id string, now time.Time) (*recommendations.Recommendation, error) {
	query, args := s.sqlb().Update(table).
		Set(column, true).
		Set("updated_at", now.UTC()).
		Where(sql.And(sql.EQ("id", id), sql.EQ("user_id", userID))).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return nil, fmt.Errorf("failed to mark recommendation %s: %w", column, err)
	}

	sel := s.selectRows().Where(sql.And(sql.EQ("id", id), sql.EQ("user_id", userID)))
	recs, err := scanRows(ctx, s.db, sel)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, recommendations.ErrRecommendationNotFound
	}
	return &recs[0], nil
}

// MarkViewed sets viewed on a row owned by userID
func (s *Store) MarkViewed(ctx context.Context, userID, id string, now time.Time) (*recommendations.Recommendation, error) {
	return s.mark(ctx, "viewed", userID, id, now)
}

// MarkClicked sets clicked on a row owned by userID
func (s *Store) MarkClicked(ctx context.Context, userID, id string, now time.Time) (*recommendations.Recommendation, error) {
	return s.mark(ctx, "clicked", userID, id, now)
}

// MarkAddedToShelf flags the user's active, not yet shelved rows for bookID
func (s *Store) MarkAddedToShelf(ctx context.Context, userID, bookID string, now time.Time) (int64, error) {
	query, args := s.sqlb().Update(table).
		Set("added_to_shelf", true).
		Set("updated_at", now.UTC()).
		Where(sql.And(
			sql.EQ("user_id", userID),
			sql.EQ("book_id", bookID),
			sql.GT("expires_at", now.UTC()),
			sql.EQ("added_to_shelf", false),
		)).
		Query()
	return s.exec(ctx, query, args)
}

// DeleteExpired removes rows with expires_at <= now
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query, args := s.sqlb().Delete(table).
		Where(sql.LTE("expires_at", now.UTC())).
		Query()
	return s.exec(ctx, query, args)
}

func (s *Store) typeCounts(ctx context.Context, where *sql.Predicate) ([]recommendations.TypeCounts, error) {
	b := s.sqlb()
	sel := b.SelectExpr(
		sql.Expr("recommendation_type"),
		sql.Expr("COUNT(*)"),
		sql.Expr("SUM(CASE WHEN viewed THEN 1 ELSE 0 END)"),
		sql.Expr("SUM(CASE WHEN clicked THEN 1 ELSE 0 END)"),
		sql.Expr("SUM(CASE WHEN added_to_shelf THEN 1 ELSE 0 END)"),
		sql.Expr("AVG(score)"),
	).From(b.Table(table))
	if where != nil {
		sel.Where(where)
	}
	sel.GroupBy("recommendation_type").OrderBy(sql.Asc("recommendation_type"))

	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate recommendations: %w", err)
	}
	defer rows.Close()

	var counts []recommendations.TypeCounts
	for rows.Next() {
		var c recommendations.TypeCounts
		var typ string
		if err := rows.Scan(&typ, &c.Count, &c.Viewed, &c.Clicked, &c.Added, &c.AvgScore); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		c.Type = recommendations.Type(typ)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// TypeCountsByUser aggregates the user's rows per type
func (s *Store) TypeCountsByUser(ctx context.Context, userID string) ([]recommendations.TypeCounts, error) {
	return s.typeCounts(ctx, sql.EQ("user_id", userID))
}

// TypeCounts aggregates every row per type
func (s *Store) TypeCounts(ctx context.Context) ([]recommendations.TypeCounts, error) {
	return s.typeCounts(ctx, nil)
}

// CountActive counts rows that have not expired
func (s *Store) CountActive(ctx context.Context, now time.Time) (int, error) {
	b := s.sqlb()
	query, args := b.Select(sql.Count("*")).
		From(b.Table(table)).
		Where(sql.GT("expires_at", now.UTC())).
		Query()

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active recommendations: %w", err)
	}
	return n, nil
}

// TopBooks ranks books by how many rows recommend them
func (s *Store) TopBooks(ctx context.Context, limit int) ([]recommendations.BookCount, error) {
	b := s.sqlb()
	sel := b.SelectExpr(
		sql.Expr("book_id"),
		sql.Expr("COUNT(*) AS recommended"),
		sql.Expr("AVG(score)"),
	).From(b.Table(table)).
		GroupBy("book_id").
		OrderBy(sql.Desc("recommended"), sql.Asc("book_id"))
	if limit > 0 {
		sel.Limit(limit)
	}

	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to rank books: %w", err)
	}
	defer rows.Close()

	var top []recommendations.BookCount
	for rows.Next() {
		var c recommendations.BookCount
		if err := rows.Scan(&c.BookID, &c.Count, &c.AvgScore); err != nil {
			return nil, fmt.Errorf("failed to scan book count: %w", err)
		}
		top = append(top, c)
	}
	return top, rows.Err()
}

var _ recommendations.Store = (*Store)(nil)
