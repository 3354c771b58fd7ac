package catalog

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/bookworm/pkg/domain"
	"github.com/jordanlanch/bookworm/pkg/logger"
	"github.com/jordanlanch/bookworm/pkg/models"
	"github.com/sony/gobreaker/v2"
)

// Store reads books, genres, shelves, reviews and users from SQL.
// Every read goes through a circuit breaker so a failing database
// turns into fast, typed unavailable errors instead of piling up.
type Store struct {
	db      *stdsql.DB
	dialect string
	breaker *gobreaker.CircuitBreaker[any]
	logger  logger.Logger
}

// BreakerConfig configures the catalog circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig trips after 5 consecutive failures and probes again after 30s
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// NewStore creates a catalog store on an open database
func NewStore(db *stdsql.DB, dialect string, log logger.Logger) *Store {
	return NewStoreWithBreaker(db, dialect, log, DefaultBreakerConfig())
}

// NewStoreWithBreaker creates a catalog store with a custom breaker configuration
func NewStoreWithBreaker(db *stdsql.DB, dialect string, log logger.Logger, cfg BreakerConfig) *Store {
	if log == nil {
		log = logger.Default()
	}

	s := &Store{db: db, dialect: dialect, logger: log}
	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsNotFound(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return s
}

// guard runs fn through the circuit breaker
func guard[T any](s *Store, fn func() (T, error)) (T, error) {
	v, err := s.breaker.Execute(func() (any, error) {
		res, err := fn()
		return res, err
	})

	var zero T
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, domain.NewUnavailableError("catalog", err)
		}
		return zero, err
	}

	res, ok := v.(T)
	if !ok {
		return zero, nil
	}
	return res, nil
}

func (s *Store) sqlb() *sql.DialectBuilder {
	return sql.Dialect(s.dialect)
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

var bookColumns = []string{
	"id", "title", "author", "genre_id", "description", "cover_image",
	"total_pages", "average_rating", "total_reviews", "total_shelved", "created_at",
}

// bookSelector selects book columns joined with the genre name.
// Joined tables carry explicit aliases so column references match the JOIN.
func (s *Store) bookSelector() (*sql.Selector, *sql.SelectTable) {
	b := s.sqlb()
	books := b.Table("books").As("b")
	genres := b.Table("genres").As("g")

	columns := make([]string, 0, len(bookColumns)+1)
	for _, c := range bookColumns {
		columns = append(columns, books.C(c))
	}
	columns = append(columns, genres.C("name"))

	sel := b.Select(columns...).
		From(books).
		Join(genres).
		On(books.C("genre_id"), genres.C("id"))

	return sel, books
}

func (s *Store) queryBooks(ctx context.Context, sel *sql.Selector) ([]models.Book, error) {
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var bk models.Book
		if err := rows.Scan(
			&bk.ID, &bk.Title, &bk.Author, &bk.GenreID, &bk.Description, &bk.CoverImage,
			&bk.TotalPages, &bk.AverageRating, &bk.TotalReviews, &bk.TotalShelved, &bk.CreatedAt,
			&bk.GenreName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, bk)
	}

	return books, rows.Err()
}

// GetBook returns a single book
func (s *Store) GetBook(ctx context.Context, id string) (*models.Book, error) {
	return guard(s, func() (*models.Book, error) {
		sel, books := s.bookSelector()
		sel.Where(sql.EQ(books.C("id"), id)).Limit(1)

		found, err := s.queryBooks(ctx, sel)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, domain.NewNotFoundError("book")
		}
		return &found[0], nil
	})
}

// GetBooks returns the books that exist among ids, in the order of ids
func (s *Store) GetBooks(ctx context.Context, ids []string) ([]models.Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return guard(s, func() ([]models.Book, error) {
		sel, books := s.bookSelector()
		sel.Where(sql.In(books.C("id"), toArgs(ids)...))

		found, err := s.queryBooks(ctx, sel)
		if err != nil {
			return nil, err
		}

		byID := make(map[string]models.Book, len(found))
		for _, bk := range found {
			byID[bk.ID] = bk
		}

		ordered := make([]models.Book, 0, len(found))
		for _, id := range ids {
			if bk, ok := byID[id]; ok {
				ordered = append(ordered, bk)
				delete(byID, id)
			}
		}
		return ordered, nil
	})
}

// FindBooks runs a filtered book query
func (s *Store) FindBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	return guard(s, func() ([]models.Book, error) {
		sel, books := s.bookSelector()

		if len(filter.GenreIDs) > 0 {
			sel.Where(sql.In(books.C("genre_id"), toArgs(filter.GenreIDs)...))
		}
		if len(filter.ExcludeIDs) > 0 {
			sel.Where(sql.NotIn(books.C("id"), toArgs(filter.ExcludeIDs)...))
		}
		if filter.MinRating != nil {
			sel.Where(sql.GTE(books.C("average_rating"), *filter.MinRating))
		}
		if filter.MaxRating != nil {
			sel.Where(sql.LTE(books.C("average_rating"), *filter.MaxRating))
		}
		if filter.MinShelved > 0 {
			sel.Where(sql.GTE(books.C("total_shelved"), filter.MinShelved))
		}
		if filter.MinReviews > 0 {
			sel.Where(sql.GTE(books.C("total_reviews"), filter.MinReviews))
		}
		if !filter.CreatedAfter.IsZero() {
			sel.Where(sql.GTE(books.C("created_at"), filter.CreatedAfter.UTC()))
		}

		for _, o := range filter.OrderBy {
			switch o {
			case models.OrderRatingDesc:
				sel.OrderBy(sql.Desc(books.C("average_rating")))
			case models.OrderShelvedDesc:
				sel.OrderBy(sql.Desc(books.C("total_shelved")))
			case models.OrderNewest:
				sel.OrderBy(sql.Desc(books.C("created_at")))
			}
		}
		// Deterministic tie-break
		sel.OrderBy(sql.Asc(books.C("id")))

		if filter.Limit > 0 {
			sel.Limit(filter.Limit)
		}

		return s.queryBooks(ctx, sel)
	})
}

// GenresByName resolves genre names to genres; unknown names are skipped
func (s *Store) GenresByName(ctx context.Context, names []string) ([]models.Genre, error) {
	if len(names) == 0 {
		return nil, nil
	}

	return guard(s, func() ([]models.Genre, error) {
		b := s.sqlb()
		genres := b.Table("genres")
		sel := b.Select(genres.C("id"), genres.C("name")).
			From(genres).
			Where(sql.In(genres.C("name"), toArgs(names)...)).
			OrderBy(sql.Asc(genres.C("name")))

		return s.queryGenres(ctx, sel)
	})
}

func (s *Store) queryGenres(ctx context.Context, sel *sql.Selector) ([]models.Genre, error) {
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// GetUser returns a user with favorite genres populated
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return guard(s, func() (*models.User, error) {
		b := s.sqlb()
		users := b.Table("users")
		sel := b.Select(users.C("id"), users.C("name"), users.C("email"), users.C("password_hash"), users.C("role"), users.C("created_at")).
			From(users).
			Where(sql.EQ(users.C("id"), id))

		query, args := sel.Query()
		var u models.User
		err := s.db.QueryRowContext(ctx, query, args...).
			Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, domain.NewNotFoundError("user")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}

		favorites := b.Table("user_favorite_genres").As("f")
		genres := b.Table("genres").As("g")
		favSel := b.Select(genres.C("id"), genres.C("name")).
			From(favorites).
			Join(genres).
			On(favorites.C("genre_id"), genres.C("id")).
			Where(sql.EQ(favorites.C("user_id"), id)).
			OrderBy(sql.Asc(genres.C("name")))

		u.FavoriteGenres, err = s.queryGenres(ctx, favSel)
		if err != nil {
			return nil, err
		}
		return &u, nil
	})
}

// CountShelved counts the user's shelf entries with the given status
func (s *Store) CountShelved(ctx context.Context, userID string, status models.ShelfStatus) (int, error) {
	return guard(s, func() (int, error) {
		b := s.sqlb()
		shelves := b.Table("shelves")
		sel := b.Select(sql.Count("*")).
			From(shelves).
			Where(sql.And(
				sql.EQ(shelves.C("user_id"), userID),
				sql.EQ(shelves.C("status"), string(status)),
			))

		query, args := sel.Query()
		var n int
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count shelf entries: %w", err)
		}
		return n, nil
	})
}

// ShelvedBookIDs returns the ids of books on the user's shelves
func (s *Store) ShelvedBookIDs(ctx context.Context, userID string, statuses ...models.ShelfStatus) ([]string, error) {
	return guard(s, func() ([]string, error) {
		b := s.sqlb()
		shelves := b.Table("shelves")
		sel := b.Select(shelves.C("book_id")).
			From(shelves).
			Where(sql.EQ(shelves.C("user_id"), userID))

		if len(statuses) > 0 {
			args := make([]any, len(statuses))
			for i, st := range statuses {
				args[i] = string(st)
			}
			sel.Where(sql.In(shelves.C("status"), args...))
		}

		return s.queryStrings(ctx, sel)
	})
}

// ReadCountsByGenre counts the user's read books per genre id
func (s *Store) ReadCountsByGenre(ctx context.Context, userID string) (map[string]int, error) {
	return guard(s, func() (map[string]int, error) {
		b := s.sqlb()
		shelves := b.Table("shelves").As("s")
		books := b.Table("books").As("b")
		sel := b.Select(books.C("genre_id"), sql.Count("*")).
			From(shelves).
			Join(books).
			On(shelves.C("book_id"), books.C("id")).
			Where(sql.And(
				sql.EQ(shelves.C("user_id"), userID),
				sql.EQ(shelves.C("status"), string(models.ShelfRead)),
			)).
			GroupBy(books.C("genre_id"))

		query, args := sel.Query()
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to count read books by genre: %w", err)
		}
		defer rows.Close()

		counts := make(map[string]int)
		for rows.Next() {
			var genreID string
			var n int
			if err := rows.Scan(&genreID, &n); err != nil {
				return nil, fmt.Errorf("failed to scan genre count: %w", err)
			}
			counts[genreID] = n
		}
		return counts, rows.Err()
	})
}

var reviewColumns = []string{"id", "user_id", "book_id", "rating", "comment", "status", "created_at"}

func (s *Store) reviewSelector() (*sql.Selector, *sql.SelectTable) {
	b := s.sqlb()
	reviews := b.Table("reviews")

	columns := make([]string, len(reviewColumns))
	for i, c := range reviewColumns {
		columns[i] = reviews.C(c)
	}
	return b.Select(columns...).From(reviews), reviews
}

func (s *Store) queryReviews(ctx context.Context, sel *sql.Selector) ([]models.Review, error) {
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.UserID, &r.BookID, &r.Rating, &r.Comment, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// ApprovedReviewsByUser returns the user's approved reviews rated at least minRating
func (s *Store) ApprovedReviewsByUser(ctx context.Context, userID string, minRating int) ([]models.Review, error) {
	return guard(s, func() ([]models.Review, error) {
		sel, reviews := s.reviewSelector()
		sel.Where(sql.And(
			sql.EQ(reviews.C("user_id"), userID),
			sql.EQ(reviews.C("status"), string(models.ReviewApproved)),
			sql.GTE(reviews.C("rating"), minRating),
		)).OrderBy(sql.Asc(reviews.C("created_at")))

		return s.queryReviews(ctx, sel)
	})
}

// ReviewersOfBooks returns other users who approved-rated any of bookIDs at least minRating
func (s *Store) ReviewersOfBooks(ctx context.Context, bookIDs []string, excludeUserID string, minRating int) ([]string, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}

	return guard(s, func() ([]string, error) {
		b := s.sqlb()
		reviews := b.Table("reviews")
		sel := b.Select(reviews.C("user_id")).
			Distinct().
			From(reviews).
			Where(sql.And(
				sql.In(reviews.C("book_id"), toArgs(bookIDs)...),
				sql.NEQ(reviews.C("user_id"), excludeUserID),
				sql.EQ(reviews.C("status"), string(models.ReviewApproved)),
				sql.GTE(reviews.C("rating"), minRating),
			))

		return s.queryStrings(ctx, sel)
	})
}

// ApprovedReviewsByUsers returns approved reviews by userIDs, skipping excludeBookIDs
func (s *Store) ApprovedReviewsByUsers(ctx context.Context, userIDs []string, minRating int, excludeBookIDs []string, limit int) ([]models.Review, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	return guard(s, func() ([]models.Review, error) {
		sel, reviews := s.reviewSelector()
		sel.Where(sql.And(
			sql.In(reviews.C("user_id"), toArgs(userIDs)...),
			sql.EQ(reviews.C("status"), string(models.ReviewApproved)),
			sql.GTE(reviews.C("rating"), minRating),
		))
		if len(excludeBookIDs) > 0 {
			sel.Where(sql.NotIn(reviews.C("book_id"), toArgs(excludeBookIDs)...))
		}
		sel.OrderBy(sql.Desc(reviews.C("created_at")), sql.Asc(reviews.C("id")))
		if limit > 0 {
			sel.Limit(limit)
		}

		return s.queryReviews(ctx, sel)
	})
}

func (s *Store) queryStrings(ctx context.Context, sel *sql.Selector) ([]string, error) {
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ domain.Catalog = (*Store)(nil)
