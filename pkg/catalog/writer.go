package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/bookworm/pkg/models"
)

// The write helpers below back the seed command and tests. Book and
// review authoring belongs to the wider BookWorm API, not this service.

func (s *Store) exec(ctx context.Context, query string, args []any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func ensureTime(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	} else {
		*t = t.UTC()
	}
}

// InsertGenre stores a genre, assigning an id when empty
func (s *Store) InsertGenre(ctx context.Context, g *models.Genre) error {
	ensureID(&g.ID)

	query, args := s.sqlb().Insert("genres").
		Columns("id", "name").
		Values(g.ID, g.Name).
		Query()
	if err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert genre: %w", err)
	}
	return nil
}

// InsertBook stores a book, assigning an id and creation time when empty
func (s *Store) InsertBook(ctx context.Context, bk *models.Book) error {
	ensureID(&bk.ID)
	ensureTime(&bk.CreatedAt)

	query, args := s.sqlb().Insert("books").
		Columns(bookColumns...).
		Values(bk.ID, bk.Title, bk.Author, bk.GenreID, bk.Description, bk.CoverImage,
			bk.TotalPages, bk.AverageRating, bk.TotalReviews, bk.TotalShelved, bk.CreatedAt).
		Query()
	if err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// InsertUser stores a user and links the favorite genres
func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	ensureID(&u.ID)
	ensureTime(&u.CreatedAt)
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	query, args := s.sqlb().Insert("users").
		Columns("id", "name", "email", "password_hash", "role", "created_at").
		Values(u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt).
		Query()
	if err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	for _, g := range u.FavoriteGenres {
		if err := s.AddFavoriteGenre(ctx, u.ID, g.ID); err != nil {
			return err
		}
	}
	return nil
}

// AddFavoriteGenre links a genre to the user's favorites
func (s *Store) AddFavoriteGenre(ctx context.Context, userID, genreID string) error {
	query, args := s.sqlb().Insert("user_favorite_genres").
		Columns("user_id", "genre_id").
		Values(userID, genreID).
		Query()
	if err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to add favorite genre: %w", err)
	}
	return nil
}

// InsertShelf places a book on a user's shelf
func (s *Store) InsertShelf(ctx context.Context, e *models.ShelfEntry) error {
	ensureID(&e.ID)
	ensureTime(&e.CreatedAt)

	var rating any
	if e.Rating != nil {
		rating = *e.Rating
	}

	query, args := s.sqlb().Insert("shelves").
		Columns("id", "user_id", "book_id", "status", "rating", "created_at").
		Values(e.ID, e.UserID, e.BookID, string(e.Status), rating, e.CreatedAt).
		Query()
	if err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert shelf entry: %w", err)
	}
	return nil
}

// InsertReview stores a review; an empty status means pending
func (s *Store) InsertReview(ctx context.Context, r *models.Review) error {
	ensureID(&r.ID)
	ensureTime(&r.CreatedAt)
	if r.Status == "" {
		r.Status = models.ReviewPending
	}

	query, args := s.sqlb().Insert("reviews").
		Columns(reviewColumns...).
		Values(r.ID, r.UserID, r.BookID, r.Rating, r.Comment, string(r.Status), r.CreatedAt).
		Query()
	if err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}
