package domain

import (
	"context"

	"github.com/jordanlanch/bookworm/pkg/models"
)

// BookLookup resolves book snapshots by id
type BookLookup interface {
	// GetBook returns a not found DomainError for unknown ids
	GetBook(ctx context.Context, id string) (*models.Book, error)
	// GetBooks silently skips unknown ids
	GetBooks(ctx context.Context, ids []string) ([]models.Book, error)
}

// UserLookup resolves users with their favorite genres populated
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Catalog is the read-only view of books, genres, shelves and reviews
// the recommendation strategies score against
type Catalog interface {
	BookLookup
	UserLookup

	FindBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	GenresByName(ctx context.Context, names []string) ([]models.Genre, error)

	CountShelved(ctx context.Context, userID string, status models.ShelfStatus) (int, error)
	// ShelvedBookIDs returns the user's shelved book ids, restricted to statuses when given
	ShelvedBookIDs(ctx context.Context, userID string, statuses ...models.ShelfStatus) ([]string, error)
	// ReadCountsByGenre maps genre id to the number of books the user has read in it
	ReadCountsByGenre(ctx context.Context, userID string) (map[string]int, error)

	// ApprovedReviewsByUser returns the user's approved reviews rated at least minRating
	ApprovedReviewsByUser(ctx context.Context, userID string, minRating int) ([]models.Review, error)
	// ReviewersOfBooks returns distinct users other than excludeUserID with an approved
	// review of at least minRating on any of bookIDs
	ReviewersOfBooks(ctx context.Context, bookIDs []string, excludeUserID string, minRating int) ([]string, error)
	// ApprovedReviewsByUsers returns approved reviews by userIDs rated at least minRating,
	// skipping excludeBookIDs, capped at limit
	ApprovedReviewsByUsers(ctx context.Context, userIDs []string, minRating int, excludeBookIDs []string, limit int) ([]models.Review, error)
}
