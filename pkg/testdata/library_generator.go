package testdata

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jordanlanch/bookworm/pkg/auth"
	"github.com/jordanlanch/bookworm/pkg/models"
)

// LibraryConfig configures library generation parameters
type LibraryConfig struct {
	Books          int
	Users          int
	ShelvesPerUser int
	ReviewsPerUser int
	MinRating      float64 // 1.0-5.0
	MaxRating      float64
	MaxShelved     int
	ApprovedChance float64 // 0.0-1.0 (probability a review is approved)
	Password       string
}

// DefaultLibraryConfig returns a small but realistic library
func DefaultLibraryConfig() LibraryConfig {
	return LibraryConfig{
		Books:          200,
		Users:          25,
		ShelvesPerUser: 12,
		ReviewsPerUser: 6,
		MinRating:      2.5,
		MaxRating:      5.0,
		MaxShelved:     8000,
		ApprovedChance: 0.85,
		Password:       "bookworm123",
	}
}

// GenreNames are the genres the seed library uses
var GenreNames = []string{
	"Fiction", "Classics", "Literary Fiction", "Contemporary",
	"Mystery", "Thriller", "Crime", "Suspense",
	"Science Fiction", "Fantasy", "Dystopian", "Speculative Fiction",
	"Adventure", "Young Adult", "Romance", "Women's Fiction",
	"Biography", "Memoir", "History", "Non-Fiction",
	"Self-Help", "Psychology", "Business", "Personal Development", "Politics",
}

// Genre-flavored title parts
var titleParts = map[string]struct {
	Prefixes []string
	Nouns    []string
}{
	"Mystery": {
		Prefixes: []string{"The Silent", "Death at", "The Last", "Murder in", "The Vanishing", "A Study in"},
		Nouns:    []string{"Witness", "Harbor", "Manor", "Alibi", "Key", "Cipher"},
	},
	"Science Fiction": {
		Prefixes: []string{"Beyond", "The Stars of", "Children of", "The Last Light of", "Echoes from"},
		Nouns:    []string{"Andromeda", "the Void", "Titan", "the Machine", "Orbit", "Nova"},
	},
	"Fantasy": {
		Prefixes: []string{"The Crown of", "Blood of", "The Dragon's", "Song of", "The Hollow"},
		Nouns:    []string{"Embers", "the North", "Oath", "Thorns", "Kings", "Ash"},
	},
	"Romance": {
		Prefixes: []string{"Love in", "A Summer in", "The Promise of", "Letters to", "Falling for"},
		Nouns:    []string{"Paris", "the Lighthouse", "Tomorrow", "You", "Autumn"},
	},
	"History": {
		Prefixes: []string{"The Rise and Fall of", "Empires of", "A History of", "The Age of"},
		Nouns:    []string{"Rome", "the Silk Road", "Revolution", "the Atlantic", "Steam"},
	},
	"Self-Help": {
		Prefixes: []string{"The Power of", "Habits of", "The Art of", "Mastering"},
		Nouns:    []string{"Focus", "Calm", "Change", "Discipline", "Now"},
	},
}

// GenerateTitle builds a book title, flavored by genre when known
func GenerateTitle(genre string) string {
	parts, ok := titleParts[genre]
	if !ok {
		return fmt.Sprintf("The %s %s", gofakeit.Adjective(), gofakeit.NounConcrete())
	}
	return fmt.Sprintf("%s %s",
		parts.Prefixes[rand.Intn(len(parts.Prefixes))],
		parts.Nouns[rand.Intn(len(parts.Nouns))])
}

// GenerateGenres returns a genre for every name in GenreNames
func GenerateGenres() []models.Genre {
	genres := make([]models.Genre, len(GenreNames))
	for i, name := range GenreNames {
		genres[i] = models.Genre{ID: gofakeit.UUID(), Name: name}
	}
	return genres
}

// GenerateBook creates a book in genre with rating and popularity drawn from config
func GenerateBook(config LibraryConfig, genre models.Genre) models.Book {
	rating := gofakeit.Float64Range(config.MinRating, config.MaxRating)
	maxShelved := config.MaxShelved
	if maxShelved <= 0 {
		maxShelved = 1000
	}
	shelved := gofakeit.Number(0, maxShelved)
	createdDaysAgo := gofakeit.Number(0, 720)

	return models.Book{
		ID:            gofakeit.UUID(),
		Title:         GenerateTitle(genre.Name),
		Author:        gofakeit.Name(),
		GenreID:       genre.ID,
		GenreName:     genre.Name,
		Description:   gofakeit.Paragraph(1, 3, 12, " "),
		CoverImage:    gofakeit.URL(),
		TotalPages:    gofakeit.Number(90, 900),
		AverageRating: math.Round(rating*10) / 10,
		TotalReviews:  shelved / gofakeit.Number(5, 20),
		TotalShelved:  shelved,
		CreatedAt:     time.Now().UTC().AddDate(0, 0, -createdDaysAgo),
	}
}

// GenerateBooks creates config.Books books spread across genres
func GenerateBooks(config LibraryConfig, genres []models.Genre) []models.Book {
	if len(genres) == 0 {
		return nil
	}

	books := make([]models.Book, config.Books)
	for i := range books {
		books[i] = GenerateBook(config, genres[rand.Intn(len(genres))])
	}
	return books
}

// GenerateUser creates a reader with up to three favorite genres
func GenerateUser(genres []models.Genre, passwordHash string) models.User {
	user := models.User{
		ID:           gofakeit.UUID(),
		Name:         gofakeit.Name(),
		Email:        gofakeit.Email(),
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		CreatedAt:    time.Now().UTC().AddDate(0, 0, -gofakeit.Number(1, 365)),
	}

	favorites := gofakeit.Number(0, 3)
	seen := make(map[string]bool)
	for i := 0; i < favorites && len(genres) > 0; i++ {
		g := genres[rand.Intn(len(genres))]
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		user.FavoriteGenres = append(user.FavoriteGenres, g)
	}
	return user
}

var shelfStatuses = []models.ShelfStatus{models.ShelfRead, models.ShelfRead, models.ShelfCurrentlyReading, models.ShelfWantToRead}

// GenerateShelves puts up to n distinct books on the user's shelves
func GenerateShelves(user models.User, books []models.Book, n int) []models.ShelfEntry {
	var entries []models.ShelfEntry
	for _, idx := range rand.Perm(len(books)) {
		if len(entries) >= n {
			break
		}
		entry := models.ShelfEntry{
			ID:        gofakeit.UUID(),
			UserID:    user.ID,
			BookID:    books[idx].ID,
			Status:    shelfStatuses[rand.Intn(len(shelfStatuses))],
			CreatedAt: time.Now().UTC().AddDate(0, 0, -gofakeit.Number(0, 180)),
		}
		if entry.Status == models.ShelfRead {
			rating := gofakeit.Number(1, 5)
			entry.Rating = &rating
		}
		entries = append(entries, entry)
	}
	return entries
}

// GenerateReviews writes reviews for up to n of the user's read books
func GenerateReviews(config LibraryConfig, shelves []models.ShelfEntry, n int) []models.Review {
	var reviews []models.Review
	for _, entry := range shelves {
		if len(reviews) >= n {
			break
		}
		if entry.Status != models.ShelfRead || entry.Rating == nil {
			continue
		}

		status := models.ReviewPending
		if rand.Float64() < config.ApprovedChance {
			status = models.ReviewApproved
		}
		reviews = append(reviews, models.Review{
			ID:        gofakeit.UUID(),
			UserID:    entry.UserID,
			BookID:    entry.BookID,
			Rating:    *entry.Rating,
			Comment:   gofakeit.Sentence(12),
			Status:    status,
			CreatedAt: entry.CreatedAt.Add(time.Duration(gofakeit.Number(1, 72)) * time.Hour),
		})
	}
	return reviews
}

// Library is a generated catalog ready to insert
type Library struct {
	Genres  []models.Genre
	Books   []models.Book
	Users   []models.User
	Shelves []models.ShelfEntry
	Reviews []models.Review
}

// GenerateLibrary creates genres, books, users, shelves and reviews
func GenerateLibrary(config LibraryConfig) (*Library, error) {
	password := config.Password
	if password == "" {
		password = gofakeit.Password(true, true, true, false, false, 14)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash seed password: %w", err)
	}

	lib := &Library{Genres: GenerateGenres()}
	lib.Books = GenerateBooks(config, lib.Genres)

	for i := 0; i < config.Users; i++ {
		user := GenerateUser(lib.Genres, hash)
		shelves := GenerateShelves(user, lib.Books, config.ShelvesPerUser)

		lib.Users = append(lib.Users, user)
		lib.Shelves = append(lib.Shelves, shelves...)
		lib.Reviews = append(lib.Reviews, GenerateReviews(config, shelves, config.ReviewsPerUser)...)
	}

	return lib, nil
}

// Writer is the subset of the catalog store used to persist a library
type Writer interface {
	InsertGenre(ctx context.Context, g *models.Genre) error
	InsertBook(ctx context.Context, b *models.Book) error
	InsertUser(ctx context.Context, u *models.User) error
	InsertShelf(ctx context.Context, e *models.ShelfEntry) error
	InsertReview(ctx context.Context, r *models.Review) error
}

// InsertLibrary writes every generated record, genres first
func InsertLibrary(ctx context.Context, w Writer, lib *Library) error {
	for i := range lib.Genres {
		if err := w.InsertGenre(ctx, &lib.Genres[i]); err != nil {
			return fmt.Errorf("genre %d: %w", i, err)
		}
	}
	for i := range lib.Books {
		if err := w.InsertBook(ctx, &lib.Books[i]); err != nil {
			return fmt.Errorf("book %d: %w", i, err)
		}
	}
	for i := range lib.Users {
		if err := w.InsertUser(ctx, &lib.Users[i]); err != nil {
			return fmt.Errorf("user %d: %w", i, err)
		}
	}
	for i := range lib.Shelves {
		if err := w.InsertShelf(ctx, &lib.Shelves[i]); err != nil {
			return fmt.Errorf("shelf %d: %w", i, err)
		}
	}
	for i := range lib.Reviews {
		if err := w.InsertReview(ctx, &lib.Reviews[i]); err != nil {
			return fmt.Errorf("review %d: %w", i, err)
		}
	}
	return nil
}
