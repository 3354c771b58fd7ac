package models

import (
	"math"
	"time"
)

// Genre is a catalog genre
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Book is a plain snapshot of a catalog book as the recommendation engine sees it
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	GenreID       string    `json:"genreId"`
	GenreName     string    `json:"genreName,omitempty"`
	Description   string    `json:"description,omitempty"`
	CoverImage    string    `json:"coverImage,omitempty"`
	TotalPages    int       `json:"totalPages"`
	AverageRating float64   `json:"averageRating"`
	TotalReviews  int       `json:"totalReviews"`
	TotalShelved  int       `json:"totalShelved"`
	CreatedAt     time.Time `json:"createdAt"`
}

const (
	wordsPerPage   = 250
	wordsPerMinute = 200
	hoursPerDay    = 1
)

// EstimatedReadingHours returns the whole hours needed to read the book
func EstimatedReadingHours(b Book) int {
	minutes := float64(b.TotalPages*wordsPerPage) / wordsPerMinute
	return int(math.Ceil(minutes / 60))
}

// EstimatedReadingDays assumes one reading hour per day
func EstimatedReadingDays(b Book) int {
	return int(math.Ceil(float64(EstimatedReadingHours(b)) / hoursPerDay))
}

// PopularityScore weighs rating (60%) against a log-scaled shelved count (40%).
// 1000 readers saturate the shelved component.
func PopularityScore(b Book) float64 {
	normalizedRating := b.AverageRating / 5
	normalizedShelved := math.Log10(float64(b.TotalShelved)+1) / math.Log10(1000)
	return (normalizedRating*0.6 + normalizedShelved*0.4) * 100
}

// BookView is a book snapshot with its derived values, used in API responses
type BookView struct {
	Book
	EstimatedReadingHours int     `json:"estimatedReadingHours"`
	EstimatedReadingDays  int     `json:"estimatedReadingDays"`
	PopularityScore       float64 `json:"popularityScore"`
}

// NewBookView computes the derived values for b
func NewBookView(b Book) BookView {
	return BookView{
		Book:                  b,
		EstimatedReadingHours: EstimatedReadingHours(b),
		EstimatedReadingDays:  EstimatedReadingDays(b),
		PopularityScore:       math.Round(PopularityScore(b)*100) / 100,
	}
}

// BookOrder is a sort key for catalog book queries
type BookOrder string

const (
	OrderRatingDesc  BookOrder = "average_rating_desc"
	OrderShelvedDesc BookOrder = "total_shelved_desc"
	OrderNewest      BookOrder = "created_at_desc"
)

// BookFilter describes a catalog book query. Zero values disable a criterion.
type BookFilter struct {
	GenreIDs     []string
	ExcludeIDs   []string
	MinRating    *float64
	MaxRating    *float64
	MinShelved   int
	MinReviews   int
	CreatedAfter time.Time
	OrderBy      []BookOrder
	Limit        int
}

// Float returns a pointer to f, for optional filter bounds
func Float(f float64) *float64 {
	return &f
}
