package models

import "time"

// Role is a user role
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsAdmin reports whether the role may use admin operations
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is a reader with the favorite genres used for personalization
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	FavoriteGenres []Genre   `json:"favoriteGenres"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ShelfStatus is the reading state of a shelf entry
type ShelfStatus string

const (
	ShelfWantToRead       ShelfStatus = "wantToRead"
	ShelfCurrentlyReading ShelfStatus = "currentlyReading"
	ShelfRead             ShelfStatus = "read"
)

// ShelfEntry places a book on one of a user's shelves
type ShelfEntry struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	BookID    string      `json:"bookId"`
	Status    ShelfStatus `json:"status"`
	Rating    *int        `json:"rating,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ReviewStatus is the moderation state of a review
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Review is a user's rating of a book
type Review struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	BookID    string       `json:"bookId"`
	Rating    int          `json:"rating"`
	Comment   string       `json:"comment,omitempty"`
	Status    ReviewStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}
