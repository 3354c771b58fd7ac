package database

import (
	"context"
	"fmt"
	"log"

	"entgo.io/ent/dialect"
)

// timestampType returns a column type both drivers map to time.Time
func timestampType(driver string) string {
	if driver == dialect.SQLite {
		return "DATETIME"
	}
	return "TIMESTAMPTZ"
}

func schemaStatements(driver string) []string {
	ts := timestampType(driver)

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'USER',
			created_at %s NOT NULL
		)`, ts),
		`CREATE TABLE IF NOT EXISTS genres (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS user_favorite_genres (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			genre_id TEXT NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, genre_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS books (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			genre_id TEXT NOT NULL REFERENCES genres(id),
			description TEXT NOT NULL DEFAULT '',
			cover_image TEXT NOT NULL DEFAULT '',
			total_pages INTEGER NOT NULL DEFAULT 0,
			average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_reviews INTEGER NOT NULL DEFAULT 0,
			total_shelved INTEGER NOT NULL DEFAULT 0,
			created_at %s NOT NULL
		)`, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS shelves (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			rating INTEGER,
			created_at %s NOT NULL,
			UNIQUE (user_id, book_id)
		)`, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			rating INTEGER NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at %s NOT NULL
		)`, ts),
		// No foreign keys: rows outlive deleted books and stats skip them
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS recommendations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			book_id TEXT NOT NULL,
			recommendation_type TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL CHECK (score >= 0 AND score <= 100),
			explanation TEXT NOT NULL,
			viewed BOOLEAN NOT NULL DEFAULT FALSE,
			clicked BOOLEAN NOT NULL DEFAULT FALSE,
			added_to_shelf BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at %[1]s NOT NULL,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_books_genre ON books (genre_id)`,
		`CREATE INDEX IF NOT EXISTS idx_books_rating ON books (average_rating)`,
		`CREATE INDEX IF NOT EXISTS idx_books_shelved ON books (total_shelved)`,
		`CREATE INDEX IF NOT EXISTS idx_shelves_user_status ON shelves (user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_user ON reviews (user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_book ON reviews (book_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_user_expires ON recommendations (user_id, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_expires ON recommendations (expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_user_book ON recommendations (user_id, book_id, created_at)`,
	}
}

// Migrate creates the schema if it does not exist yet
func (c *Client) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(c.Dialect) {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed creating schema resources: %w", err)
		}
	}

	log.Println("✅ Database migrations applied")
	return nil
}
