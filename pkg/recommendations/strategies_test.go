package recommendations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jordanlanch/bookworm/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func TestGenreBased(t *testing.T) {
	l := setupLibrary(t)
	ctx := context.Background()

	reader := l.user("reader", "Mystery")
	l.book("Favorite Hit", bookSpec{genre: "Mystery", rating: 4.2, shelved: 1500})
	l.book("Related Pick", bookSpec{genre: "Thriller", rating: 3.8, shelved: 200})
	l.book("Low Rated", bookSpec{genre: "Mystery", rating: 3.0, shelved: 5000})
	l.book("Unrelated", bookSpec{genre: "Romance", rating: 4.9, shelved: 9000})
	wishlist := l.book("Wishlist", bookSpec{genre: "Mystery", rating: 3.6, shelved: 10})
	read := l.book("Already Read", bookSpec{genre: "Mystery", rating: 4.8, shelved: 50})
	reading := l.book("Reading Now", bookSpec{genre: "Thriller", rating: 4.0, shelved: 50})
	l.shelve(reader, read, models.ShelfRead)
	l.shelve(reader, reading, models.ShelfCurrentlyReading)
	l.shelve(reader, wishlist, models.ShelfWantToRead)

	t.Run("Scores favorite and related genres", func(t *testing.T) {
		recs, err := l.engine().genreBased(ctx, readerOf(reader), 12)
		require.NoError(t, err)

		assert.Equal(t, []string{"Favorite Hit", "Related Pick", "Wishlist"}, titles(recs))
		assert.Equal(t, 100.0, recs[0].Score)
		assert.Equal(t, 80.0, recs[1].Score)
		assert.Equal(t, 90.0, recs[2].Score)

		assert.Equal(t, TypeGenreBased, recs[0].Type)
		assert.Equal(t, "You enjoy Mystery books and have read 1 of them", recs[0].Explanation)
		assert.Equal(t, "You enjoy Thriller books and have read 0 of them", recs[1].Explanation)
		assert.Equal(t, []string{
			"Matches your interest in Mystery",
			"Highly rated (4.2 stars)",
			"Popular choice (1,500 readers)",
		}, recs[0].Reasons)
		assert.Equal(t, 7, recs[0].Book.EstimatedReadingHours)
	})

	t.Run("Caps at twice the limit", func(t *testing.T) {
		recs, err := l.engine().genreBased(ctx, readerOf(reader), 1)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})

	t.Run("Degrades explanation when read counts fail", func(t *testing.T) {
		e := NewEngine(failingCatalog{Catalog: l.store, fail: "ReadCountsByGenre"}, DefaultParams(), nil)

		recs, err := e.genreBased(ctx, readerOf(reader), 12)
		require.NoError(t, err)
		require.NotEmpty(t, recs)
		assert.Equal(t, "Matches your interest in Mystery", recs[0].Explanation)
	})

	t.Run("No favorites yields nothing", func(t *testing.T) {
		recs, err := l.engine().genreBased(ctx, Reader{ID: reader.ID}, 12)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("Catalog failure is reported", func(t *testing.T) {
		e := NewEngine(failingCatalog{Catalog: l.store, fail: "FindBooks"}, DefaultParams(), nil)

		_, err := e.genreBased(ctx, readerOf(reader), 12)
		assert.ErrorIs(t, err, errBoom)
	})
}

func TestRatingBased(t *testing.T) {
	l := setupLibrary(t)
	ctx := context.Background()

	reader := l.user("reader")
	l.review(reader, l.book("Rated One", bookSpec{genre: "Fiction", rating: 4.0, reviews: 3}), 4)
	l.review(reader, l.book("Rated Two", bookSpec{genre: "Fiction", rating: 4.0, reviews: 3}), 4)

	l.book("Close Match", bookSpec{genre: "Fiction", rating: 4.3, reviews: 60, shelved: 600})
	l.book("Edge Match", bookSpec{genre: "Fiction", rating: 3.5, reviews: 12, shelved: 100})
	l.book("Too Far", bookSpec{genre: "Fiction", rating: 3.4, reviews: 80, shelved: 900})
	l.book("Too Few Reviews", bookSpec{genre: "Fiction", rating: 4.0, reviews: 9, shelved: 900})
	l.shelve(reader, l.book("Shelved Match", bookSpec{genre: "Fiction", rating: 4.1, reviews: 40, shelved: 2000}), models.ShelfWantToRead)

	recs, err := l.engine().ratingBased(ctx, readerOf(reader), 12)
	require.NoError(t, err)

	assert.Equal(t, []string{"Close Match", "Edge Match"}, titles(recs))
	assert.InDelta(t, 97.0, recs[0].Score, 0.0001)
	assert.InDelta(t, 75.0, recs[1].Score, 0.0001)
	assert.Equal(t, "Matches your average rating of 4.0 stars", recs[0].Explanation)
	assert.Equal(t, []string{
		"Rating matches your preferences (4.3 stars)",
		"Based on 60 reviews",
		"Trusted by 600 readers",
	}, recs[0].Reasons)

	t.Run("No reviews yields nothing", func(t *testing.T) {
		recs, err := l.engine().ratingBased(ctx, readerOf(l.user("newcomer")), 12)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestSimilarUsers(t *testing.T) {
	l := setupLibrary(t)
	ctx := context.Background()

	reader := l.user("reader")
	peer1 := l.user("peer1")
	peer2 := l.user("peer2")
	stranger := l.user("stranger")

	shared := l.book("Shared Love", bookSpec{genre: "Fantasy", rating: 4.5})
	meh := l.book("Meh", bookSpec{genre: "Fantasy", rating: 3.0})
	gem := l.book("Gem", bookSpec{genre: "Fantasy", rating: 4.4})
	hidden := l.book("Hidden", bookSpec{genre: "Fantasy", rating: 4.1})
	onShelf := l.book("On Shelf", bookSpec{genre: "Fantasy", rating: 4.0})
	noise := l.book("Noise", bookSpec{genre: "Fantasy", rating: 4.0})

	l.shelve(reader, shared, models.ShelfRead)
	l.review(reader, shared, 5)
	l.shelve(reader, meh, models.ShelfRead)
	l.review(reader, meh, 2)
	l.shelve(reader, onShelf, models.ShelfWantToRead)

	l.review(peer1, shared, 5)
	l.review(peer1, gem, 5)
	l.review(peer1, hidden, 4)
	l.review(peer1, meh, 5)
	l.review(peer1, onShelf, 5)

	l.review(peer2, shared, 4)
	l.review(peer2, gem, 4)

	l.review(stranger, shared, 3)
	l.review(stranger, noise, 5)

	recs, err := l.engine().similarUsers(ctx, readerOf(reader), 12)
	require.NoError(t, err)

	assert.Equal(t, []string{"Gem", "Hidden"}, titles(recs))
	assert.InDelta(t, 100.0, recs[0].Score, 0.0001)
	assert.InDelta(t, 65.0, recs[1].Score, 0.0001)
	assert.Equal(t, "Readers with similar tastes enjoyed this book", recs[0].Explanation)
	assert.Equal(t, []string{
		"Liked by 2 readers with similar taste",
		"Highly rated (4.4 stars)",
		"Community favorite",
	}, recs[0].Reasons)

	t.Run("Truncates to limit", func(t *testing.T) {
		recs, err := l.engine().similarUsers(ctx, readerOf(reader), 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"Gem"}, titles(recs))
	})

	t.Run("Reviewed but unshelved books stay eligible", func(t *testing.T) {
		wanderer := l.user("wanderer")
		l.review(wanderer, gem, 5)

		recs, err := l.engine().similarUsers(ctx, readerOf(wanderer), 12)
		require.NoError(t, err)
		assert.Contains(t, titles(recs), "Gem")
		assert.Contains(t, titles(recs), "Shared Love")
	})

	t.Run("No liked books yields nothing", func(t *testing.T) {
		recs, err := l.engine().similarUsers(ctx, readerOf(l.user("critic")), 12)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestTrending(t *testing.T) {
	l := setupLibrary(t)
	ctx := context.Background()

	reader := l.user("reader")
	l.shelve(reader, l.book("Mine", bookSpec{genre: "Fiction", rating: 4.5, shelved: 9000}), models.ShelfRead)
	l.book("Blockbuster", bookSpec{genre: "Fiction", rating: 4.6, shelved: 6000})
	l.book("Popular", bookSpec{genre: "Fiction", rating: 4.0, shelved: 1200})
	l.book("Rising", bookSpec{genre: "Fiction", rating: 3.9, shelved: 150})
	l.book("Obscure", bookSpec{genre: "Fiction", rating: 4.9, shelved: 50})
	l.book("Divisive", bookSpec{genre: "Fiction", rating: 3.7, shelved: 3000})

	recs, err := l.engine().trending(ctx, readerOf(reader), 12)
	require.NoError(t, err)

	assert.Equal(t, []string{"Blockbuster", "Popular", "Rising"}, titles(recs))
	assert.Equal(t, 100.0, recs[0].Score)
	assert.Equal(t, 78.0, recs[1].Score)
	assert.Equal(t, 56.0, recs[2].Score)
	assert.Equal(t, "Currently popular in the BookWorm community", recs[0].Explanation)
	assert.Equal(t, "Currently popular (6,000 readers)", recs[0].Reasons[0])
}

func TestNewReleases(t *testing.T) {
	l := setupLibrary(t)
	ctx := context.Background()

	l.book("New Fantasy", bookSpec{genre: "Fantasy", rating: 4.0, age: 2 * day})
	l.book("Older Fantasy", bookSpec{genre: "Fantasy", rating: 3.6, age: 20 * day})
	l.book("Ancient Fantasy", bookSpec{genre: "Fantasy", rating: 4.8, age: 200 * day})
	l.book("Weak Fantasy", bookSpec{genre: "Fantasy", rating: 3.0, age: day})
	l.book("New Romance", bookSpec{genre: "Romance", rating: 4.5, age: day})

	t.Run("Restricted to favorite genres", func(t *testing.T) {
		fan := l.user("fan", "Fantasy")

		recs, err := l.engine().newReleases(ctx, readerOf(fan), 12)
		require.NoError(t, err)

		assert.Equal(t, []string{"New Fantasy", "Older Fantasy"}, titles(recs))
		assert.Equal(t, 80.0, recs[0].Score)
		assert.Equal(t, 77.0, recs[1].Score)
		assert.Equal(t, "New release in your favorite genre: Fantasy", recs[0].Explanation)
		assert.Equal(t, []string{"New release (2 days ago)", "In your favorite genre", "Well-rated (4.0 stars)"}, recs[0].Reasons)
		assert.Equal(t, "New release (2 weeks ago)", recs[1].Reasons[0])
	})

	t.Run("All genres without favorites", func(t *testing.T) {
		recs, err := l.engine().newReleases(ctx, readerOf(l.user("browser")), 12)
		require.NoError(t, err)

		assert.Equal(t, []string{"New Romance", "New Fantasy", "Older Fantasy"}, titles(recs))
		assert.Equal(t, []float64{50, 47, 44}, []float64{recs[0].Score, recs[1].Score, recs[2].Score})
		assert.Equal(t, "Fresh addition", recs[0].Reasons[1])
		assert.Equal(t, "Recently added to the BookWorm library", recs[0].Explanation)
	})
}

func TestFallback(t *testing.T) {
	l := setupLibrary(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		l.book(fmt.Sprintf("Classic %02d", i), bookSpec{genre: "Classics", rating: 4.2, shelved: 20000 - i*100})
	}
	l.book("Rated Low", bookSpec{genre: "Classics", rating: 3.9, shelved: 99999})
	l.book("Niche", bookSpec{genre: "Classics", rating: 4.8, shelved: 500})

	recs, err := l.engine().fallback(ctx, Reader{ID: "anyone"}, 12)
	require.NoError(t, err)

	require.Len(t, recs, 12)
	assert.Equal(t, "Classic 00", recs[0].Book.Title)
	assert.Equal(t, 80.0, recs[0].Score)
	assert.Equal(t, 75.0, recs[1].Score)
	assert.Equal(t, 30.0, recs[10].Score)
	assert.Equal(t, 30.0, recs[11].Score)
	assert.Equal(t, "Popular choice among BookWorm readers", recs[0].Explanation)
	assert.Equal(t, []string{"Highly popular (20,000 readers)", "Excellent rating (4.2 stars)", "Community favorite"}, recs[0].Reasons)

	for _, r := range recs {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 100.0)
	}
}
