package recommendations

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jordanlanch/bookworm/pkg/models"
)

const (
	genreMinRating      = 3.5
	ratingWindow        = 0.5
	ratingMinReviews    = 10
	likedRating         = 4
	trendingMinRating   = 3.8
	trendingMinShelved  = 100
	releaseMinRating    = 3.5
	releaseWindowMonths = 6
	fallbackMinRating   = 4.0
	fallbackMinShelved  = 1000
)

func newRecommendation(b models.Book, t Type, score float64, explanation string, reasons ...string) BookRecommendation {
	return BookRecommendation{
		Book:        models.NewBookView(b),
		Type:        t,
		Score:       score,
		Explanation: explanation,
		Reasons:     reasons,
	}
}

func (e *Engine) genreBased(ctx context.Context, r Reader, limit int) ([]BookRecommendation, error) {
	if len(r.FavoriteGenres) == 0 {
		return nil, nil
	}

	favorites := r.favoriteIDs()
	genreIDs := make([]string, 0, len(favorites))
	for _, g := range r.FavoriteGenres {
		genreIDs = append(genreIDs, g.ID)
	}

	related, err := e.catalog.GenresByName(ctx, e.genres.Expand(r.favoriteNames()))
	if err != nil {
		return nil, fmt.Errorf("load related genres: %w", err)
	}
	for _, g := range related {
		if !favorites[g.ID] {
			genreIDs = append(genreIDs, g.ID)
		}
	}

	reading, err := e.catalog.ShelvedBookIDs(ctx, r.ID, models.ShelfRead, models.ShelfCurrentlyReading)
	if err != nil {
		return nil, fmt.Errorf("load shelves: %w", err)
	}

	books, err := e.catalog.FindBooks(ctx, models.BookFilter{
		GenreIDs:   genreIDs,
		ExcludeIDs: reading,
		MinRating:  models.Float(genreMinRating),
		OrderBy:    []models.BookOrder{models.OrderRatingDesc, models.OrderShelvedDesc},
		Limit:      limit * 2,
	})
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}

	// Optional enrichment; explanations fall back to the generic wording
	readCounts, err := e.catalog.ReadCountsByGenre(ctx, r.ID)
	countsKnown := err == nil
	if err != nil {
		e.logger.Debug("read counts unavailable", "user_id", r.ID, "error", err)
	}

	recs := make([]BookRecommendation, 0, len(books))
	for _, b := range books {
		score := 70.0
		if favorites[b.GenreID] {
			score += 20
		} else {
			score += 10
		}
		if b.AverageRating >= 4 {
			score += 10
		}
		if b.TotalShelved > 1000 {
			score += 10
		}

		recs = append(recs, newRecommendation(b, TypeGenreBased, math.Min(score, 100),
			explainGenre(b.GenreName, readCounts[b.GenreID], countsKnown),
			interestReason(b.GenreName),
			highlyRatedReason(b),
			popularReason(b),
		))
	}
	return recs, nil
}

func (e *Engine) ratingBased(ctx context.Context, r Reader, limit int) ([]BookRecommendation, error) {
	reviews, err := e.catalog.ApprovedReviewsByUser(ctx, r.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	if len(reviews) == 0 {
		return nil, nil
	}

	var total int
	for _, rv := range reviews {
		total += rv.Rating
	}
	mean := float64(total) / float64(len(reviews))

	shelved, err := e.catalog.ShelvedBookIDs(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("load shelves: %w", err)
	}

	books, err := e.catalog.FindBooks(ctx, models.BookFilter{
		ExcludeIDs: shelved,
		MinRating:  models.Float(mean - ratingWindow),
		MaxRating:  models.Float(mean + ratingWindow),
		MinReviews: ratingMinReviews,
		OrderBy:    []models.BookOrder{models.OrderShelvedDesc, models.OrderNewest},
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}

	recs := make([]BookRecommendation, 0, len(books))
	for _, b := range books {
		score := 80 - 10*math.Abs(b.AverageRating-mean)
		if b.TotalShelved > 500 {
			score += 10
		}
		if b.TotalReviews > 50 {
			score += 10
		}

		recs = append(recs, newRecommendation(b, TypeRatingBased, e.params.clamp(score),
			explainRating(mean),
			fmt.Sprintf("Rating matches your preferences (%s stars)", stars(b.AverageRating)),
			fmt.Sprintf("Based on %s reviews", count(b.TotalReviews)),
			fmt.Sprintf("Trusted by %s readers", count(b.TotalShelved)),
		))
	}
	return recs, nil
}

type tally struct {
	count int
	book  models.Book
}

func (e *Engine) similarUsers(ctx context.Context, r Reader, limit int) ([]BookRecommendation, error) {
	reviewed, err := e.catalog.ApprovedReviewsByUser(ctx, r.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}

	var liked []string
	for _, rv := range reviewed {
		if rv.Rating >= likedRating {
			liked = append(liked, rv.BookID)
		}
	}
	if len(liked) == 0 {
		return nil, nil
	}

	peers, err := e.catalog.ReviewersOfBooks(ctx, liked, r.ID, likedRating)
	if err != nil {
		return nil, fmt.Errorf("find similar readers: %w", err)
	}
	if len(peers) == 0 {
		return nil, nil
	}

	// Only shelved books are excluded; a reviewed book that left the shelves is fair game
	shelved, err := e.catalog.ShelvedBookIDs(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("load shelves: %w", err)
	}

	peerReviews, err := e.catalog.ApprovedReviewsByUsers(ctx, peers, likedRating, shelved, limit*3)
	if err != nil {
		return nil, fmt.Errorf("load similar readers' reviews: %w", err)
	}

	tallies := make(map[string]*tally)
	var order []string
	for _, rv := range peerReviews {
		t, ok := tallies[rv.BookID]
		if !ok {
			t = &tally{}
			tallies[rv.BookID] = t
			order = append(order, rv.BookID)
		}
		t.count++
	}
	if len(order) == 0 {
		return nil, nil
	}

	books, err := e.catalog.GetBooks(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}
	for _, b := range books {
		tallies[b.ID].book = b
	}

	maxCount := 0
	for _, t := range tallies {
		if t.count > maxCount {
			maxCount = t.count
		}
	}

	recs := make([]BookRecommendation, 0, len(order))
	for _, id := range order {
		t := tallies[id]
		if t.book.ID == "" {
			continue
		}

		score := float64(t.count)/float64(maxCount)*70 + 30
		recs = append(recs, newRecommendation(t.book, TypeSimilarUsers, score,
			explainSimilarUsers,
			similarReadersReason(t.count),
			highlyRatedReason(t.book),
			reasonCommunity,
		))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (e *Engine) trending(ctx context.Context, r Reader, limit int) ([]BookRecommendation, error) {
	shelved, err := e.catalog.ShelvedBookIDs(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("load shelves: %w", err)
	}

	books, err := e.catalog.FindBooks(ctx, models.BookFilter{
		ExcludeIDs: shelved,
		MinRating:  models.Float(trendingMinRating),
		MinShelved: trendingMinShelved,
		OrderBy:    []models.BookOrder{models.OrderShelvedDesc, models.OrderNewest},
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}

	recs := make([]BookRecommendation, 0, len(books))
	for i, b := range books {
		score := 60.0
		if b.TotalShelved > 1000 {
			score += 20
		}
		if b.TotalShelved > 5000 {
			score += 10
		}
		if b.AverageRating >= 4.5 {
			score += 10
		}
		score -= float64(2 * i)

		recs = append(recs, newRecommendation(b, TypeTrending, e.params.clamp(score),
			explainTrending,
			fmt.Sprintf("Currently popular (%s readers)", count(b.TotalShelved)),
			highlyRatedReason(b),
			reasonCommunity,
		))
	}
	return recs, nil
}

func (e *Engine) newReleases(ctx context.Context, r Reader, limit int) ([]BookRecommendation, error) {
	shelved, err := e.catalog.ShelvedBookIDs(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("load shelves: %w", err)
	}

	favorites := r.favoriteIDs()
	filter := models.BookFilter{
		ExcludeIDs:   shelved,
		MinRating:    models.Float(releaseMinRating),
		CreatedAfter: e.now().AddDate(0, -releaseWindowMonths, 0),
		OrderBy:      []models.BookOrder{models.OrderNewest, models.OrderRatingDesc},
		Limit:        limit,
	}
	for _, g := range r.FavoriteGenres {
		filter.GenreIDs = append(filter.GenreIDs, g.ID)
	}

	books, err := e.catalog.FindBooks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}

	explanation := explainNewRelease(r.favoriteNames())
	now := e.now()

	recs := make([]BookRecommendation, 0, len(books))
	for i, b := range books {
		score := 50.0
		genreReason := reasonFreshAddition
		if favorites[b.GenreID] {
			score += 30
			genreReason = reasonFavoriteGenre
		}
		score -= float64(3 * i)

		recs = append(recs, newRecommendation(b, TypeNewReleases, e.params.clamp(score),
			explanation,
			fmt.Sprintf("New release (%s)", timeAgo(b.CreatedAt, now)),
			genreReason,
			fmt.Sprintf("Well-rated (%s stars)", stars(b.AverageRating)),
		))
	}
	return recs, nil
}

func (e *Engine) fallback(ctx context.Context, _ Reader, limit int) ([]BookRecommendation, error) {
	books, err := e.catalog.FindBooks(ctx, models.BookFilter{
		MinRating:  models.Float(fallbackMinRating),
		MinShelved: fallbackMinShelved,
		OrderBy:    []models.BookOrder{models.OrderShelvedDesc, models.OrderRatingDesc},
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}

	recs := make([]BookRecommendation, 0, len(books))
	for i, b := range books {
		recs = append(recs, newRecommendation(b, TypeFallback, e.params.clamp(80-float64(5*i)),
			explainFallback,
			fmt.Sprintf("Highly popular (%s readers)", count(b.TotalShelved)),
			fmt.Sprintf("Excellent rating (%s stars)", stars(b.AverageRating)),
			reasonCommunity,
		))
	}
	return recs, nil
}
