package recommendations

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/bookworm/pkg/domain"
	"github.com/jordanlanch/bookworm/pkg/logger"
	"github.com/jordanlanch/bookworm/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Reader is the user a strategy scores for
type Reader struct {
	ID             string
	FavoriteGenres []models.Genre
}

func (r Reader) favoriteNames() []string {
	names := make([]string, len(r.FavoriteGenres))
	for i, g := range r.FavoriteGenres {
		names[i] = g.Name
	}
	return names
}

func (r Reader) favoriteIDs() map[string]bool {
	ids := make(map[string]bool, len(r.FavoriteGenres))
	for _, g := range r.FavoriteGenres {
		ids[g.ID] = true
	}
	return ids
}

// StrategyFunc scores candidates for a reader. It must not mutate shared state.
type StrategyFunc func(ctx context.Context, reader Reader, limit int) ([]BookRecommendation, error)

// Generator produces a ranked recommendation list for a user
type Generator interface {
	Generate(ctx context.Context, userID string, limit int) []BookRecommendation
}

// Engine runs the scoring strategies and aggregates their output
type Engine struct {
	catalog    domain.Catalog
	genres     *GenreSimilarity
	params     Params
	logger     logger.Logger
	observer   Observer
	now        func() time.Time
	strategies map[Type]StrategyFunc
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithStrategy replaces the implementation of one strategy
func WithStrategy(t Type, fn StrategyFunc) EngineOption {
	return func(e *Engine) {
		e.strategies[t] = fn
	}
}

// WithGenreSimilarity sets the genre-similarity table
func WithGenreSimilarity(g *GenreSimilarity) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.genres = g
		}
	}
}

// WithEngineClock sets the time source used for release windows
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithEngineObserver reports strategy outcomes to o
func WithEngineObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine creates an engine over the catalog
func NewEngine(catalog domain.Catalog, params Params, log logger.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = logger.Default()
	}

	e := &Engine{
		catalog:  catalog,
		genres:   DefaultGenreSimilarity(),
		params:   params,
		logger:   log,
		observer: nopObserver{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	e.strategies = map[Type]StrategyFunc{
		TypeGenreBased:   e.genreBased,
		TypeRatingBased:  e.ratingBased,
		TypeSimilarUsers: e.similarUsers,
		TypeTrending:     e.trending,
		TypeNewReleases:  e.newReleases,
		TypeFallback:     e.fallback,
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// personalized strategies in merge order
var personalized = []Type{TypeGenreBased, TypeRatingBased, TypeSimilarUsers, TypeTrending, TypeNewReleases}

// Generate returns up to limit recommendations for userID. Strategy failures are
// logged and skipped, so the result may be empty but is never an error.
func (e *Engine) Generate(ctx context.Context, userID string, limit int) []BookRecommendation {
	limit = e.params.Limit(limit)

	user, err := e.catalog.GetUser(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return Aggregate(e.runAll(ctx, Reader{ID: userID}, limit, TypeFallback), limit, e.params.DuplicateBoost)
		}
		e.logger.Warn("failed to load user, serving cold start recommendations", "user_id", userID, "error", err)
		return e.coldStart(ctx, Reader{ID: userID}, limit)
	}

	reader := Reader{ID: user.ID, FavoriteGenres: user.FavoriteGenres}

	read, err := e.catalog.CountShelved(ctx, userID, models.ShelfRead)
	if err != nil {
		e.logger.Warn("failed to count read books, serving cold start recommendations", "user_id", userID, "error", err)
		return e.coldStart(ctx, reader, limit)
	}
	if read < e.params.MinBooksForPersonalization {
		return e.coldStart(ctx, reader, limit)
	}

	return Aggregate(e.runAll(ctx, reader, limit, personalized...), limit, e.params.DuplicateBoost)
}

func (e *Engine) coldStart(ctx context.Context, reader Reader, limit int) []BookRecommendation {
	return Aggregate(e.runAll(ctx, reader, limit, TypeFallback, TypeTrending), limit, e.params.DuplicateBoost)
}

// runAll runs the strategies concurrently, one result slot each
func (e *Engine) runAll(ctx context.Context, reader Reader, limit int, types ...Type) []StrategyResult {
	results := make([]StrategyResult, len(types))

	var g errgroup.Group
	g.SetLimit(len(personalized))
	for i, t := range types {
		g.Go(func() error {
			results[i] = e.run(ctx, t, reader, limit)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) run(ctx context.Context, t Type, reader Reader, limit int) (res StrategyResult) {
	res.Type = t
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Candidates = nil
			res.Err = fmt.Errorf("strategy panicked: %v", r)
		}
		if res.Err != nil {
			e.logger.Warn("recommendation strategy failed", "strategy", string(t), "user_id", reader.ID, "error", res.Err)
		}
		e.observer.StrategyCompleted(t, res.OK(), len(res.Candidates), time.Since(start))
	}()

	fn, ok := e.strategies[t]
	if !ok {
		res.Err = fmt.Errorf("unknown strategy %q", t)
		return res
	}

	res.Candidates, res.Err = fn(ctx, reader, limit)
	if res.Err != nil {
		res.Candidates = nil
	}
	return res
}
