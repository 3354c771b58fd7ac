package recommendations

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jordanlanch/bookworm/pkg/catalog"
	"github.com/jordanlanch/bookworm/pkg/domain"
	"github.com/jordanlanch/bookworm/pkg/logger"
	"github.com/jordanlanch/bookworm/pkg/models"
	"github.com/jordanlanch/bookworm/pkg/testdata"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// library wraps a sqlite catalog with terse fixture helpers
type library struct {
	t      *testing.T
	store  *catalog.Store
	genres map[string]models.Genre
	now    time.Time
}

func setupLibrary(t *testing.T) *library {
	client := testdata.NewSQLiteClient(t)
	return &library{
		t:      t,
		store:  catalog.NewStore(client.DB, dialect.SQLite, logger.Nop()),
		genres: make(map[string]models.Genre),
		now:    time.Now().UTC(),
	}
}

func (l *library) genre(name string) models.Genre {
	if g, ok := l.genres[name]; ok {
		return g
	}
	g := models.Genre{Name: name}
	require.NoError(l.t, l.store.InsertGenre(context.Background(), &g))
	l.genres[name] = g
	return g
}

type bookSpec struct {
	genre   string
	rating  float64
	shelved int
	reviews int
	age     time.Duration
}

func (l *library) book(title string, spec bookSpec) models.Book {
	if spec.age == 0 {
		spec.age = 365 * 24 * time.Hour
	}
	b := models.Book{
		Title:         title,
		Author:        "Author of " + title,
		GenreID:       l.genre(spec.genre).ID,
		TotalPages:    320,
		AverageRating: spec.rating,
		TotalShelved:  spec.shelved,
		TotalReviews:  spec.reviews,
		CreatedAt:     l.now.Add(-spec.age),
	}
	require.NoError(l.t, l.store.InsertBook(context.Background(), &b))
	b.GenreName = spec.genre
	return b
}

func (l *library) user(name string, favorites ...string) models.User {
	u := models.User{Name: name, Email: name + "@example.com"}
	for _, f := range favorites {
		u.FavoriteGenres = append(u.FavoriteGenres, l.genre(f))
	}
	require.NoError(l.t, l.store.InsertUser(context.Background(), &u))
	return u
}

func (l *library) shelve(u models.User, b models.Book, status models.ShelfStatus) {
	require.NoError(l.t, l.store.InsertShelf(context.Background(), &models.ShelfEntry{UserID: u.ID, BookID: b.ID, Status: status}))
}

func (l *library) review(u models.User, b models.Book, rating int) {
	require.NoError(l.t, l.store.InsertReview(context.Background(), &models.Review{
		UserID: u.ID, BookID: b.ID, Rating: rating, Status: models.ReviewApproved,
	}))
}

func (l *library) engine(opts ...EngineOption) *Engine {
	opts = append([]EngineOption{WithEngineClock(func() time.Time { return l.now })}, opts...)
	return NewEngine(l.store, DefaultParams(), logger.Nop(), opts...)
}

func readerOf(u models.User) Reader {
	return Reader{ID: u.ID, FavoriteGenres: u.FavoriteGenres}
}

func titles(recs []BookRecommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Book.Title
	}
	return out
}

// failingCatalog fails the named operation and delegates the rest
type failingCatalog struct {
	domain.Catalog
	fail string
}

func (f failingCatalog) CountShelved(ctx context.Context, userID string, status models.ShelfStatus) (int, error) {
	if f.fail == "CountShelved" {
		return 0, errBoom
	}
	return f.Catalog.CountShelved(ctx, userID, status)
}

func (f failingCatalog) ReadCountsByGenre(ctx context.Context, userID string) (map[string]int, error) {
	if f.fail == "ReadCountsByGenre" {
		return nil, errBoom
	}
	return f.Catalog.ReadCountsByGenre(ctx, userID)
}

func (f failingCatalog) FindBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	if f.fail == "FindBooks" {
		return nil, errBoom
	}
	return f.Catalog.FindBooks(ctx, filter)
}

func (f failingCatalog) GetUser(ctx context.Context, id string) (*models.User, error) {
	if f.fail == "GetUser" {
		return nil, errBoom
	}
	return f.Catalog.GetUser(ctx, id)
}

// countingStrategies replaces every strategy with a stub that records calls
type countingStrategies struct {
	mu    sync.Mutex
	calls map[Type]int
	out   map[Type][]BookRecommendation
	errs  map[Type]error
}

func newCountingStrategies() *countingStrategies {
	return &countingStrategies{
		calls: make(map[Type]int),
		out:   make(map[Type][]BookRecommendation),
		errs:  make(map[Type]error),
	}
}

func (c *countingStrategies) options() []EngineOption {
	var opts []EngineOption
	for _, t := range AllTypes {
		opts = append(opts, WithStrategy(t, func(ctx context.Context, r Reader, limit int) ([]BookRecommendation, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.calls[t]++
			return c.out[t], c.errs[t]
		}))
	}
	return opts
}

func (c *countingStrategies) called() []Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	var types []Type
	for _, t := range AllTypes {
		if c.calls[t] > 0 {
			types = append(types, t)
		}
	}
	return types
}

func candidate(bookID string, t Type, score float64, reasons ...string) BookRecommendation {
	return BookRecommendation{
		Book:        models.BookView{Book: models.Book{ID: bookID, Title: bookID}},
		Type:        t,
		Score:       score,
		Explanation: string(t) + " explanation",
		Reasons:     reasons,
	}
}

// memStore is an in-memory Store
type memStore struct {
	mu   sync.Mutex
	rows []Recommendation

	listErr    error
	replaceErr error
	listCalls  int
}

func (m *memStore) ListActive(_ context.Context, userID string, f ActiveFilter, now time.Time) ([]Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []Recommendation
	for _, r := range m.rows {
		if r.UserID != userID || !r.ExpiresAt.After(now) {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if !f.IncludeViewed && r.Viewed {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) LatestForBook(_ context.Context, userID, bookID string) (*Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *Recommendation
	for i := range m.rows {
		r := m.rows[i]
		if r.UserID == userID && r.BookID == bookID && (latest == nil || r.CreatedAt.After(latest.CreatedAt)) {
			latest = &r
		}
	}
	if latest == nil {
		return nil, ErrRecommendationNotFound
	}
	return latest, nil
}

func (m *memStore) deleteWhere(keep func(Recommendation) bool) int64 {
	var kept []Recommendation
	var n int64
	for _, r := range m.rows {
		if keep(r) {
			kept = append(kept, r)
		} else {
			n++
		}
	}
	m.rows = kept
	return n
}

func (m *memStore) ReplaceActive(_ context.Context, userID string, recs []Recommendation, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.deleteWhere(func(r Recommendation) bool { return r.UserID != userID || !r.ExpiresAt.After(now) })
	m.rows = append(m.rows, recs...)
	return nil
}

func (m *memStore) DeleteActive(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteWhere(func(r Recommendation) bool { return r.UserID != userID || !r.ExpiresAt.After(now) }), nil
}

func (m *memStore) mark(userID, id string, set func(*Recommendation)) (*Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == userID {
			set(&m.rows[i])
			r := m.rows[i]
			return &r, nil
		}
	}
	return nil, ErrRecommendationNotFound
}

func (m *memStore) MarkViewed(_ context.Context, userID, id string, _ time.Time) (*Recommendation, error) {
	return m.mark(userID, id, func(r *Recommendation) { r.Viewed = true })
}

func (m *memStore) MarkClicked(_ context.Context, userID, id string, _ time.Time) (*Recommendation, error) {
	return m.mark(userID, id, func(r *Recommendation) { r.Clicked = true })
}

func (m *memStore) MarkAddedToShelf(_ context.Context, userID, bookID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.rows {
		r := &m.rows[i]
		if r.UserID == userID && r.BookID == bookID && r.ExpiresAt.After(now) && !r.AddedToShelf {
			r.AddedToShelf = true
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteWhere(func(r Recommendation) bool { return r.ExpiresAt.After(now) }), nil
}

func (m *memStore) aggregate(match func(Recommendation) bool) []TypeCounts {
	byType := make(map[Type]*TypeCounts)
	for _, r := range m.rows {
		if !match(r) {
			continue
		}
		c, ok := byType[r.Type]
		if !ok {
			c = &TypeCounts{Type: r.Type}
			byType[r.Type] = c
		}
		c.AvgScore = (c.AvgScore*float64(c.Count) + r.Score) / float64(c.Count+1)
		c.Count++
		if r.Viewed {
			c.Viewed++
		}
		if r.Clicked {
			c.Clicked++
		}
		if r.AddedToShelf {
			c.Added++
		}
	}

	var out []TypeCounts
	for _, t := range AllTypes {
		if c, ok := byType[t]; ok {
			out = append(out, *c)
		}
	}
	return out
}

func (m *memStore) TypeCountsByUser(_ context.Context, userID string) ([]TypeCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aggregate(func(r Recommendation) bool { return r.UserID == userID }), nil
}

func (m *memStore) TypeCounts(_ context.Context) ([]TypeCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aggregate(func(Recommendation) bool { return true }), nil
}

func (m *memStore) CountActive(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) TopBooks(_ context.Context, limit int) ([]BookCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byBook := make(map[string]*BookCount)
	var order []string
	for _, r := range m.rows {
		c, ok := byBook[r.BookID]
		if !ok {
			c = &BookCount{BookID: r.BookID}
			byBook[r.BookID] = c
			order = append(order, r.BookID)
		}
		c.AvgScore = (c.AvgScore*float64(c.Count) + r.Score) / float64(c.Count+1)
		c.Count++
	}

	out := make([]BookCount, 0, len(order))
	for _, id := range order {
		out = append(out, *byBook[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeGenerator returns a fixed list and counts calls
type fakeGenerator struct {
	mu    sync.Mutex
	recs  []BookRecommendation
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, limit int) []BookRecommendation {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	out := make([]BookRecommendation, 0, len(g.recs))
	for _, r := range g.recs {
		r.Reasons = append([]string(nil), r.Reasons...)
		out = append(out, r)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeBooks is an in-memory BookLookup
type fakeBooks map[string]models.Book

func (f fakeBooks) GetBook(_ context.Context, id string) (*models.Book, error) {
	b, ok := f[id]
	if !ok {
		return nil, domain.NewNotFoundError("book")
	}
	return &b, nil
}

func (f fakeBooks) GetBooks(_ context.Context, ids []string) ([]models.Book, error) {
	var out []models.Book
	for _, id := range ids {
		if b, ok := f[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// mapCache is an in-memory Cache storing values by key
type mapCache struct {
	mu      sync.Mutex
	values  map[string]any
	deletes []string
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]any)}
}

func (c *mapCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return false, nil
	}
	switch d := dest.(type) {
	case *UserStats:
		*d = v.(UserStats)
	case *SystemStats:
		*d = v.(SystemStats)
	}
	return true, nil
}

func (c *mapCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
		c.deletes = append(c.deletes, k)
	}
	return nil
}

func (c *mapCache) DeletePattern(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for k := range c.values {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.values, k)
			c.deletes = append(c.deletes, k)
			n++
		}
	}
	return n, nil
}
