package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/market-sync/internal/models"
	"github.com/trogers1052/market-sync/internal/provider"
)

// memStore is an in-memory Store. InTx works on a copy of the state that is
// swapped in only when the callback succeeds.
type memStore struct {
	mu        sync.Mutex
	state     *memState
	listErr   error
	barErr    map[string]error // ticker -> error from InsertPriceBar
	newsErr   error
	createErr error
}

type memState struct {
	nextID    int
	companies []*models.Company
	bars      map[int]map[time.Time]models.PriceBar
	news      map[int]map[string]models.NewsItem
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			bars: make(map[int]map[time.Time]models.PriceBar),
			news: make(map[int]map[string]models.NewsItem),
		},
		barErr: make(map[string]error),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:    s.nextID,
		companies: append([]*models.Company(nil), s.companies...),
		bars:      make(map[int]map[time.Time]models.PriceBar, len(s.bars)),
		news:      make(map[int]map[string]models.NewsItem, len(s.news)),
	}
	for id, rows := range s.bars {
		m := make(map[time.Time]models.PriceBar, len(rows))
		for k, v := range rows {
			m[k] = v
		}
		c.bars[id] = m
	}
	for id, rows := range s.news {
		m := make(map[string]models.NewsItem, len(rows))
		for k, v := range rows {
			m[k] = v
		}
		c.news[id] = m
	}
	return c
}

func (s *memStore) addCompany(ticker, industry string) *models.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.nextID++
	c := &models.Company{ID: s.state.nextID, Ticker: ticker, Name: ticker + " Inc", Industry: industry}
	s.state.companies = append(s.state.companies, c)
	return c
}

// seedBar stores a bar directly, bypassing the engine
func (s *memStore) seedBar(companyID int, date time.Time, closePrice float64) models.PriceBar {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.nextID++
	p := decimal.NewFromFloat(closePrice)
	bar := models.PriceBar{
		ID: s.state.nextID, CompanyID: companyID, Date: date,
		Open: p, High: p, Low: p, Close: p, Volume: 100,
	}
	if s.state.bars[companyID] == nil {
		s.state.bars[companyID] = make(map[time.Time]models.PriceBar)
	}
	s.state.bars[companyID][date] = bar
	return bar
}

func (s *memStore) seedNews(companyID int, link string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.nextID++
	if s.state.news[companyID] == nil {
		s.state.news[companyID] = make(map[string]models.NewsItem)
	}
	s.state.news[companyID][link] = models.NewsItem{ID: s.state.nextID, CompanyID: companyID, Link: link}
}

func (s *memStore) barsFor(companyID int) []models.PriceBar {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PriceBar
	for _, b := range s.state.bars[companyID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *memStore) newsFor(companyID int) []models.NewsItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.NewsItem
	for _, n := range s.state.news[companyID] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Link < out[j].Link })
	return out
}

func (s *memStore) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]*models.Company, len(s.state.companies))
	copy(out, s.state.companies)
	return out, nil
}

func (s *memStore) FindCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.state.companies {
		if c.Ticker == ticker {
			return c, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateCompany(ctx context.Context, c *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.state.nextID++
	c.ID = s.state.nextID
	s.state.companies = append(s.state.companies, c)
	return nil
}

func (s *memStore) MaxPriceDate(ctx context.Context, companyID int) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latest time.Time
		found  bool
	)
	for d := range s.state.bars[companyID] {
		if !found || d.After(latest) {
			latest, found = d, true
		}
	}
	return latest, found, nil
}

func (s *memStore) NewsLinks(ctx context.Context, companyID int) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	links := make(map[string]struct{})
	for link := range s.state.news[companyID] {
		links[link] = struct{}{}
	}
	return links, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	s.mu.Lock()
	staged := s.state.clone()
	s.mu.Unlock()

	tx := &memTx{store: s, state: staged}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = staged
	s.mu.Unlock()
	return nil
}

type memTx struct {
	store *memStore
	state *memState
}

func (t *memTx) tickerOf(companyID int) string {
	for _, c := range t.state.companies {
		if c.ID == companyID {
			return c.Ticker
		}
	}
	return ""
}

func (t *memTx) InsertPriceBar(ctx context.Context, bar *models.PriceBar) (bool, error) {
	if err := t.store.barErr[t.tickerOf(bar.CompanyID)]; err != nil {
		return false, err
	}
	rows := t.state.bars[bar.CompanyID]
	if rows == nil {
		rows = make(map[time.Time]models.PriceBar)
		t.state.bars[bar.CompanyID] = rows
	}
	if _, ok := rows[bar.Date]; ok {
		return false, nil
	}
	t.state.nextID++
	bar.ID = t.state.nextID
	rows[bar.Date] = *bar
	return true, nil
}

func (t *memTx) ListPriceBars(ctx context.Context, companyID int, from, to time.Time) ([]*models.PriceBar, error) {
	var out []*models.PriceBar
	for d, b := range t.state.bars[companyID] {
		if d.Before(from) || d.After(to) {
			continue
		}
		bar := b
		out = append(out, &bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *memTx) FillDerived(ctx context.Context, barID int, d models.Derived) (bool, error) {
	for cid, rows := range t.state.bars {
		for date, b := range rows {
			if b.ID != barID {
				continue
			}
			if !b.Derived.Fillable(d) {
				return false, nil
			}
			b.Derived = b.Derived.FillFrom(d)
			t.state.bars[cid][date] = b
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertNewsItem(ctx context.Context, item *models.NewsItem) (bool, error) {
	if t.store.newsErr != nil {
		return false, t.store.newsErr
	}
	rows := t.state.news[item.CompanyID]
	if rows == nil {
		rows = make(map[string]models.NewsItem)
		t.state.news[item.CompanyID] = rows
	}
	if _, ok := rows[item.Link]; ok {
		return false, nil
	}
	t.state.nextID++
	item.ID = t.state.nextID
	rows[item.Link] = *item
	return true, nil
}

// fakeMarket scripts provider responses per ticker
type fakeMarket struct {
	mu         sync.Mutex
	bars       map[string][]provider.RawBar
	barsErr    map[string]error
	rateLimits map[string]int
	statements map[string]*provider.AnnualStatements
	news       map[string][]provider.Article
	profiles   map[string]*provider.Profile
	requests   []provider.BarsRequest
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		bars:       make(map[string][]provider.RawBar),
		barsErr:    make(map[string]error),
		rateLimits: make(map[string]int),
		statements: make(map[string]*provider.AnnualStatements),
		news:       make(map[string][]provider.Article),
		profiles:   make(map[string]*provider.Profile),
	}
}

func (m *fakeMarket) GetDailyBars(ctx context.Context, req provider.BarsRequest) ([]provider.RawBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.rateLimits[req.Symbol] > 0 {
		m.rateLimits[req.Symbol]--
		return nil, provider.ErrRateLimited
	}
	if err := m.barsErr[req.Symbol]; err != nil {
		return nil, err
	}
	// Rows are returned regardless of the requested range, the way a
	// provider may pad its response.
	return m.bars[req.Symbol], nil
}

func (m *fakeMarket) GetAnnualStatements(ctx context.Context, symbol string) (*provider.AnnualStatements, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statements[symbol]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return st, nil
}

func (m *fakeMarket) GetLatestNews(ctx context.Context, symbol string, count int) ([]provider.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	articles := m.news[symbol]
	if len(articles) > count {
		articles = articles[:count]
	}
	return articles, nil
}

func (m *fakeMarket) GetEntityProfile(ctx context.Context, symbol string) (*provider.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[symbol]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return p, nil
}

func (m *fakeMarket) barRequests() []provider.BarsRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.BarsRequest(nil), m.requests...)
}

type fakeNews struct {
	queries  []string
	articles map[string][]provider.Article
	err      error
}

func (n *fakeNews) SearchNews(ctx context.Context, query string, count int) ([]provider.Article, error) {
	n.queries = append(n.queries, query)
	if n.err != nil {
		return nil, n.err
	}
	return n.articles[query], nil
}

type recordingPublisher struct {
	events []models.SyncEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event models.SyncEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeLocker struct {
	held     map[string]bool
	released []string
}

func (l *fakeLocker) Acquire(ctx context.Context, name string) (bool, error) {
	if l.held[name] {
		return false, nil
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	l.held[name] = true
	return true, nil
}

func (l *fakeLocker) Release(ctx context.Context, name string) error {
	delete(l.held, name)
	l.released = append(l.released, name)
	return nil
}

func rawBar(date string, price float64) provider.RawBar {
	vol := 1000.0
	return provider.RawBar{Date: date, Open: &price, High: &price, Low: &price, Close: &price, Volume: &vol}
}

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

var errBoom = errors.New("boom")
