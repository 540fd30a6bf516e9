package paybox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mstgnz/paybox/provider"
)

const testSecret = "s3cr3t"

func testConfig(apiURL string) Config {
	return Config{
		MerchantID:  "552170",
		SecretKey:   testSecret,
		APIURL:      apiURL,
		AppURL:      "https://shop.example.com",
		FrontendURL: "https://front.example.com",
		Currency:    "KZT",
		Description: "Balance top-up",
		Timeout:     2 * time.Second,
	}
}

// memStore is an in-memory account/order store and callback ledger
type memStore struct {
	mu       sync.Mutex
	accounts map[int64]*provider.Account
	orders   map[string]*provider.Order
	claims   map[string]string

	balanceUpdates int
	failBalance    error
}

func newMemStore(accounts ...*provider.Account) *memStore {
	s := &memStore{
		accounts: make(map[int64]*provider.Account),
		orders:   make(map[string]*provider.Order),
		claims:   make(map[string]string),
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *memStore) FindAccountByEmail(_ context.Context, email string) (*provider.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == NormalizeEmail(email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, provider.ErrNotFound
}

func (s *memStore) FindAccountByID(_ context.Context, id int64) (*provider.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) UpdateBalance(_ context.Context, id int64, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBalance != nil {
		return s.failBalance
	}
	a, ok := s.accounts[id]
	if !ok {
		return provider.ErrNotFound
	}
	a.Balance += delta
	s.balanceUpdates++
	return nil
}

func (s *memStore) UpdateSavedCard(_ context.Context, id int64, card *provider.SavedCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return provider.ErrNotFound
	}
	a.Card = card
	return nil
}

func (s *memStore) SaveOrder(_ context.Context, order *provider.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *memStore) FindOrderByID(_ context.Context, id string) (*provider.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) UpdateOrderStatus(_ context.Context, id string, status provider.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return provider.ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *memStore) Claim(_ context.Context, key, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.claims[key]; taken {
		return false, nil
	}
	s.claims[key] = paymentID
	return true, nil
}

func (s *memStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

func (s *memStore) balance(id int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance
}

// fakeGateway serves canned XML per endpoint and counts calls
type fakeGateway struct {
	server  *httptest.Server
	replies map[string]string
	calls   map[string]*atomic.Int32
	forms   map[string]url.Values
	mu      sync.Mutex
}

func newFakeGateway(t *testing.T, replies map[string]string) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		replies: replies,
		calls:   make(map[string]*atomic.Int32),
		forms:   make(map[string]url.Values),
	}
	for path := range replies {
		g.calls[path] = &atomic.Int32{}
	}

	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		g.mu.Lock()
		g.forms[r.URL.Path] = r.PostForm
		g.mu.Unlock()

		counter, ok := g.calls[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		counter.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(g.replies[r.URL.Path]))
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) count(path string) int32 {
	if c, ok := g.calls[path]; ok {
		return c.Load()
	}
	return 0
}

func (g *fakeGateway) form(path string) url.Values {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.forms[path]
}

// recordingEvents keeps logged events
type recordingEvents struct {
	mu     sync.Mutex
	events []provider.Event
}

func (r *recordingEvents) LogEvent(_ context.Context, e provider.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) kinds() []provider.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]provider.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func strPtr(s string) *string { return &s }
