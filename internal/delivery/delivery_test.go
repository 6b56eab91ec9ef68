package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/queue"
	"github.com/shaiso/Prospector/internal/repo"
)

// --- Fakes ---

type markCall struct {
	sent    bool
	next    *time.Time
	res     domain.DeliveryResult
	payload map[string]any
}

type fakeStore struct {
	mu    sync.Mutex
	marks []markCall
	rows  map[string]*domain.Delivery
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*domain.Delivery)}
}

func (s *fakeStore) Claim(ctx context.Context, workerID string, filter queue.Filter, limit int) ([]domain.Delivery, error) {
	return nil, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, id uuid.UUID, workerID string, payload map[string]any, res domain.DeliveryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = append(s.marks, markCall{sent: true, res: res, payload: payload})
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id uuid.UUID, workerID string, payload map[string]any, res domain.DeliveryResult, next *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = append(s.marks, markCall{next: next, res: res, payload: payload})
	return nil
}

func (s *fakeStore) Enqueue(ctx context.Context, d *domain.Delivery) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := d.AccountID.String() + d.ListingHash
	if _, ok := s.rows[key]; ok {
		return false, nil
	}
	s.rows[key] = d
	return true, nil
}

func (s *fakeStore) last(t *testing.T) markCall {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.marks) == 0 {
		t.Fatal("no mark calls")
	}
	return s.marks[len(s.marks)-1]
}

type fakeLeads struct {
	leads map[uuid.UUID]*domain.Lead
}

func (f *fakeLeads) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return l, nil
}

func (f *fakeLeads) ListWithoutDelivery(ctx context.Context, accountID *uuid.UUID, limit int) ([]domain.Lead, error) {
	var out []domain.Lead
	for _, l := range f.leads {
		if accountID != nil && l.AccountID != *accountID {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func testLead() *domain.Lead {
	return &domain.Lead{
		ID:         uuid.New(),
		AccountID:  uuid.New(),
		Source:     "craigslist",
		ListingURL: "https://austin.craigslist.org/cto/d/austin-civic/7712345678.html",
		City:       "austin",
		Phone:      "5125550142",
		Listing: domain.Listing{
			Title:       "Honda Civic LX, runs great",
			Description: "Selling my 2012 civic",
			Make:        "honda",
			Price:       7900,
		},
	}
}

func newTestWorker(t *testing.T, url string, store *fakeStore, leads *fakeLeads, maxAttempts int) *Worker {
	t.Helper()
	poster, err := NewPoster(PosterConfig{URL: url, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewPoster: %v", err)
	}
	return NewWorker(WorkerConfig{
		WorkerID:    "test-worker",
		Deliveries:  store,
		Leads:       leads,
		Poster:      poster,
		Backoff:     queue.DefaultBackoff(),
		MaxAttempts: maxAttempts,
	})
}

// --- Worker ---

func TestWorker_BackoffThenSent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("upstream down"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	lead := testLead()
	store := newFakeStore()
	w := newTestWorker(t, server.URL, store, &fakeLeads{leads: map[uuid.UUID]*domain.Lead{lead.ID: lead}}, 12)

	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	d := &domain.Delivery{ID: uuid.New(), AccountID: lead.AccountID, LeadID: lead.ID, ListingHash: LeadHash(lead)}

	wantDelays := []time.Duration{10 * time.Minute, 20 * time.Minute, 40 * time.Minute}
	for i, want := range wantDelays {
		d.Attempts = i + 1
		if err := w.Process(context.Background(), d); err != nil {
			t.Fatalf("attempt %d: %v", d.Attempts, err)
		}
		m := store.last(t)
		if m.sent {
			t.Fatalf("attempt %d: expected failure", d.Attempts)
		}
		if m.next == nil {
			t.Fatalf("attempt %d: expected next_attempt_at", d.Attempts)
		}
		if got := m.next.Sub(now); got != want {
			t.Errorf("attempt %d: next attempt in %v, want %v", d.Attempts, got, want)
		}
		if m.res.StatusCode != http.StatusInternalServerError || m.res.Body != "upstream down" {
			t.Errorf("attempt %d: unexpected result %+v", d.Attempts, m.res)
		}
	}

	d.Attempts = 4
	if err := w.Process(context.Background(), d); err != nil {
		t.Fatalf("attempt 4: %v", err)
	}
	m := store.last(t)
	if !m.sent || m.res.StatusCode != http.StatusOK {
		t.Fatalf("expected sent on attempt 4, got %+v", m)
	}
}

func TestWorker_DeadAfterMaxAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	lead := testLead()
	store := newFakeStore()
	w := newTestWorker(t, server.URL, store, &fakeLeads{leads: map[uuid.UUID]*domain.Lead{lead.ID: lead}}, 3)

	d := &domain.Delivery{ID: uuid.New(), LeadID: lead.ID, Attempts: 3}
	if err := w.Process(context.Background(), d); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if m := store.last(t); m.sent || m.next != nil {
		t.Fatalf("expected dead (no next attempt), got %+v", m)
	}
}

func TestWorker_NetworkErrorIsRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	lead := testLead()
	store := newFakeStore()
	w := newTestWorker(t, url, store, &fakeLeads{leads: map[uuid.UUID]*domain.Lead{lead.ID: lead}}, 12)

	d := &domain.Delivery{ID: uuid.New(), LeadID: lead.ID, Attempts: 1}
	if err := w.Process(context.Background(), d); err != nil {
		t.Fatalf("Process: %v", err)
	}

	m := store.last(t)
	if m.next == nil {
		t.Fatal("expected retry")
	}
	if !errors.Is(m.res.Err, ErrPost) {
		t.Errorf("expected ErrPost, got %v", m.res.Err)
	}
}

func TestWorker_MissingLeadIsDead(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(t, "http://127.0.0.1:1", store, &fakeLeads{leads: map[uuid.UUID]*domain.Lead{}}, 12)

	d := &domain.Delivery{ID: uuid.New(), LeadID: uuid.New(), Attempts: 1}
	if err := w.Process(context.Background(), d); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if m := store.last(t); m.next != nil || m.sent {
		t.Fatalf("expected dead delivery, got %+v", m)
	}
}

// --- Poster ---

func TestPoster_SendsJSON(t *testing.T) {
	var got map[string]any
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		headers = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer server.Close()

	poster, err := NewPoster(PosterConfig{URL: server.URL})
	if err != nil {
		t.Fatalf("NewPoster: %v", err)
	}

	d := &domain.Delivery{ID: uuid.New(), ListingHash: "abc"}
	res, err := poster.Post(context.Background(), d, map[string]any{"phone": "5125550142"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if !res.OK() || res.StatusCode != http.StatusAccepted {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Body) != maxResponseText {
		t.Errorf("expected body truncated to %d, got %d", maxResponseText, len(res.Body))
	}
	if got["phone"] != "5125550142" {
		t.Errorf("unexpected payload: %v", got)
	}
	if headers.Get("Content-Type") != "application/json" || headers.Get("Idempotency-Key") != "abc" {
		t.Errorf("unexpected headers: %v", headers)
	}
}

func TestPoster_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	poster, err := NewPoster(PosterConfig{URL: server.URL, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewPoster: %v", err)
	}

	res, err := poster.Post(context.Background(), &domain.Delivery{ID: uuid.New()}, map[string]any{})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if res.OK() || !errors.Is(res.Err, ErrPost) {
		t.Errorf("expected timeout error, got %+v", res)
	}
}

func TestNewPoster_RequiresURL(t *testing.T) {
	if _, err := NewPoster(PosterConfig{}); !errors.Is(err, ErrNoWebhookURL) {
		t.Errorf("expected ErrNoWebhookURL, got %v", err)
	}
}

// --- Payload / hash / enqueue ---

func TestBuildPayload(t *testing.T) {
	lead := testLead()
	p := BuildPayload(lead)

	if p["external_id"] != "7712345678" {
		t.Errorf("external_id = %v", p["external_id"])
	}
	if p["year"] != 2012 {
		t.Errorf("year = %v, want 2012 from description", p["year"])
	}
	if p["phone"] != "5125550142" || p["seller_phone"] != "5125550142" {
		t.Errorf("phone = %v / %v", p["phone"], p["seller_phone"])
	}
	if p["price"] != 7900 || p["make"] != "honda" || p["city"] != "austin" {
		t.Errorf("unexpected fields: %v", p)
	}
	if _, ok := p["mileage"]; ok {
		t.Error("zero mileage must be omitted")
	}
}

func TestBuildPayload_StructuredYearWins(t *testing.T) {
	lead := testLead()
	lead.Listing.Year = 2014
	lead.ExternalID = "999"

	p := BuildPayload(lead)
	if p["year"] != 2014 || p["external_id"] != "999" {
		t.Errorf("unexpected payload: %v", p)
	}
}

func TestListingHash(t *testing.T) {
	account := uuid.New()

	a := ListingHash(account, "craigslist", "", "https://austin.craigslist.org/cto/d/a/7712345678.html?x=1")
	b := ListingHash(account, "craigslist", "7712345678", "https://other/url")
	if a != b {
		t.Error("hash must be based on external_id when available")
	}

	c := ListingHash(account, "craigslist", "", "https://Example.com/listing/abc/")
	d := ListingHash(account, "craigslist", "", "http://example.com/listing/abc")
	if c != d {
		t.Error("url fallback must normalize scheme, case and trailing slash")
	}

	if ListingHash(uuid.New(), "craigslist", "1", "") == ListingHash(account, "craigslist", "1", "") {
		t.Error("hash must differ across accounts")
	}
}

func TestEnqueuer_Idempotent(t *testing.T) {
	lead := testLead()
	leads := &fakeLeads{leads: map[uuid.UUID]*domain.Lead{lead.ID: lead}}
	store := newFakeStore()
	e := NewEnqueuer(leads, store, nil)

	n, err := e.EnqueueMissing(context.Background(), nil)
	if err != nil || n != 1 {
		t.Fatalf("first enqueue: n=%d err=%v", n, err)
	}

	n, err = e.EnqueueMissing(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("second enqueue: n=%d err=%v", n, err)
	}
	if len(store.rows) != 1 {
		t.Errorf("expected exactly one delivery row, got %d", len(store.rows))
	}
}
