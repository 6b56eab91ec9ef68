package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/cache"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/queue"
)

// --- Fakes ---

type fakePage struct {
	mu sync.Mutex

	// statuses выдаются по одному на Goto; последний повторяется.
	statuses []int
	// hang — Goto блокируется до отмены ctx.
	hang    bool
	waitErr error
	html    string

	gotoCalls int
	closed    bool
}

func (p *fakePage) Goto(ctx context.Context, url string) (int, error) {
	p.mu.Lock()
	p.gotoCalls++
	n := p.gotoCalls
	hang := p.hang
	p.mu.Unlock()

	if hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if len(p.statuses) == 0 {
		return 200, nil
	}
	if n > len(p.statuses) {
		return p.statuses[len(p.statuses)-1], nil
	}
	return p.statuses[n-1], nil
}

func (p *fakePage) WaitFor(ctx context.Context, selector string) error {
	return p.waitErr
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	return p.html, nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gotoCalls
}

type fakeBrowser struct {
	mu       sync.Mutex
	page     func() *fakePage
	opened   []*fakePage
	openErrs int
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErrs > 0 {
		b.openErrs--
		return nil, errors.New("chrome crashed")
	}
	p := b.page()
	b.opened = append(b.opened, p)
	return p, nil
}

func (b *fakeBrowser) Close() error { return nil }

type fakeTasks struct {
	mu       sync.Mutex
	finished map[uuid.UUID]domain.Outcome
	inserted []domain.Task
	known    map[string]bool
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{finished: make(map[uuid.UUID]domain.Outcome), known: make(map[string]bool)}
}

func (f *fakeTasks) Claim(ctx context.Context, workerID string, filter queue.Filter, limit int) ([]domain.Task, error) {
	return nil, nil
}

func (f *fakeTasks) Reclaim(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeTasks) Finish(ctx context.Context, id uuid.UUID, workerID string, outcome domain.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[id] = outcome
	return nil
}

func (f *fakeTasks) InsertDetailTasks(ctx context.Context, tasks []domain.Task) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range tasks {
		key := t.AccountID.String() + ":" + t.ExternalID
		if f.known[key] {
			continue
		}
		f.known[key] = true
		f.inserted = append(f.inserted, t)
		n++
	}
	return n, nil
}

type fakeLeads struct {
	mu    sync.Mutex
	leads []*domain.Lead
	err   error
}

func (f *fakeLeads) UpsertFromListing(ctx context.Context, lead *domain.Lead) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.leads = append(f.leads, lead)
	return lead, nil
}

type fakeNotifier struct {
	mu            sync.Mutex
	taskReady     []mq.WakePayload
	deliveryReady []mq.WakePayload
}

func (n *fakeNotifier) PublishTaskReady(ctx context.Context, p mq.WakePayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.taskReady = append(n.taskReady, p)
	return nil
}

func (n *fakeNotifier) PublishDeliveryReady(ctx context.Context, p mq.WakePayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveryReady = append(n.deliveryReady, p)
	return nil
}

// --- Helpers ---

type harness struct {
	worker   *Worker
	browser  *fakeBrowser
	tasks    *fakeTasks
	leads    *fakeLeads
	notifier *fakeNotifier
	dir      string
}

func newHarness(t *testing.T, page func() *fakePage, discoverCap int, recent *cache.Recent) *harness {
	t.Helper()

	h := &harness{
		browser:  &fakeBrowser{page: page},
		tasks:    newFakeTasks(),
		leads:    &fakeLeads{},
		notifier: &fakeNotifier{},
		dir:      t.TempDir(),
	}

	extractor := NewSelectorExtractor(DefaultSelectors())
	registry := NewRegistry()
	registry.Register(domain.TaskTypeDiscover, NewDiscoverHandler(DiscoverConfig{
		Tasks:            h.tasks,
		Extractor:        extractor,
		Recent:           recent,
		Notifier:         h.notifier,
		IndexURLTemplate: "https://%s.craigslist.org/search/cta?purveyor=owner",
		Cap:              discoverCap,
	}))
	registry.Register(domain.TaskTypeDetail, NewDetailHandler(DetailConfig{
		Leads:     h.leads,
		Extractor: extractor,
		Notifier:  h.notifier,
	}))

	h.worker = NewWorker(WorkerConfig{
		WorkerID:    "test-worker",
		Tasks:       h.tasks,
		Browser:     h.browser,
		Registry:    registry,
		Pacer:       NewPacer(0, 0),
		Evidence:    NewEvidence(h.dir, true),
		GotoTimeout: 50 * time.Millisecond,
		WaitTimeout: 50 * time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})

	if err := h.worker.resetPage(context.Background()); err != nil {
		t.Fatalf("open page: %v", err)
	}
	return h
}

func (h *harness) outcome(t *testing.T, id uuid.UUID) domain.Outcome {
	t.Helper()
	h.tasks.mu.Lock()
	defer h.tasks.mu.Unlock()
	o, ok := h.tasks.finished[id]
	if !ok {
		t.Fatalf("task %s was not finished", id)
	}
	return o
}

func evidenceFiles(t *testing.T, dir, pattern string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return files
}

func indexHTML(ids []int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ol class="cl-static-search-results">`)
	for _, id := range ids {
		fmt.Fprintf(&b,
			`<li class="cl-static-search-result"><a href="https://austin.craigslist.org/cto/d/austin-car-%d/77%08d.html">car</a></li>`,
			id, id)
	}
	b.WriteString(`</ol></body></html>`)
	return b.String()
}

const privateListingHTML = `<html><body>
<h1 class="postingtitle"><span class="postingtitletext">
  <span id="titletextonly">2012 Honda Civic LX</span>
  <span class="price">$7,900</span>
</span></h1>
<div class="attrgroup"><span><b>2012 honda civic</b></span></div>
<div class="attrgroup"><span>odometer: <b>123,456</b></span><span>title status: <b>clean</b></span></div>
<section id="postingbody">
  <div class="print-information print-qrcode-container"><p class="print-qrcode-label">QR Code Link to This Post</p></div>
  One owner, runs great. Call or text (512) 555-0142.
</section>
<p class="postinginfos"><time class="date timeago" datetime="2025-09-01T10:00:00-0500">Sep 1</time></p>
</body></html>`

const dealerListingHTML = `<html><body>
<span id="titletextonly">2018 Toyota Camry SE</span>
<section id="postingbody">Financing available for all credit! Visit our lot today. 512-555-0100</section>
</body></html>`

// --- Discover ---

func TestDiscover_DedupesByExternalID(t *testing.T) {
	ids := make([]int, 0, 40)
	for i := 1; i <= 35; i++ {
		ids = append(ids, i)
	}
	for i := 1; i <= 5; i++ {
		ids = append(ids, i)
	}
	html := indexHTML(ids)

	h := newHarness(t, func() *fakePage { return &fakePage{html: html} }, 60, nil)

	task := domain.NewDiscoverTask(uuid.New(), "austin", "")
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if o := h.outcome(t, task.ID); o.Status != domain.TaskStatusDone {
		t.Fatalf("expected done, got %+v", o)
	}
	if len(h.tasks.inserted) != 35 {
		t.Fatalf("expected 35 detail tasks, got %d", len(h.tasks.inserted))
	}

	seen := make(map[string]bool)
	for _, dt := range h.tasks.inserted {
		if dt.Type != domain.TaskTypeDetail || dt.City != "austin" || dt.AccountID != task.AccountID {
			t.Errorf("unexpected detail task: %+v", dt)
		}
		if seen[dt.ExternalID] {
			t.Errorf("duplicate external_id %s", dt.ExternalID)
		}
		seen[dt.ExternalID] = true
	}

	if len(h.notifier.taskReady) != 1 || h.notifier.taskReady[0].Count != 35 {
		t.Errorf("expected one task.ready with count 35, got %+v", h.notifier.taskReady)
	}
}

func TestDiscover_RespectsCap(t *testing.T) {
	ids := make([]int, 0, 40)
	for i := 1; i <= 40; i++ {
		ids = append(ids, i)
	}
	html := indexHTML(ids)

	h := newHarness(t, func() *fakePage { return &fakePage{html: html} }, 10, nil)

	task := domain.NewDiscoverTask(uuid.New(), "austin", "")
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(h.tasks.inserted) != 10 {
		t.Fatalf("expected 10 detail tasks, got %d", len(h.tasks.inserted))
	}
}

func TestDiscover_SkipsRecentlySeen(t *testing.T) {
	recent, err := cache.NewRecent(1000, time.Hour)
	if err != nil {
		t.Fatalf("NewRecent: %v", err)
	}
	defer recent.Close()

	html := indexHTML([]int{1, 2, 3})
	h := newHarness(t, func() *fakePage { return &fakePage{html: html} }, 60, recent)
	account := uuid.New()

	first := domain.NewDiscoverTask(account, "austin", "")
	if err := h.worker.Process(context.Background(), first); err != nil {
		t.Fatalf("Process: %v", err)
	}
	recent.Wait()

	second := domain.NewDiscoverTask(account, "austin", "")
	if err := h.worker.Process(context.Background(), second); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(h.tasks.inserted) != 3 {
		t.Errorf("expected 3 detail tasks total, got %d", len(h.tasks.inserted))
	}
	if len(h.notifier.taskReady) != 1 {
		t.Errorf("expected a single task.ready, got %d", len(h.notifier.taskReady))
	}
}

func TestDiscover_NoIndexURL(t *testing.T) {
	h := newHarness(t, func() *fakePage { return &fakePage{} }, 60, nil)

	task := domain.NewDiscoverTask(uuid.New(), "", "")
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if o := h.outcome(t, task.ID); o.Reason != domain.ReasonBadRow {
		t.Errorf("expected bad_row, got %+v", o)
	}
}

// --- Detail ---

func newDetailTask() *domain.Task {
	return domain.NewDetailTask(uuid.New(), "austin", "7712345678",
		"https://austin.craigslist.org/cto/d/austin-honda-civic/7712345678.html")
}

func TestDetail_SavesLead(t *testing.T) {
	h := newHarness(t, func() *fakePage { return &fakePage{html: privateListingHTML} }, 60, nil)

	task := newDetailTask()
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if o := h.outcome(t, task.ID); o != domain.Done() {
		t.Fatalf("expected done, got %+v", o)
	}
	if len(h.leads.leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(h.leads.leads))
	}

	lead := h.leads.leads[0]
	if lead.Source != DefaultSource || lead.ExternalID != "7712345678" {
		t.Errorf("unexpected lead key: %s/%s", lead.Source, lead.ExternalID)
	}
	if lead.Phone != "5125550142" {
		t.Errorf("expected phone 5125550142, got %q", lead.Phone)
	}
	if lead.Listing.Year != 2012 || lead.Listing.Make != "honda" || lead.Listing.Price != 7900 {
		t.Errorf("unexpected listing: %+v", lead.Listing)
	}
	if lead.Listing.Mileage != 123456 {
		t.Errorf("expected mileage 123456, got %d", lead.Listing.Mileage)
	}
	if len(h.notifier.deliveryReady) != 1 {
		t.Errorf("expected delivery.ready, got %d", len(h.notifier.deliveryReady))
	}
}

func TestDetail_BlockedRetriesOnce(t *testing.T) {
	var page *fakePage
	h := newHarness(t, func() *fakePage {
		page = &fakePage{statuses: []int{403, 403}, html: privateListingHTML}
		return page
	}, 60, nil)

	task := newDetailTask()
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := page.calls(); got != 2 {
		t.Errorf("expected exactly 2 navigations, got %d", got)
	}
	o := h.outcome(t, task.ID)
	if o.Status != domain.TaskStatusFailed || o.Reason != "blocked_403" {
		t.Errorf("expected failed blocked_403, got %+v", o)
	}
	if len(h.leads.leads) != 0 {
		t.Error("blocked listing must not produce a lead")
	}
	if len(evidenceFiles(t, h.dir, "detail_austin_*.html")) != 1 {
		t.Error("expected evidence html")
	}
}

func TestDetail_BlockedThenRecovers(t *testing.T) {
	var page *fakePage
	h := newHarness(t, func() *fakePage {
		page = &fakePage{statuses: []int{503, 200}, html: privateListingHTML}
		return page
	}, 60, nil)

	task := newDetailTask()
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := page.calls(); got != 2 {
		t.Errorf("expected 2 navigations, got %d", got)
	}
	if o := h.outcome(t, task.ID); o != domain.Done() {
		t.Errorf("expected done, got %+v", o)
	}
}

func TestDetail_GotoTimeoutResetsPage(t *testing.T) {
	h := newHarness(t, func() *fakePage { return &fakePage{hang: true, html: "<html></html>"} }, 60, nil)

	task := newDetailTask()
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	o := h.outcome(t, task.ID)
	if o.Status != domain.TaskStatusFailed || o.Reason != domain.ReasonGotoTimeout {
		t.Fatalf("expected goto_timeout, got %+v", o)
	}

	if len(evidenceFiles(t, h.dir, "detail_austin_*.html")) != 1 {
		t.Error("expected evidence html")
	}
	if len(evidenceFiles(t, h.dir, "detail_austin_*.png")) != 1 {
		t.Error("expected evidence png")
	}

	h.browser.mu.Lock()
	defer h.browser.mu.Unlock()
	if len(h.browser.opened) != 2 {
		t.Fatalf("expected page to be reopened, opened %d", len(h.browser.opened))
	}
	if !h.browser.opened[0].closed {
		t.Error("expected old page to be closed")
	}
}

func TestDetail_MarkerTimeout(t *testing.T) {
	h := newHarness(t, func() *fakePage {
		return &fakePage{waitErr: fmt.Errorf("wait: %w", context.DeadlineExceeded), html: "<html></html>"}
	}, 60, nil)

	task := newDetailTask()
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if o := h.outcome(t, task.ID); o.Reason != domain.ReasonGotoTimeout {
		t.Errorf("expected goto_timeout, got %+v", o)
	}

	h.browser.mu.Lock()
	defer h.browser.mu.Unlock()
	if len(h.browser.opened) != 2 {
		t.Fatalf("expected page to be reopened after wait timeout, opened %d", len(h.browser.opened))
	}
	if !h.browser.opened[0].closed {
		t.Error("expected old page to be closed")
	}
}

func TestDetail_RejectsCommercial(t *testing.T) {
	h := newHarness(t, func() *fakePage { return &fakePage{html: dealerListingHTML} }, 60, nil)

	task := newDetailTask()
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	o := h.outcome(t, task.ID)
	if o.Status != domain.TaskStatusDone || o.Reason != domain.ReasonRejectedCommercial {
		t.Fatalf("expected done/rejected_commercial, got %+v", o)
	}
	if !o.IsRejection() {
		t.Error("expected rejection outcome")
	}
	if len(h.leads.leads) != 0 {
		t.Error("rejected listing must not produce a lead")
	}
}

func TestDetail_MissingContent(t *testing.T) {
	h := newHarness(t, func() *fakePage { return &fakePage{html: "<html><body><p>gone</p></body></html>"} }, 60, nil)

	task := newDetailTask()
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if o := h.outcome(t, task.ID); o.Reason != domain.ReasonMissingContent {
		t.Errorf("expected missing_content, got %+v", o)
	}
}

func TestDetail_StoreError(t *testing.T) {
	h := newHarness(t, func() *fakePage { return &fakePage{html: privateListingHTML} }, 60, nil)
	h.leads.err = errors.New("connection refused")

	task := newDetailTask()
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if o := h.outcome(t, task.ID); o.Reason != domain.ReasonStoreError {
		t.Errorf("expected store_error, got %+v", o)
	}
}

func TestWorker_UnknownTaskType(t *testing.T) {
	h := newHarness(t, func() *fakePage { return &fakePage{} }, 60, nil)

	task := newDetailTask()
	task.Type = "enrich"
	if err := h.worker.Process(context.Background(), task); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if o := h.outcome(t, task.ID); o.Reason != domain.ReasonBadRow {
		t.Errorf("expected bad_row, got %+v", o)
	}
}

func TestWorker_BrowserUnavailable(t *testing.T) {
	browser := &fakeBrowser{page: func() *fakePage { return &fakePage{} }, openErrs: 1}
	w := NewWorker(WorkerConfig{
		WorkerID: "w",
		Tasks:    newFakeTasks(),
		Browser:  browser,
	})

	err := w.Run(context.Background())
	if !errors.Is(err, ErrBrowserUnavailable) {
		t.Fatalf("expected ErrBrowserUnavailable, got %v", err)
	}
}

// --- Building blocks ---

func TestPolicyGate(t *testing.T) {
	gate := NewPolicyGate(DefaultCommercialTokens)

	tests := []struct {
		name     string
		listing  domain.Listing
		rejected bool
	}{
		{"private", domain.Listing{Title: "2010 Ford Focus", Description: "Selling my car, moving abroad"}, false},
		{"dealer in title", domain.Listing{Title: "DEALER special 2015 Jeep"}, true},
		{"financing", domain.Listing{Description: "We Finance everyone"}, true},
		{"substring only", domain.Listing{Description: "Dealers need not apply"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rejected := gate.Check(tt.listing)
			if rejected != tt.rejected {
				t.Errorf("Check() rejected = %v, want %v", rejected, tt.rejected)
			}
		})
	}

	var nilGate *PolicyGate
	if _, rejected := nilGate.Check(domain.Listing{Title: "dealer"}); rejected {
		t.Error("nil gate must not reject")
	}
}

func TestSelectorExtractor_Links(t *testing.T) {
	e := NewSelectorExtractor(DefaultSelectors())
	html := `<ul>
		<li class="cl-static-search-result"><a href="/cto/d/austin-a/7700000001.html">a</a></li>
		<li class="cl-static-search-result"><a href="#">skip</a></li>
		<li class="cl-static-search-result"><a href="https://austin.craigslist.org/cto/d/austin-b/7700000002.html">b</a></li>
	</ul>`

	links, err := e.Links(html, "https://austin.craigslist.org/search/cta")
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	want := []string{
		"https://austin.craigslist.org/cto/d/austin-a/7700000001.html",
		"https://austin.craigslist.org/cto/d/austin-b/7700000002.html",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %v", len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link %d = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestSelectorExtractor_Listing(t *testing.T) {
	e := NewSelectorExtractor(DefaultSelectors())

	l, err := e.Listing(privateListingHTML)
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}
	if l.Title != "2012 Honda Civic LX" {
		t.Errorf("title = %q", l.Title)
	}
	if strings.Contains(l.Description, "QR Code") {
		t.Errorf("description still contains boilerplate: %q", l.Description)
	}
	if l.Model != "civic lx" {
		t.Errorf("model = %q", l.Model)
	}
	if l.PostedAt != "2025-09-01T10:00:00-0500" {
		t.Errorf("posted_at = %q", l.PostedAt)
	}
	if l.SellerPhone != "(512) 555-0142" {
		t.Errorf("phone = %q", l.SellerPhone)
	}
}

func TestLoadSelectors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.json")
	if err := os.WriteFile(path, []byte(`{"title": "h1.title"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	sel, err := LoadSelectors(path)
	if err != nil {
		t.Fatalf("LoadSelectors: %v", err)
	}
	if sel.Title != "h1.title" {
		t.Errorf("expected overridden title, got %q", sel.Title)
	}
	if sel.DetailMarker != DefaultSelectors().DetailMarker {
		t.Errorf("expected default detail marker, got %q", sel.DetailMarker)
	}

	if _, err := LoadSelectors(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPacer_Delay(t *testing.T) {
	p := NewPacer(800*time.Millisecond, 2500*time.Millisecond)
	for i := 0; i < 100; i++ {
		d := p.Delay()
		if d < 800*time.Millisecond || d > 2500*time.Millisecond {
			t.Fatalf("delay %v out of window", d)
		}
	}

	p.randN = func(n int64) int64 { return n - 1 }
	if d := p.Delay(); d != 2500*time.Millisecond {
		t.Errorf("expected upper bound, got %v", d)
	}

	var nilPacer *Pacer
	if d := nilPacer.Delay(); d != 0 {
		t.Errorf("nil pacer delay = %v", d)
	}
}

func TestPacer_WaitCanceled(t *testing.T) {
	p := NewPacer(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEvidence_Name(t *testing.T) {
	e := NewEvidence(t.TempDir(), true)
	e.now = func() time.Time { return time.Date(2025, 9, 1, 10, 30, 15, 123000000, time.UTC) }

	got := e.name(domain.TaskTypeDetail, "san francisco")
	want := "detail_san-francisco_20250901T103015123Z"
	if got != want {
		t.Errorf("name = %q, want %q", got, want)
	}
}

func TestEvidence_Disabled(t *testing.T) {
	dir := t.TempDir()
	e := NewEvidence(dir, false)

	path, err := e.Capture(context.Background(), &fakePage{html: "x"}, domain.TaskTypeDetail, "austin")
	if err != nil || path != "" {
		t.Fatalf("expected no-op, got %q, %v", path, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty dir, got %d entries", len(entries))
	}
}
