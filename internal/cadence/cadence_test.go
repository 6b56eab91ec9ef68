package cadence

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/channels"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/repo"
)

// --- Fakes ---

// memStore — in-memory touch_runs + leads с теми же условиями, что и SQL в repo.TouchRepo.
type memStore struct {
	mu      sync.Mutex
	touches map[uuid.UUID]*domain.TouchRun
	leads   map[uuid.UUID]*domain.Lead
}

func newMemStore() *memStore {
	return &memStore{
		touches: make(map[uuid.UUID]*domain.TouchRun),
		leads:   make(map[uuid.UUID]*domain.Lead),
	}
}

func (s *memStore) addLead(state domain.LeadState) *domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &domain.Lead{ID: uuid.New(), AccountID: uuid.New(), Phone: "+15125550142", State: state}
	s.leads[l.ID] = l
	return l
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TouchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.touches[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) CreateCadence(ctx context.Context, leadID uuid.UUID, runs []domain.TouchRun) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	if !l.State.Contactable() {
		return 0, repo.ErrInvalidState
	}
	l.State = domain.LeadStateAttempting

	inserted := 0
	for i := range runs {
		dup := false
		for _, t := range s.touches {
			if t.LeadID == leadID && t.CampaignID != nil && *t.CampaignID == *runs[i].CampaignID && t.Step == runs[i].Step {
				dup = true
			}
		}
		if dup {
			continue
		}
		r := runs[i]
		s.touches[r.ID] = &r
		inserted++
	}
	return inserted, nil
}

func (s *memStore) Promote(ctx context.Context, horizon time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.touches {
		if t.Status == domain.TouchStatusQueued && !t.ScheduledAt.After(time.Now().Add(horizon)) {
			t.Status = domain.TouchStatusScheduled
			n++
		}
	}
	return n, nil
}

func (s *memStore) claimable(t *domain.TouchRun) bool {
	if t.Status != domain.TouchStatusQueued && t.Status != domain.TouchStatusScheduled {
		return false
	}
	return s.leads[t.LeadID].State.Contactable()
}

func (s *memStore) ClaimDue(ctx context.Context, workerID string, limit int) ([]domain.TouchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TouchRun
	for _, t := range s.touches {
		if len(out) >= limit {
			break
		}
		if s.claimable(t) && t.IsDue(time.Now()) {
			t.Status = domain.TouchStatusExecuting
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

func (s *memStore) ClaimByID(ctx context.Context, id uuid.UUID, workerID string) (*domain.TouchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.touches[id]
	if !ok || !s.claimable(t) {
		return nil, repo.ErrInvalidState
	}
	t.Status = domain.TouchStatusExecuting
	cp := *t
	return &cp, nil
}

func (s *memStore) MarkSent(ctx context.Context, id uuid.UUID, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.touches[id]
	if t.Status != domain.TouchStatusExecuting {
		return repo.ErrInvalidState
	}
	now := time.Now()
	t.Status = domain.TouchStatusSent
	t.SentAt = &now
	t.Meta = map[string]any{"provider_id": providerID}
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.touches[id]
	if t.Status != domain.TouchStatusExecuting {
		return repo.ErrInvalidState
	}
	t.Status = domain.TouchStatusFailed
	t.Error = errMsg
	return nil
}

func (s *memStore) CreateAdHoc(ctx context.Context, run *domain.TouchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *run
	s.touches[r.ID] = &r
	return nil
}

func (s *memStore) NextAdHocStep(ctx context.Context, leadID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := domain.AdHocStepBase
	for _, t := range s.touches {
		if t.LeadID == leadID && t.Step >= step {
			step = t.Step + 1
		}
	}
	return step, nil
}

// interrupt повторяет repo.LeadRepo.ApplyInterrupt: состояние + отмена всех незавершённых касаний.
func (s *memStore) interrupt(leadID uuid.UUID, target domain.LeadState) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[leadID].State = domain.NextState(s.leads[leadID].State, target)
	n := 0
	for _, t := range s.touches {
		if t.LeadID == leadID && t.IsCancelable() {
			t.Status = domain.TouchStatusCanceled
			t.Error = domain.CancelReasonReplied
			n++
		}
	}
	return n
}

func (s *memStore) statuses(leadID uuid.UUID) map[domain.TouchStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.TouchStatus]int)
	for _, t := range s.touches {
		if t.LeadID == leadID {
			out[t.Status]++
		}
	}
	return out
}

type leadsView struct{ s *memStore }

func (v leadsView) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	l, ok := v.s.leads[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

type countingSender struct {
	mu   sync.Mutex
	sent []uuid.UUID
	err  error
	hook func(touch *domain.TouchRun)
}

func (c *countingSender) Send(ctx context.Context, touch *domain.TouchRun, lead *domain.Lead) (string, error) {
	if c.hook != nil {
		c.hook(touch)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.sent = append(c.sent, touch.ID)
	return "prov-" + touch.ID.String()[:8], nil
}

func (c *countingSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []mq.WakePayload
}

func (f *fakeNotifier) PublishTouchReady(ctx context.Context, p mq.WakePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	return nil
}

func threeStepCampaign() domain.Campaign {
	return domain.Campaign{
		Name: "sellers-intro",
		Steps: []domain.CadenceStep{
			{Offset: 0, Channel: domain.ChannelSMS, Payload: map[string]any{"body": "Hi"}},
			{Offset: time.Hour, Channel: domain.ChannelEmail, Payload: map[string]any{"subject": "Your car"}},
			{Offset: 24 * time.Hour, Channel: domain.ChannelVoice},
		},
	}
}

func newDispatcher(s *memStore, sender channels.Sender) *Dispatcher {
	reg := channels.NewRegistry()
	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelWhatsApp, domain.ChannelVoice} {
		reg.Register(ch, sender)
	}
	return NewDispatcher(DispatcherConfig{
		WorkerID:  "dispatcher-1",
		Touches:   s,
		Leads:     leadsView{s},
		Senders:   reg,
		BatchSize: 10,
	})
}

// --- Plan / Enroll ---

func TestPlan_OrdersStepsFromStart(t *testing.T) {
	lead := &domain.Lead{ID: uuid.New(), AccountID: uuid.New(), State: domain.LeadStateNew}
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	runs, err := Plan(lead, threeStepCampaign(), start)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i, r := range runs {
		if r.Step != i+1 {
			t.Errorf("run %d: step %d", i, r.Step)
		}
		if r.Status != domain.TouchStatusQueued {
			t.Errorf("run %d: status %s", i, r.Status)
		}
		if r.LeadID != lead.ID || r.AccountID != lead.AccountID {
			t.Errorf("run %d: wrong lead/account", i)
		}
	}
	if !runs[1].ScheduledAt.Equal(start.Add(time.Hour)) {
		t.Errorf("step 2 scheduled at %v", runs[1].ScheduledAt)
	}
	if !runs[2].ScheduledAt.Equal(start.Add(24 * time.Hour)) {
		t.Errorf("step 3 scheduled at %v", runs[2].ScheduledAt)
	}
}

func TestPlan_DeterministicCampaignID(t *testing.T) {
	lead := &domain.Lead{ID: uuid.New(), State: domain.LeadStateNew}
	a, _ := Plan(lead, threeStepCampaign(), time.Now())
	b, _ := Plan(lead, threeStepCampaign(), time.Now())
	if *a[0].CampaignID != *b[0].CampaignID {
		t.Error("same campaign name must map to the same campaign id")
	}
}

func TestPlan_Refusals(t *testing.T) {
	tests := []struct {
		name     string
		state    domain.LeadState
		campaign domain.Campaign
		want     error
	}{
		{"engaged", domain.LeadStateEngaged, threeStepCampaign(), ErrLeadNotContactable},
		{"qualified", domain.LeadStateQualified, threeStepCampaign(), ErrLeadNotContactable},
		{"booked", domain.LeadStateBooked, threeStepCampaign(), ErrLeadNotContactable},
		{"dead", domain.LeadStateDead, threeStepCampaign(), ErrLeadNotContactable},
		{"empty", domain.LeadStateNew, domain.Campaign{Name: "x"}, ErrEmptyCampaign},
		{"bad channel", domain.LeadStateNew, domain.Campaign{Steps: []domain.CadenceStep{{Channel: "fax"}}}, ErrInvalidStep},
		{"negative offset", domain.LeadStateNew, domain.Campaign{Steps: []domain.CadenceStep{{Channel: domain.ChannelSMS, Offset: -time.Minute}}}, ErrInvalidStep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := &domain.Lead{ID: uuid.New(), State: tt.state}
			_, err := Plan(lead, tt.campaign, time.Now())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEnroll_IdempotentAndNotifies(t *testing.T) {
	s := newMemStore()
	lead := s.addLead(domain.LeadStateNew)
	notifier := &fakeNotifier{}
	b := NewBuilder(s, notifier, nil)

	_, inserted, err := b.Enroll(context.Background(), lead, threeStepCampaign(), time.Now())
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if inserted != 3 {
		t.Errorf("expected 3 inserted, got %d", inserted)
	}

	// Лид уже attempting — повторная запись допустима, но дубликатов нет.
	lead.State = domain.LeadStateAttempting
	_, inserted, err = b.Enroll(context.Background(), lead, threeStepCampaign(), time.Now())
	if err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	if inserted != 0 {
		t.Errorf("expected 0 inserted on re-enroll, got %d", inserted)
	}
	if len(notifier.calls) != 1 {
		t.Errorf("expected 1 touch.ready, got %d", len(notifier.calls))
	}
	if s.leads[lead.ID].State != domain.LeadStateAttempting {
		t.Errorf("lead state: %s", s.leads[lead.ID].State)
	}
}

func TestEnroll_StoreRefusesInterruptedLead(t *testing.T) {
	s := newMemStore()
	lead := s.addLead(domain.LeadStateNew)
	// Interrupt пришёл между чтением лида и записью.
	s.leads[lead.ID].State = domain.LeadStateEngaged

	_, _, err := NewBuilder(s, nil, nil).Enroll(context.Background(), lead, threeStepCampaign(), time.Now())
	if !errors.Is(err, ErrLeadNotContactable) {
		t.Fatalf("expected ErrLeadNotContactable, got %v", err)
	}
}

// --- Dispatcher ---

func TestDispatcher_SendsDueTouchesOnly(t *testing.T) {
	s := newMemStore()
	lead := s.addLead(domain.LeadStateNew)
	if _, _, err := NewBuilder(s, nil, nil).Enroll(context.Background(), lead, threeStepCampaign(), time.Now()); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	sender := &countingSender{}
	d := newDispatcher(s, sender)

	touches, err := d.claim(context.Background(), 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(touches) != 1 {
		t.Fatalf("expected 1 due touch, got %d", len(touches))
	}
	if err := d.Process(context.Background(), &touches[0]); err != nil {
		t.Fatalf("process: %v", err)
	}

	st := s.statuses(lead.ID)
	if st[domain.TouchStatusSent] != 1 || st[domain.TouchStatusQueued] != 2 {
		t.Errorf("unexpected statuses: %v", st)
	}
	if sender.count() != 1 {
		t.Errorf("expected 1 send, got %d", sender.count())
	}
}

func TestDispatcher_ReplyCancelsRemainingTouches(t *testing.T) {
	s := newMemStore()
	lead := s.addLead(domain.LeadStateNew)
	runs, _, err := NewBuilder(s, nil, nil).Enroll(context.Background(), lead, threeStepCampaign(), time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	sender := &countingSender{}
	d := newDispatcher(s, sender)

	// Шаг 1 отправлен, затем лид ответил.
	if _, err := d.ExecuteOne(context.Background(), runs[0].ID); err != nil {
		t.Fatalf("execute step 1: %v", err)
	}
	if n := s.interrupt(lead.ID, domain.LeadStateEngaged); n != 2 {
		t.Fatalf("expected 2 canceled, got %d", n)
	}

	// Все шаги уже просрочены, но ни один не захватывается.
	touches, err := d.claim(context.Background(), 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(touches) != 0 {
		t.Fatalf("canceled touches must not be claimed, got %d", len(touches))
	}

	_, err = d.ExecuteOne(context.Background(), runs[1].ID)
	if !errors.Is(err, ErrTouchCanceled) {
		t.Fatalf("expected ErrTouchCanceled, got %v", err)
	}

	if sender.count() != 1 {
		t.Errorf("expected exactly 1 send, got %d", sender.count())
	}
	st := s.statuses(lead.ID)
	if st[domain.TouchStatusSent] != 1 || st[domain.TouchStatusCanceled] != 2 {
		t.Errorf("unexpected statuses: %v", st)
	}
}

func TestDispatcher_CancelDuringSendKeepsCanceled(t *testing.T) {
	s := newMemStore()
	lead := s.addLead(domain.LeadStateNew)
	runs, _, _ := NewBuilder(s, nil, nil).Enroll(context.Background(), lead, threeStepCampaign(), time.Now())

	sender := &countingSender{hook: func(*domain.TouchRun) { s.interrupt(lead.ID, domain.LeadStateBooked) }}
	d := newDispatcher(s, sender)

	touch, err := d.ExecuteOne(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if touch.Status != domain.TouchStatusCanceled {
		t.Errorf("expected canceled, got %s", touch.Status)
	}
}

func TestDispatcher_SendErrorMarksFailed(t *testing.T) {
	s := newMemStore()
	lead := s.addLead(domain.LeadStateNew)
	runs, _, _ := NewBuilder(s, nil, nil).Enroll(context.Background(), lead, threeStepCampaign(), time.Now())

	d := newDispatcher(s, &countingSender{err: channels.ErrProvider})

	touch, err := d.ExecuteOne(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if touch.Status != domain.TouchStatusFailed || touch.Error == "" {
		t.Errorf("expected failed with error, got %s %q", touch.Status, touch.Error)
	}
}

func TestDispatcher_NoSenderMarksFailed(t *testing.T) {
	s := newMemStore()
	lead := s.addLead(domain.LeadStateNew)
	runs, _, _ := NewBuilder(s, nil, nil).Enroll(context.Background(), lead, threeStepCampaign(), time.Now())

	d := NewDispatcher(DispatcherConfig{Touches: s, Leads: leadsView{s}, Senders: channels.NewRegistry()})

	touch, err := d.ExecuteOne(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if touch.Status != domain.TouchStatusFailed {
		t.Errorf("expected failed, got %s", touch.Status)
	}
}

func TestDispatcher_ExecuteUnknownTouch(t *testing.T) {
	s := newMemStore()
	d := newDispatcher(s, &countingSender{})

	_, err := d.ExecuteOne(context.Background(), uuid.New())
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatcher_SendAdHoc(t *testing.T) {
	s := newMemStore()
	lead := s.addLead(domain.LeadStateNew)
	sender := &countingSender{}
	d := newDispatcher(s, sender)

	first, err := d.SendAdHoc(context.Background(), lead, domain.ChannelSMS, map[string]any{"body": "test"})
	if err != nil {
		t.Fatalf("ad-hoc: %v", err)
	}
	second, err := d.SendAdHoc(context.Background(), lead, domain.ChannelSMS, nil)
	if err != nil {
		t.Fatalf("ad-hoc: %v", err)
	}

	if !first.IsAdHoc() || first.Step != domain.AdHocStepBase || second.Step != domain.AdHocStepBase+1 {
		t.Errorf("unexpected steps %d, %d", first.Step, second.Step)
	}
	if first.Status != domain.TouchStatusSent {
		t.Errorf("expected sent, got %s", first.Status)
	}

	s.leads[lead.ID].State = domain.LeadStateDead
	lead.State = domain.LeadStateDead
	if _, err := d.SendAdHoc(context.Background(), lead, domain.ChannelSMS, nil); !errors.Is(err, ErrLeadNotContactable) {
		t.Errorf("expected ErrLeadNotContactable, got %v", err)
	}
}

func TestDispatcher_RendersPayloadTemplates(t *testing.T) {
	s := newMemStore()
	lead := s.addLead(domain.LeadStateNew)
	lead.Listing = domain.Listing{Title: "2014 Honda Civic", SellerName: "Dana Smith"}

	campaign := domain.Campaign{Name: "templated", Steps: []domain.CadenceStep{{
		Channel: domain.ChannelSMS,
		Payload: map[string]any{"body": "Hi {{ firstName .Listing.SellerName }}, is the {{ .Listing.Title }} still available?"},
	}}}
	runs, _, err := NewBuilder(s, nil, nil).Enroll(context.Background(), lead, campaign, time.Now())
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	var body any
	sender := &countingSender{hook: func(touch *domain.TouchRun) { body = touch.Payload["body"] }}
	if _, err := newDispatcher(s, sender).ExecuteOne(context.Background(), runs[0].ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if body != "Hi Dana, is the 2014 Honda Civic still available?" {
		t.Errorf("rendered body = %q", body)
	}
	stored, _ := s.GetByID(context.Background(), runs[0].ID)
	if !strings.Contains(stored.Payload["body"].(string), "{{") {
		t.Errorf("stored payload should keep the template, got %q", stored.Payload["body"])
	}
}

func TestPlan_RejectsBrokenTemplate(t *testing.T) {
	lead := &domain.Lead{ID: uuid.New(), State: domain.LeadStateNew}
	campaign := domain.Campaign{Name: "broken", Steps: []domain.CadenceStep{{
		Channel: domain.ChannelEmail,
		Payload: map[string]any{"subject": "{{ .Listing.Title "},
	}}}

	if _, err := Plan(lead, campaign, time.Now()); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep, got %v", err)
	}
}
