package channels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
)

func newTouch(ch domain.Channel, payload map[string]any) *domain.TouchRun {
	return &domain.TouchRun{
		ID:      uuid.New(),
		LeadID:  uuid.New(),
		Step:    1,
		Channel: ch,
		Status:  domain.TouchStatusExecuting,
		Payload: payload,
	}
}

func newLead() *domain.Lead {
	return &domain.Lead{
		ID:    uuid.New(),
		Phone: "+15125550142",
		Email: "seller@example.com",
		Listing: domain.Listing{
			Title: "2014 Toyota Camry",
		},
	}
}

// --- Registry ---

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(domain.ChannelSMS)
	if !errors.Is(err, ErrNoSender) {
		t.Fatalf("expected ErrNoSender, got %v", err)
	}
}

func TestRegistry_RegisterAndChannels(t *testing.T) {
	r := NewRegistry()
	noop := SenderFunc(func(ctx context.Context, touch *domain.TouchRun, lead *domain.Lead) (string, error) {
		return "x", nil
	})
	r.Register(domain.ChannelVoice, noop)
	r.Register(domain.ChannelEmail, noop)

	got := r.Channels()
	if len(got) != 2 || got[0] != domain.ChannelEmail || got[1] != domain.ChannelVoice {
		t.Errorf("unexpected channels: %v", got)
	}

	s, err := r.Get(domain.ChannelEmail)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	id, _ := s.Send(context.Background(), newTouch(domain.ChannelEmail, nil), newLead())
	if id != "x" {
		t.Errorf("expected x, got %q", id)
	}
}

// --- LogSender ---

func TestLogSender(t *testing.T) {
	touch := newTouch(domain.ChannelSMS, nil)
	id, err := NewLogSender(nil).Send(context.Background(), touch, newLead())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "dryrun-"+touch.ID.String() {
		t.Errorf("unexpected id %q", id)
	}
}

// --- HTTPSender ---

func TestHTTPSender_Success(t *testing.T) {
	var got providerRequest
	var auth, idem string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		idem = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg-42"}`))
	}))
	defer srv.Close()

	touch := newTouch(domain.ChannelSMS, map[string]any{"body": "Hi, is the car still available?"})
	lead := newLead()

	id, err := NewHTTPSender(srv.URL, "secret", nil).Send(context.Background(), touch, lead)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "msg-42" {
		t.Errorf("expected msg-42, got %q", id)
	}
	if auth != "Bearer secret" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if idem != touch.ID.String() {
		t.Errorf("unexpected idempotency key %q", idem)
	}
	if got.Channel != domain.ChannelSMS || got.To != lead.Phone || got.Body != "Hi, is the car still available?" {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.LeadID != lead.ID.String() {
		t.Errorf("unexpected lead_id %q", got.LeadID)
	}
}

func TestHTTPSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTPSender(srv.URL, "", nil).Send(context.Background(), newTouch(domain.ChannelSMS, nil), newLead())
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestHTTPSender_MissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPSender(srv.URL, "", nil).Send(context.Background(), newTouch(domain.ChannelVoice, nil), newLead())
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestHTTPSender_NoPhone(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	lead := newLead()
	lead.Phone = "555"

	_, err := NewHTTPSender(srv.URL, "", nil).Send(context.Background(), newTouch(domain.ChannelSMS, nil), lead)
	if !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
	if called {
		t.Error("provider must not be called without a phone")
	}
}

// --- SESSender ---

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	client := &fakeSES{}
	s := NewSESSenderWithClient(client, "outreach@example.com")

	touch := newTouch(domain.ChannelEmail, map[string]any{"body": "Hello"})
	id, err := s.Send(context.Background(), touch, newLead())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "ses-1" {
		t.Errorf("expected ses-1, got %q", id)
	}

	in := client.input
	if aws.ToString(in.FromEmailAddress) != "outreach@example.com" {
		t.Errorf("unexpected from %q", aws.ToString(in.FromEmailAddress))
	}
	if len(in.Destination.ToAddresses) != 1 || in.Destination.ToAddresses[0] != "seller@example.com" {
		t.Errorf("unexpected destination %v", in.Destination.ToAddresses)
	}
	// Без subject в payload используется заголовок объявления.
	if aws.ToString(in.Content.Simple.Subject.Data) != "2014 Toyota Camry" {
		t.Errorf("unexpected subject %q", aws.ToString(in.Content.Simple.Subject.Data))
	}
	if aws.ToString(in.Content.Simple.Body.Text.Data) != "Hello" {
		t.Errorf("unexpected body %q", aws.ToString(in.Content.Simple.Body.Text.Data))
	}
}

func TestSESSender_FallsBackToListingEmail(t *testing.T) {
	client := &fakeSES{}
	lead := newLead()
	lead.Email = ""
	lead.Listing.SellerEmail = "listing@example.com"

	if _, err := NewSESSenderWithClient(client, "a@b.c").Send(context.Background(), newTouch(domain.ChannelEmail, nil), lead); err != nil {
		t.Fatalf("send: %v", err)
	}
	if client.input.Destination.ToAddresses[0] != "listing@example.com" {
		t.Errorf("unexpected destination %v", client.input.Destination.ToAddresses)
	}
}

func TestSESSender_NoRecipient(t *testing.T) {
	lead := newLead()
	lead.Email = ""

	_, err := NewSESSenderWithClient(&fakeSES{}, "a@b.c").Send(context.Background(), newTouch(domain.ChannelEmail, nil), lead)
	if !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestSESSender_ProviderError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	_, err := NewSESSenderWithClient(client, "a@b.c").Send(context.Background(), newTouch(domain.ChannelEmail, nil), newLead())
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}
