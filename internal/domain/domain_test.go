package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLeadState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to LeadState
		want     bool
	}{
		{LeadStateNew, LeadStateEnriched, true},
		{LeadStateNew, LeadStateAttempting, true},
		{LeadStateAttempting, LeadStateEngaged, true},
		{LeadStateEngaged, LeadStateAttempting, false},
		{LeadStateBooked, LeadStateEngaged, false},
		{LeadStateAttempting, LeadStateAttempting, false},
		{LeadStateQualified, LeadStateDead, true},
		{LeadStateDead, LeadStateDead, false},
		{LeadStateDead, LeadStateNew, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s → %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestLeadState_Contactable(t *testing.T) {
	contactable := map[LeadState]bool{
		LeadStateNew:        true,
		LeadStateEnriched:   true,
		LeadStateAttempting: true,
		LeadStateEngaged:    false,
		LeadStateQualified:  false,
		LeadStateBooked:     false,
		LeadStateDead:       false,
	}
	for state, want := range contactable {
		if got := state.Contactable(); got != want {
			t.Errorf("%s: Contactable() = %v, want %v", state, got, want)
		}
	}
}

func TestParseLeadState(t *testing.T) {
	if st, ok := ParseLeadState("booked"); !ok || st != LeadStateBooked {
		t.Errorf("expected booked, got %q %v", st, ok)
	}
	if _, ok := ParseLeadState("dead"); !ok {
		t.Error("dead should parse")
	}
	if _, ok := ParseLeadState("BOOKED"); ok {
		t.Error("states are lowercase")
	}
}

func TestNextState(t *testing.T) {
	tests := []struct {
		current, target, want LeadState
	}{
		{LeadStateAttempting, LeadStateEngaged, LeadStateEngaged},
		{LeadStateAttempting, LeadStateBooked, LeadStateBooked},
		{LeadStateEngaged, LeadStateEngaged, LeadStateEngaged},
		{LeadStateBooked, LeadStateEngaged, LeadStateBooked},
		{LeadStateQualified, LeadStateBooked, LeadStateBooked},
		{LeadStateDead, LeadStateEngaged, LeadStateEngaged},
	}
	for _, tt := range tests {
		if got := NextState(tt.current, tt.target); got != tt.want {
			t.Errorf("NextState(%s, %s) = %s, want %s", tt.current, tt.target, got, tt.want)
		}
	}
}

func TestInterruptFor(t *testing.T) {
	leadID := uuid.New()

	in, ok := InterruptFor(leadID, InboundEvent{EventID: "e1", Kind: EventInboundMessage, Channel: ChannelWhatsApp})
	if !ok {
		t.Fatal("inbound message must be an interrupt")
	}
	if in.Target != LeadStateEngaged || in.LeadStatus != LeadStatusReplied || in.Reason != CancelReasonReplied {
		t.Errorf("unexpected reply interrupt: %+v", in)
	}

	in, ok = InterruptFor(leadID, InboundEvent{EventID: "e2", Kind: EventAppointmentBooked})
	if !ok || in.Target != LeadStateBooked || in.Reason != CancelReasonBooked {
		t.Errorf("unexpected booking interrupt: %+v", in)
	}

	if _, ok := InterruptFor(leadID, InboundEvent{Kind: EventDeliveryStatus}); ok {
		t.Error("delivery_status must not interrupt")
	}
}

func TestInterruptFor_MatchesIsInterrupt(t *testing.T) {
	for _, k := range []EventKind{EventInboundMessage, EventAppointmentBooked, EventDeliveryStatus, "opened"} {
		_, ok := InterruptFor(uuid.New(), InboundEvent{EventID: "e", Kind: k})
		if ok != k.IsInterrupt() {
			t.Errorf("%s: InterruptFor ok=%v, IsInterrupt=%v", k, ok, k.IsInterrupt())
		}
	}
}

func TestNextLeadStatus(t *testing.T) {
	reply, _ := InterruptFor(uuid.New(), InboundEvent{EventID: "e", Kind: EventInboundMessage})

	tests := []struct {
		name    string
		current string
		deduped bool
		want    string
	}{
		{"fresh lead", "", false, LeadStatusReplied},
		{"booked lead replies", LeadStatusBooked, false, LeadStatusReplied},
		{"redelivered event", LeadStatusBooked, true, LeadStatusBooked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextLeadStatus(tt.current, reply, tt.deduped); got != tt.want {
				t.Errorf("NextLeadStatus(%q) = %q, want %q", tt.current, got, tt.want)
			}
		})
	}

	if got := NextLeadStatus("X", Interrupt{}, false); got != "X" {
		t.Errorf("empty interrupt status must keep current, got %q", got)
	}
}

func TestTouchStatus_IsTerminal(t *testing.T) {
	for _, s := range NonTerminalTouchStatuses {
		if s.IsTerminal() {
			t.Errorf("%s listed as non-terminal but IsTerminal() = true", s)
		}
	}
	for _, s := range []TouchStatus{TouchStatusSent, TouchStatusFailed, TouchStatusCanceled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestTouchRun_IsDue(t *testing.T) {
	now := time.Now()
	tr := &TouchRun{Status: TouchStatusScheduled, ScheduledAt: now.Add(-time.Second)}
	if !tr.IsDue(now) {
		t.Error("scheduled touch in the past should be due")
	}
	tr.Status = TouchStatusCanceled
	if tr.IsDue(now) {
		t.Error("canceled touch is never due")
	}
	tr = &TouchRun{Status: TouchStatusQueued, ScheduledAt: now.Add(time.Hour)}
	if tr.IsDue(now) {
		t.Error("future touch is not due")
	}
}

func TestOutcome_Label(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{Done(), "ok"},
		{SoftDone(ReasonRejectedCommercial), "rejected"},
		{Failed(ReasonGotoTimeout), "goto_timeout"},
		{Failed(""), "failed"},
	}
	for _, tt := range tests {
		if got := tt.outcome.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
	if !SoftDone(ReasonRejectedCommercial).IsRejection() {
		t.Error("commercial rejection must be a rejection")
	}
	if Failed(ReasonRejectedCommercial).IsRejection() {
		t.Error("failed outcome is never a rejection")
	}
}

func TestTask_IsStale(t *testing.T) {
	now := time.Now()
	claimedAt := now.Add(-20 * time.Minute)
	task := &Task{Status: TaskStatusClaimed, ClaimedAt: &claimedAt}

	if !task.IsStale(now, 15*time.Minute) {
		t.Error("claim older than visibility should be stale")
	}
	if task.IsStale(now, time.Hour) {
		t.Error("claim within visibility is not stale")
	}
	task.Status = TaskStatusDone
	if task.IsStale(now, time.Minute) {
		t.Error("finished task is never stale")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"(555) 123-4567":  "5551234567",
		"+1 555 123 4567": "+15551234567",
		"555+123":         "555123",
		"":                "",
	}
	for in, want := range tests {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractYear(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"2012 Honda Civic LX", 2012},
		{"Clean title, 1998 f150, 200k miles", 1998},
		{"model 1949 classic", 0},
		{"no year here", 0},
		{"2051 concept", 0},
	}

	for _, tt := range tests {
		if got := ExtractYear(tt.text); got != tt.want {
			t.Errorf("ExtractYear(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestBlocked(t *testing.T) {
	o := Blocked(403)
	if o.Status != TaskStatusFailed || o.Reason != "blocked_403" {
		t.Errorf("unexpected outcome: %+v", o)
	}
	if o.Label() != "blocked_403" {
		t.Errorf("expected label blocked_403, got %s", o.Label())
	}
}

func TestExternalIDFromURL(t *testing.T) {
	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"https://austin.craigslist.org/cto/d/austin-honda/7712345678.html", "7712345678", true},
		{"https://austin.craigslist.org/cto/d/austin-honda/7712345678.html?lang=en#photo", "7712345678", true},
		{"https://example.com/listing/42.htm", "42", true},
		{"https://austin.craigslist.org/search/cta", "", false},
		{"https://austin.craigslist.org/cto/d/austin-honda/abc.html", "", false},
	}

	for _, tt := range tests {
		got, ok := ExternalIDFromURL(tt.url)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ExternalIDFromURL(%q) = %q, %v; want %q, %v", tt.url, got, ok, tt.want, tt.wantOK)
		}
	}
}
