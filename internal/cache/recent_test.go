package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRecent_MarkAndSeen(t *testing.T) {
	r, err := NewRecent(1000, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	accountID := uuid.New()
	k := Key(accountID, "7712345678")

	if r.Seen(k) {
		t.Fatal("fresh cache should not contain key")
	}

	r.Mark(k)
	r.Wait()

	if !r.Seen(k) {
		t.Error("expected key to be seen after Mark")
	}
	if r.Seen(Key(uuid.New(), "7712345678")) {
		t.Error("keys are scoped per account")
	}
}

func TestRecent_TTLExpires(t *testing.T) {
	r, err := NewRecent(1000, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	r.Mark("a:1")
	r.Wait()

	time.Sleep(200 * time.Millisecond)
	if r.Seen("a:1") {
		t.Error("expected key to expire")
	}
}

func TestRecent_NilSafe(t *testing.T) {
	var r *Recent
	r.Mark("x")
	r.Wait()
	if r.Seen("x") {
		t.Error("nil cache never reports seen")
	}
	r.Close()
}
