package widget

import (
	"testing"
	"time"
)

func TestSessionStateOpenWithoutSummary(t *testing.T) {
	sess := ChatSession{LastMessageAt: time.Now()}
	if got := sess.State(); got != StateOpen {
		t.Fatalf("expected open, got %s", got)
	}
}

func TestSessionStateAnalyzedWithFreshSummary(t *testing.T) {
	now := time.Now().UTC()
	generated := now.Add(time.Minute)
	sess := ChatSession{LastMessageAt: now, SummaryGeneratedAt: &generated}
	if got := sess.State(); got != StateAnalyzed {
		t.Fatalf("expected analyzed, got %s", got)
	}
}

func TestSessionStateReopensAfterNewMessage(t *testing.T) {
	generated := time.Now().UTC()
	sess := ChatSession{
		LastMessageAt:      generated.Add(time.Minute),
		SummaryGeneratedAt: &generated,
	}
	if got := sess.State(); got != StateOpen {
		t.Fatalf("expected open after new activity, got %s", got)
	}
}

func TestOriginValid(t *testing.T) {
	for _, origin := range []SessionOrigin{OriginManual, OriginAutoStart, OriginResumed} {
		if !origin.Valid() {
			t.Fatalf("expected %q to be valid", origin)
		}
	}
	if SessionOrigin("drive-by").Valid() {
		t.Fatal("expected unknown origin to be invalid")
	}
}
