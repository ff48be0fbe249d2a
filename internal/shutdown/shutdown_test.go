package shutdown

import (
	"testing"
	"time"
)

func TestAttemptEscalation(t *testing.T) {
	c := New()
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	if c.Attempt(base) {
		t.Fatal("first attempt must never escalate")
	}
	if !c.Attempt(base.Add(2 * time.Second)) {
		t.Fatal("attempt within escalation window must escalate")
	}
}

func TestAttemptNoEscalationAfterWindow(t *testing.T) {
	c := New()
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	c.Attempt(base)

	if c.Attempt(base.Add(EscalationWindow + time.Second)) {
		t.Fatal("attempt after escalation window should not escalate")
	}
}
