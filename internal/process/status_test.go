package process

import (
	"encoding/json"
	"testing"
)

func TestStatusMarshalJSON(t *testing.T) {
	running, err := json.Marshal(Status{State: Running, PID: 42})
	if err != nil {
		t.Fatalf("marshal running: %v", err)
	}
	if string(running) != `"running"` {
		t.Fatalf("expected bare string for running, got %s", running)
	}

	stopped, err := json.Marshal(Status{State: Stopped})
	if err != nil {
		t.Fatalf("marshal stopped: %v", err)
	}
	if string(stopped) != `"stopped"` {
		t.Fatalf("expected bare string for stopped, got %s", stopped)
	}

	code := 137
	crashed, err := json.Marshal(Status{State: Crashed, ExitCode: &code})
	if err != nil {
		t.Fatalf("marshal crashed: %v", err)
	}
	if string(crashed) != `{"crashed":[false,137]}` {
		t.Fatalf("expected crashed tuple payload, got %s", crashed)
	}

	signaled, err := json.Marshal(Status{State: Crashed})
	if err != nil {
		t.Fatalf("marshal signaled: %v", err)
	}
	if string(signaled) != `{"crashed":[false,null]}` {
		t.Fatalf("expected null code for signal death, got %s", signaled)
	}
}
