package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/migasfree/migasfree-backend/internal/domain"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync-policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTransitions(t *testing.T) {
	path := writePolicy(t, `
status_transitions:
  intended: [reserved, available, unsubscribed]
  available: [unsubscribed]
auto_register:
  platforms: [Linux]
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		from, to string
		want     bool
	}{
		{domain.StatusIntended, domain.StatusReserved, true},
		{domain.StatusIntended, domain.StatusUnknown, false},
		{domain.StatusAvailable, domain.StatusUnsubscribed, true},
		{domain.StatusAvailable, domain.StatusIntended, false},
		// Unlisted source statuses keep every transition.
		{domain.StatusReserved, domain.StatusAvailable, true},
	}
	for _, tt := range tests {
		if got := p.TransitionAllowed(tt.from, tt.to); got != tt.want {
			t.Errorf("TransitionAllowed(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	if !p.PlatformAllowed("Linux") {
		t.Error("Linux should be allowed")
	}
	if p.PlatformAllowed("Windows") {
		t.Error("Windows should not be allowed")
	}
}

func TestLoadRejectsUnknownStatus(t *testing.T) {
	path := writePolicy(t, `
status_transitions:
  intended: [decommissioned]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestDefaultAllowsEverything(t *testing.T) {
	p := Default()
	if !p.TransitionAllowed(domain.StatusAvailable, domain.StatusIntended) {
		t.Error("default policy should allow any transition")
	}
	if !p.PlatformAllowed("anything") {
		t.Error("default policy should allow any platform")
	}
}
