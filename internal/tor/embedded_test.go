package tor

import (
	"errors"
	"testing"
	"time"
)

func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("default timeout", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.startupTimeout != DefaultStartupTimeout {
			t.Errorf("expected %v, got %v", DefaultStartupTimeout, e.startupTimeout)
		}
		if e.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("custom timeout", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor(WithStartupTimeout(30 * time.Second))
		if e.startupTimeout != 30*time.Second {
			t.Errorf("expected 30s, got %v", e.startupTimeout)
		}
	})
}

func TestEmbeddedTorBeforeStart(t *testing.T) {
	t.Parallel()

	e := NewEmbeddedTor()

	if e.IsRunning() {
		t.Error("expected not running")
	}
	if e.SocksAddr() != "" || e.ControlAddr() != "" {
		t.Errorf("expected empty addresses, got %q and %q", e.SocksAddr(), e.ControlAddr())
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Stop on unstarted instance: %v", err)
	}
	if _, err := e.NewClient(time.Second); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}
