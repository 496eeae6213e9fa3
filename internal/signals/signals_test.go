//go:build unix

package signals

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestSetupSignalContext_ParentCancel(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())

	ctx, cancel := SetupSignalContext(parent, nil)
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("context should not be done yet")
	default:
	}

	parentCancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should be done after parent cancel")
	}
}

func TestNotifyContext_SignalCancelsAndReports(t *testing.T) {
	got := make(chan os.Signal, 1)
	ctx, cancel := notifyContext(context.Background(), func(s os.Signal) { got <- s }, syscall.SIGUSR1)
	defer cancel()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("sending signal: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context should be done after the signal")
	}
	select {
	case s := <-got:
		if s != syscall.SIGUSR1 {
			t.Errorf("onSignal got %v, want SIGUSR1", s)
		}
	default:
		t.Error("onSignal was not called before cancel")
	}
}
