package health

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSamplerSample(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSampler(time.Hour, logger)
	if err != nil {
		t.Fatalf("NewSampler() error: %v", err)
	}

	s.sample()

	if got := testutil.ToFloat64(goroutines); got < 1 {
		t.Errorf("goroutines gauge = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(residentBytes); got <= 0 {
		t.Errorf("resident bytes gauge = %v, want > 0", got)
	}
}

func TestSamplerRunStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSampler(time.Millisecond, logger)
	if err != nil {
		t.Fatalf("NewSampler() error: %v", err)
	}

	go s.Run()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not return")
	}
}
