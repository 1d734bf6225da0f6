package pool

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/sref/mysqlpool/pkg/connstring"
)

func TestDisposeStopsReaperGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	settings := &connstring.Settings{
		Hosts:       []string{"h1"},
		Port:        3306,
		MaxPoolSize: 2,
		IdleTimeout: 20 * time.Millisecond,
	}
	p := newTestPool(settings)
	p.StartBackgroundTasks()

	time.Sleep(30 * time.Millisecond)

	if err := p.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
}

func TestReaperPeriodClampedToBounds(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		2 * time.Second:   minReaperPeriod,
		200 * time.Second: maxReaperPeriod,
		10 * time.Second:  5 * time.Second,
	}
	for idle, want := range cases {
		if got := reaperPeriod(idle); got != want {
			t.Errorf("reaperPeriod(%v) = %v, want %v", idle, got, want)
		}
	}
}
