package wine

import (
	"errors"
	"testing"
	"time"
)

func TestTracker_Lifecycle(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("h1", 10, 1)

	p, err := tracker.Get("h1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusPending {
		t.Errorf("expected pending, got %s", p.Status)
	}

	tracker.MarkProcessing("h1")
	p, _ = tracker.Get("h1")
	if p.Status != StatusProcessing {
		t.Errorf("expected processing, got %s", p.Status)
	}

	tracker.Finish("h1", StatusComplete, "done", &ProcessResult{
		Handle: "h1", Success: true, Processed: 10,
	})

	p, _ = tracker.Get("h1")
	if p.Status != StatusComplete || p.Percent != 100 {
		t.Errorf("unexpected terminal state: %+v", p)
	}

	result, err := tracker.Result("h1")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Error("expected successful result")
	}
}

func TestTracker_UnknownHandle(t *testing.T) {
	tracker := NewTracker()

	if _, err := tracker.Get("nope"); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle, got %v", err)
	}
	if _, err := tracker.Result("nope"); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle, got %v", err)
	}
	if err := tracker.Cancel("nope"); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("expected ErrUnknownHandle, got %v", err)
	}
}

func TestTracker_ResultBeforeTerminal(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("h1", 10, 1)

	if _, err := tracker.Result("h1"); !errors.Is(err, ErrNotFinished) {
		t.Errorf("expected ErrNotFinished, got %v", err)
	}
}

func TestTracker_PercentMonotonic(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("h1", 10, 1)
	tracker.MarkProcessing("h1")

	last := 0
	for i := 1; i <= 10; i++ {
		tracker.Record("h1", i, 0, 1, "")
		p, _ := tracker.Get("h1")
		if p.Percent < last {
			t.Fatalf("percent decreased: %d -> %d", last, p.Percent)
		}
		last = p.Percent
	}
	if last != 100 {
		t.Errorf("expected 100 after all lines, got %d", last)
	}
}

func TestTracker_TerminalStateIsImmutable(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("h1", 10, 1)
	tracker.Finish("h1", StatusError, "boom", &ProcessResult{Handle: "h1"})

	tracker.Record("h1", 5, 0, 1, "should be ignored")
	tracker.Finish("h1", StatusComplete, "should also be ignored", nil)

	p, _ := tracker.Get("h1")
	if p.Status != StatusError || p.Message != "boom" {
		t.Errorf("terminal state mutated: %+v", p)
	}
}

func TestTracker_CancelAfterFinish(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("h1", 10, 1)
	tracker.Finish("h1", StatusComplete, "done", &ProcessResult{Handle: "h1"})

	if err := tracker.Cancel("h1"); !errors.Is(err, ErrAlreadyFinished) {
		t.Errorf("expected ErrAlreadyFinished, got %v", err)
	}
}

func TestTracker_SweepEvictsTerminalRuns(t *testing.T) {
	tracker := NewTracker()

	tracker.Start("done", 10, 1)
	tracker.Finish("done", StatusComplete, "done", &ProcessResult{Handle: "done"})

	tracker.Start("running", 10, 1)
	tracker.MarkProcessing("running")

	// everything terminal is older than a zero TTL
	if n := tracker.Sweep(0); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}

	if _, err := tracker.Get("done"); !errors.Is(err, ErrUnknownHandle) {
		t.Error("terminal run should be evicted")
	}
	if _, err := tracker.Get("running"); err != nil {
		t.Error("active run must survive the sweep")
	}
}

func TestTracker_SweepKeepsRecentRuns(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("h1", 10, 1)
	tracker.Finish("h1", StatusComplete, "done", &ProcessResult{Handle: "h1"})

	if n := tracker.Sweep(time.Hour); n != 0 {
		t.Errorf("expected no evictions inside TTL, got %d", n)
	}
}
