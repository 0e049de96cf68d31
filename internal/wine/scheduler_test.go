package wine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------
// Fake LLM client
// --------------------------------------------------

// fakeLLM extracts "name + vintage" by pulling a 4-digit year out of
// the line, and can be told to fail specific lines or report lines as
// not wines.
type fakeLLM struct {
	mu           sync.Mutex
	calls        []string
	failLines    map[string]bool
	notWineLines map[string]bool
	unconfigured bool
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		failLines:    make(map[string]bool),
		notWineLines: make(map[string]bool),
	}
}

func (f *fakeLLM) Configured() bool {
	return !f.unconfigured
}

func (f *fakeLLM) ExtractWine(ctx context.Context, line string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, line)
	f.mu.Unlock()

	if f.failLines[line] {
		return "", errors.New("simulated service error")
	}
	if f.notWineLines[line] {
		return `{"name": ""}`, nil
	}

	vintage := vintageRe.FindString(line)
	name := strings.Join(strings.Fields(strings.Replace(line, vintage, "", 1)), " ")
	if name == "" {
		name = line
	}

	out, _ := json.Marshal(map[string]any{
		"name":    name,
		"vintage": vintage,
	})
	return string(out), nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// --------------------------------------------------
// Test harness
// --------------------------------------------------

func newTestScheduler(client *fakeLLM, repo Repository, tracker *Tracker) *Scheduler {
	s := NewScheduler(NewExtractor(client, nil, false), repo, tracker)
	s.sleep = func(time.Duration) {} // no real throttling in tests
	return s
}

func waitTerminal(t *testing.T, tracker *Tracker, handle string) *ProgressState {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p, err := tracker.Get(handle)
		if err != nil {
			t.Fatal(err)
		}
		if p.Status.Terminal() {
			return p
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("run never reached a terminal status")
	return nil
}

// --------------------------------------------------
// Line splitting
// --------------------------------------------------

func TestSplitLines_FiltersShortLines(t *testing.T) {
	lines := SplitLines("Opus One 2018\nX\n  \nab c\nChâteau Margaux 2015 Bordeaux\n")

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "Opus One 2018" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "Château Margaux 2015 Bordeaux" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestSplitLines_TrimsCarriageReturns(t *testing.T) {
	lines := SplitLines("Opus One 2018\r\nBarolo Riserva\r\n")

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, l := range lines {
		if strings.ContainsRune(l, '\r') {
			t.Errorf("line still carries CR: %q", l)
		}
	}
}

// --------------------------------------------------
// Adaptive batch plan
// --------------------------------------------------

func TestPlan_Tiers(t *testing.T) {
	s := newTestScheduler(newFakeLLM(), NewInMemoryRepository(), NewTracker())

	cases := []struct {
		lines     int
		batchSize int
		delay     time.Duration
	}{
		{50, 200, 50 * time.Millisecond},
		{100, 200, 50 * time.Millisecond},
		{101, 100, 100 * time.Millisecond},
		{500, 100, 100 * time.Millisecond},
		{501, 50, 150 * time.Millisecond},
		{1000, 50, 150 * time.Millisecond},
		{1001, 25, 250 * time.Millisecond},
		{5000, 25, 250 * time.Millisecond},
	}

	for _, tc := range cases {
		size, delay := s.plan(tc.lines)
		if size != tc.batchSize || delay != tc.delay {
			t.Errorf("plan(%d) = (%d, %v), want (%d, %v)",
				tc.lines, size, delay, tc.batchSize, tc.delay)
		}
	}
}

func TestTotalBatches(t *testing.T) {
	s := newTestScheduler(newFakeLLM(), NewInMemoryRepository(), NewTracker())

	if got := s.TotalBatches(50); got != 1 {
		t.Errorf("TotalBatches(50) = %d, want 1", got)
	}
	if got := s.TotalBatches(401); got != 5 {
		t.Errorf("TotalBatches(401) = %d, want 5", got)
	}
}

// --------------------------------------------------
// Run scenarios
// --------------------------------------------------

func TestRun_IngestsAllLines(t *testing.T) {
	client := newFakeLLM()
	repo := NewInMemoryRepository()
	tracker := NewTracker()
	s := newTestScheduler(client, repo, tracker)

	lines := SplitLines("Opus One 2018\nX\nChâteau Margaux 2015 Bordeaux\n")
	tracker.Start("h1", len(lines), s.TotalBatches(len(lines)))
	s.Run(context.Background(), "h1", lines)

	if client.callCount() != 2 {
		t.Errorf("expected 2 extraction attempts, got %d", client.callCount())
	}

	p, _ := tracker.Get("h1")
	if p.Status != StatusComplete {
		t.Fatalf("expected complete, got %s (%s)", p.Status, p.Message)
	}
	if p.Percent != 100 {
		t.Errorf("expected percent 100, got %d", p.Percent)
	}

	result, err := tracker.Result("h1")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Processed != 2 || result.Errored != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	count, _ := repo.Count(context.Background())
	if count != 2 {
		t.Errorf("expected 2 stored wines, got %d", count)
	}
}

func TestRun_ContinuesPastFailedLines(t *testing.T) {
	client := newFakeLLM()
	client.failLines["Bad Line 2019"] = true
	client.failLines["Worse Line 2020"] = true

	repo := NewInMemoryRepository()
	tracker := NewTracker()
	s := newTestScheduler(client, repo, tracker)

	lines := []string{
		"Opus One 2018",
		"Bad Line 2019",
		"Worse Line 2020",
		"Barolo Riserva 2016",
	}
	tracker.Start("h1", len(lines), s.TotalBatches(len(lines)))
	s.Run(context.Background(), "h1", lines)

	p, _ := tracker.Get("h1")
	if p.Status != StatusComplete {
		t.Fatalf("expected complete despite errors, got %s", p.Status)
	}
	if p.Errored != 2 {
		t.Errorf("expected 2 errors, got %d", p.Errored)
	}
	if p.Processed != 2 {
		t.Errorf("expected 2 processed, got %d", p.Processed)
	}
	if p.Percent != 100 {
		t.Errorf("expected percent 100, got %d", p.Percent)
	}
}

func TestRun_NotAWineLinesAreNotStored(t *testing.T) {
	client := newFakeLLM()
	client.notWineLines["Sparkling Wines By The Glass"] = true

	repo := NewInMemoryRepository()
	tracker := NewTracker()
	s := newTestScheduler(client, repo, tracker)

	lines := []string{"Sparkling Wines By The Glass", "Opus One 2018"}
	tracker.Start("h1", len(lines), 1)
	s.Run(context.Background(), "h1", lines)

	count, _ := repo.Count(context.Background())
	if count != 1 {
		t.Errorf("expected 1 stored wine, got %d", count)
	}

	result, _ := tracker.Result("h1")
	if result.Processed != 2 || result.Errored != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRun_AbortsWhenStoreUnreachable(t *testing.T) {
	client := newFakeLLM()
	repo := NewInMemoryRepository()
	repo.Unreachable = true
	tracker := NewTracker()
	s := newTestScheduler(client, repo, tracker)

	lines := []string{
		"Opus One 2018",
		"Barolo Riserva 2016",
		"Chianti Classico 2019",
		"Rioja Gran Reserva 2012",
	}
	tracker.Start("h1", len(lines), 1)
	s.Run(context.Background(), "h1", lines)

	p, _ := tracker.Get("h1")
	if p.Status != StatusError {
		t.Fatalf("expected error status, got %s", p.Status)
	}

	result, err := tracker.Result("h1")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("expected success=false on aborted run")
	}
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	client := newFakeLLM()
	repo := NewInMemoryRepository()
	tracker := NewTracker()
	s := newTestScheduler(client, repo, tracker)

	lines := []string{"Opus One 2018", "Barolo Riserva 2016"}
	tracker.Start("h1", len(lines), 1)

	if err := tracker.Cancel("h1"); err != nil {
		t.Fatal(err)
	}

	s.Run(context.Background(), "h1", lines)

	p, _ := tracker.Get("h1")
	if p.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", p.Status)
	}
	if client.callCount() != 0 {
		t.Errorf("expected no extraction calls after cancel, got %d", client.callCount())
	}
}
