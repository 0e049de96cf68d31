package wine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTextTooShort       = errors.New("text too short to be a wine list")
	ErrNoLines            = errors.New("no parseable lines in text")
	ErrLineTooShort       = errors.New("line too short to analyze")
	ErrNotAWine           = errors.New("text not recognized as a wine")
	ErrServiceUnavailable = errors.New("extraction service unavailable")
)

// minimum characters for a pasted wine list (a single short word is
// rejected before any work starts)
const minTextLength = 10

// Service is the public entry point for wine-list ingestion. It starts
// background runs, answers progress polls, and passes reads through to
// the repository.
type Service struct {
	repo      Repository
	extractor *Extractor
	tracker   *Tracker
	scheduler *Scheduler
}

func NewService(repo Repository, extractor *Extractor, tracker *Tracker) *Service {
	return &Service{
		repo:      repo,
		extractor: extractor,
		tracker:   tracker,
		scheduler: NewScheduler(extractor, repo, tracker),
	}
}

// --------------------------------------------------
// START INGESTION (RETURNS IMMEDIATELY)
// --------------------------------------------------
func (s *Service) StartIngestion(ctx context.Context, text string) (string, error) {
	if len(strings.TrimSpace(text)) < minTextLength {
		return "", ErrTextTooShort
	}

	if !s.extractor.Available() {
		return "", ErrServiceUnavailable
	}

	lines := SplitLines(text)
	if len(lines) == 0 {
		return "", ErrNoLines
	}

	handle := uuid.New().String()
	s.tracker.Start(handle, len(lines), s.scheduler.TotalBatches(len(lines)))

	// the run outlives the HTTP request that started it
	go s.scheduler.Run(context.Background(), handle, lines)

	return handle, nil
}

// --------------------------------------------------
// PROGRESS POLLING
// --------------------------------------------------
func (s *Service) GetProgress(handle string) (*ProgressState, error) {
	return s.tracker.Get(handle)
}

func (s *Service) GetResult(handle string) (*ProcessResult, error) {
	return s.tracker.Result(handle)
}

func (s *Service) Cancel(handle string) error {
	return s.tracker.Cancel(handle)
}

// --------------------------------------------------
// SYNCHRONOUS SINGLE-LINE ANALYSIS
// --------------------------------------------------
func (s *Service) AnalyzeOne(ctx context.Context, line string) (*StoredWine, error) {
	line = strings.TrimSpace(line)
	if countNonSpace(line) < minLineChars {
		return nil, ErrLineTooShort
	}

	if !s.extractor.Available() {
		return nil, ErrServiceUnavailable
	}

	record, err := s.extractor.Extract(ctx, line)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	if record == nil || record.Name == "" {
		return nil, ErrNotAWine
	}

	id, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// --------------------------------------------------
// READ PASS-THROUGHS
// --------------------------------------------------
func (s *Service) ListWines(
	ctx context.Context,
	page, pageSize int,
	search string,
) (*WinePage, error) {
	return s.repo.List(ctx, page, pageSize, search)
}

func (s *Service) GetWine(ctx context.Context, id int) (*StoredWine, error) {
	return s.repo.GetByID(ctx, id)
}
