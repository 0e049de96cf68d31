package wine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"
)

// Adaptive throttle policy: bigger lists get smaller batches and longer
// per-item delays so a long-running job stays inside the extraction
// service's throughput limits.
type batchTier struct {
	minLines  int
	batchSize int
	itemDelay time.Duration
}

var defaultTiers = []batchTier{
	{minLines: 1001, batchSize: 25, itemDelay: 250 * time.Millisecond},
	{minLines: 501, batchSize: 50, itemDelay: 150 * time.Millisecond},
	{minLines: 101, batchSize: 100, itemDelay: 100 * time.Millisecond},
	{minLines: 0, batchSize: 200, itemDelay: 50 * time.Millisecond},
}

const (
	// pause between batches so any downstream rate limiter recovers
	defaultBatchPause = 2 * time.Second

	// push a progress update every N lines instead of every line
	progressEvery = 5

	// cap on the record sample attached to the terminal result
	maxSampleSize = 20

	// consecutive store failures that mean "store unreachable, abort"
	maxStoreErrStreak = 3

	// lines shorter than this (non-whitespace chars) are noise
	minLineChars = 4
)

// Scheduler drives one ingestion run: sequential extraction, dedup
// upserts, throttling, and progress emission. Never parallel: the
// bottleneck is the extraction service's rate limit, not CPU.
type Scheduler struct {
	extractor *Extractor
	repo      Repository
	tracker   *Tracker

	tiers      []batchTier
	batchPause time.Duration
	sleep      func(time.Duration) // injectable so tests run instantly
}

func NewScheduler(extractor *Extractor, repo Repository, tracker *Tracker) *Scheduler {
	return &Scheduler{
		extractor:  extractor,
		repo:       repo,
		tracker:    tracker,
		tiers:      defaultTiers,
		batchPause: defaultBatchPause,
		sleep:      time.Sleep,
	}
}

// SplitLines turns raw multi-line text into the lines worth extracting.
// Lines with fewer than 4 non-whitespace characters are too short to
// plausibly be a wine entry and never reach the extractor.
func SplitLines(text string) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if countNonSpace(line) < minLineChars {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// plan picks the batch size and per-item delay for a line count.
func (s *Scheduler) plan(totalLines int) (int, time.Duration) {
	for _, tier := range s.tiers {
		if totalLines >= tier.minLines {
			return tier.batchSize, tier.itemDelay
		}
	}
	last := s.tiers[len(s.tiers)-1]
	return last.batchSize, last.itemDelay
}

// TotalBatches reports how many batches a line count splits into.
func (s *Scheduler) TotalBatches(totalLines int) int {
	batchSize, _ := s.plan(totalLines)
	return (totalLines + batchSize - 1) / batchSize
}

// Run processes all lines of one ingestion run. It is the single
// writer for this handle's progress entry and must be invoked in its
// own goroutine by the facade.
func (s *Scheduler) Run(ctx context.Context, handle string, lines []string) {
	total := len(lines)
	batchSize, itemDelay := s.plan(total)
	totalBatches := (total + batchSize - 1) / batchSize

	s.tracker.MarkProcessing(handle)
	log.Printf("WINE_INGEST_STARTED handle=%s lines=%d batches=%d batch_size=%d",
		handle, total, totalBatches, batchSize)

	var (
		processed    int
		errored      int
		storeStreak  int
		sample       []WineRecord
		currentBatch int
	)

	finish := func(status Status, success bool, message string) {
		totalInStore, err := s.repo.Count(ctx)
		if err != nil {
			log.Printf("WINE_INGEST_COUNT_FAILED handle=%s err=%v", handle, err)
		}
		s.tracker.Finish(handle, status, message, &ProcessResult{
			Handle:       handle,
			Success:      success,
			Processed:    processed,
			Errored:      errored,
			TotalInStore: totalInStore,
			Sample:       sample,
			Message:      message,
		})
		log.Printf("WINE_INGEST_FINISHED handle=%s status=%s processed=%d errored=%d",
			handle, status, processed, errored)
	}

	for batchStart := 0; batchStart < total; batchStart += batchSize {
		currentBatch++

		batchEnd := batchStart + batchSize
		if batchEnd > total {
			batchEnd = total
		}

		s.tracker.Record(handle, processed, errored, currentBatch,
			fmt.Sprintf("processing batch %d of %d", currentBatch, totalBatches))

		for i := batchStart; i < batchEnd; i++ {
			if s.tracker.Cancelled(handle) {
				finish(StatusCancelled, false, "cancelled by caller")
				return
			}

			record, err := s.extractor.Extract(ctx, lines[i])
			switch {
			case err != nil:
				// one bad line never aborts the run
				errored++
				log.Printf("WINE_EXTRACT_FAILED handle=%s line=%d err=%v",
					handle, i+1, err)

			case record == nil || record.Name == "":
				// correctly identified as not a wine
				processed++

			default:
				if _, err := s.repo.Upsert(ctx, record); err != nil {
					errored++
					storeStreak++
					log.Printf("WINE_UPSERT_FAILED handle=%s line=%d err=%v",
						handle, i+1, err)
					if storeStreak >= maxStoreErrStreak {
						finish(StatusError, false,
							"store unreachable: "+err.Error())
						return
					}
				} else {
					storeStreak = 0
					processed++
					if len(sample) < maxSampleSize {
						sample = append(sample, *record)
					}
				}
			}

			if (processed+errored)%progressEvery == 0 || i == batchEnd-1 {
				s.tracker.Record(handle, processed, errored, currentBatch, "")
			}

			if i < batchEnd-1 {
				s.sleep(itemDelay)
			}
		}

		if batchEnd < total {
			s.sleep(s.batchPause)
		}
	}

	finish(StatusComplete, true, fmt.Sprintf(
		"processed %d lines (%d errors), wine list ingested", processed, errored))
}
