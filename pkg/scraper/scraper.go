package scraper

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"time"

	"qdreviews/pkg/config"
	"qdreviews/pkg/errors"
	"qdreviews/pkg/logger"
	"qdreviews/pkg/metrics"
	"qdreviews/pkg/qidian"
	"qdreviews/pkg/retry"
	"qdreviews/pkg/storage"
	"qdreviews/pkg/ui"
)

// ErrEmptyCatalog means the book's chapter list could not be obtained
var ErrEmptyCatalog = stderrors.New("no chapters found")

// Deps are the collaborators of a Scraper
type Deps struct {
	Client ReviewClient
	// Texts is optional; without it originalText stays empty
	Texts   TextSource
	Console *ui.Console
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// Scraper orchestrates one book
type Scraper struct {
	client  ReviewClient
	texts   TextSource
	console *ui.Console
	metrics *metrics.Metrics
	config  *config.Config
	logger  logger.Logger

	// pick returns an index in [0, n)
	pick func(n int) int
}

// New creates a Scraper
func New(cfg *config.Config, deps Deps) *Scraper {
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	console := deps.Console
	if console == nil {
		console = ui.NewConsole()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(deps.Client.BookID())
	}
	return &Scraper{
		client:  deps.Client,
		texts:   deps.Texts,
		console: console,
		metrics: m,
		config:  cfg,
		logger:  log.WithField("book", deps.Client.BookID()),
		pick:    rand.Intn,
	}
}

// Run scrapes every scheduled chapter of the book. Failures of single
// chapters are recorded in the report; the returned error is reserved for
// conditions that stop the run.
func (s *Scraper) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	bookID := s.client.BookID()
	report := &Report{BookID: bookID}

	s.console.PrintBanner(bookID)

	store, err := storage.NewManager(s.config.Output.BaseDirectory, bookID, s.logger)
	if err != nil {
		return report, err
	}
	report.ChaptersDir = store.ChaptersDir()

	s.logger.Info("acquiring credentials")
	if err := s.client.Authenticate(ctx); err != nil {
		s.console.PrintError("could not obtain credentials, giving up", err)
		return report, fmt.Errorf("acquire credentials: %w", err)
	}
	s.console.PrintSuccess("credentials acquired")

	s.console.PrintInfo("Fetching chapter list", bookID)
	chapters, err := s.client.Chapters(ctx)
	if err != nil || len(chapters) == 0 {
		s.console.PrintError("could not fetch the chapter list", err)
		if err != nil {
			return report, fmt.Errorf("%w: %w", ErrEmptyCatalog, err)
		}
		return report, ErrEmptyCatalog
	}
	report.ChaptersListed = len(chapters)

	scheduled, freeOnly := qidian.ScheduleChapters(chapters)
	report.ChaptersScheduled = len(scheduled)
	report.FreeOnly = freeOnly
	s.console.PrintInfo("Chapters", fmt.Sprintf("%d", len(chapters)))
	if freeOnly {
		s.console.PrintInfo("Free chapters", fmt.Sprintf("%d", len(scheduled)))
	} else {
		s.console.PrintWarning("no free chapters, trying all chapters")
	}
	if done := store.CompletedCount(); done > 0 {
		s.console.PrintInfo("Completed chapters found, will skip", fmt.Sprintf("%d", done))
	}

	runErr := s.runChapters(ctx, store, scheduled, report)

	report.Refreshes = s.client.Refreshes()
	report.Duration = time.Since(start)
	if runErr != nil {
		return report, runErr
	}

	merged, err := store.Merge()
	if err != nil {
		s.logger.WithError(err).Warn("failed to write the aggregate file")
	}
	if merged != nil {
		report.AggregatePath = merged.Path
		report.AggregateRows = merged.Rows
	}
	if report.AggregateRows == 0 {
		s.console.PrintWarning("no reviews collected")
	} else {
		s.console.PrintSuccess("merged %d reviews into %s", report.AggregateRows, report.AggregatePath)
	}

	report.Duration = time.Since(start)
	s.metrics.RunDuration.Set(report.Duration.Seconds())
	if path := s.config.Metrics.TextfilePath; path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			s.logger.WithError(err).Warn("failed to write metrics")
		}
	}
	s.printSummary(report)
	return report, nil
}

// runChapters walks the schedule. It returns only when ctx is done or the
// schedule is exhausted.
func (s *Scraper) runChapters(ctx context.Context, store *storage.Manager, scheduled []qidian.Chapter, report *Report) error {
	n := len(scheduled)
	for i, ch := range scheduled {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := ChapterResult{ID: ch.ID, Name: ch.Name, State: StatePending}
		if store.IsCompleted(ch.ID) {
			s.console.ChapterSkipped(i+1, n, ch.Name, ch.ID)
			result.State = StateSkipped
			s.record(report, result)
			continue
		}

		s.console.ChapterStart(i+1, n, ch.Name, ch.ID)
		state, comments, err := s.processChapter(ctx, store, ch)
		result.State, result.Comments, result.Err = state, comments, err

		switch {
		case err == nil:
		case ctx.Err() != nil:
			s.record(report, result)
			return ctx.Err()
		case errors.IsNetwork(err):
			s.console.PrintError("  network error, cooling down", err)
			report.Cooldowns++
			s.metrics.CooldownsTotal.Inc()
			if werr := retry.Wait(ctx, s.config.Pacing.NetworkCooldown); werr != nil {
				s.record(report, result)
				return werr
			}
			if rerr := s.client.Refresh(ctx); rerr != nil {
				s.logger.WithError(rerr).Warn("credential refresh after cooldown failed")
			}
		default:
			s.console.PrintError("  chapter failed", err)
			logger.LogFailure(s.logger, "chapter failed", err, map[string]interface{}{
				"chapter": ch.ID,
				"name":    ch.Name,
			})
		}
		s.record(report, result)

		if err == nil {
			if werr := retry.Wait(ctx, s.config.Pacing.ChapterPause); werr != nil {
				return werr
			}
		}
	}
	return nil
}

func (s *Scraper) record(report *Report, result ChapterResult) {
	report.Chapters = append(report.Chapters, result)
	report.Comments += result.Comments
	s.metrics.IncChapter(string(result.State))
	s.metrics.AddComments(result.Comments)
}

// processChapter enumerates one chapter completely and writes its file
func (s *Scraper) processChapter(ctx context.Context, store *storage.Manager, ch qidian.Chapter) (ChapterState, int, error) {
	referer := s.referer()

	segments, err := s.client.Summary(ctx, ch.ID, referer)
	if err != nil {
		return StateErrored, 0, err
	}
	if len(segments) == 0 {
		s.console.PrintWarning("  no paragraph reviews in this chapter")
		if _, err := store.WriteChapter(ch.ID, nil); err != nil {
			return StateErrored, 0, err
		}
		return StateFetchedEmpty, 0, nil
	}
	s.console.PrintInfo("  Commented paragraphs", fmt.Sprintf("%d", len(segments)))

	texts := map[string]string{}
	if s.texts != nil {
		texts = s.texts.SegmentTexts(ctx, ch.ID)
		if len(texts) > 0 {
			s.console.PrintInfo("  Original paragraphs", fmt.Sprintf("%d", len(texts)))
		} else {
			s.console.PrintWarning("  original text unavailable")
		}
	}

	var records []storage.Record
	for _, seg := range segments {
		comments, err := s.client.SegmentComments(ctx, ch.ID, seg.ID, referer)
		if err != nil {
			return StateErrored, 0, err
		}

		text := texts[seg.ID]
		s.console.SegmentDone(seg.ID, len(comments), text)
		for _, cm := range comments {
			cm.Set("chapterId", ch.ID)
			cm.Set("chapterName", ch.Name)
			cm.Set("originalText", text)
			records = append(records, cm)
		}

		if err := retry.Wait(ctx, s.config.Pacing.SegmentPause); err != nil {
			return StateErrored, 0, err
		}
	}

	path, err := store.WriteChapter(ch.ID, records)
	if err != nil {
		return StateErrored, 0, err
	}
	if len(records) == 0 {
		return StateFetchedEmpty, 0, nil
	}
	s.console.PrintSuccess("  saved %s (%d reviews)", path, len(records))
	return StateFetched, len(records), nil
}

func (s *Scraper) referer() string {
	refs := s.config.Qidian.Referers
	if len(refs) == 0 {
		return qidian.BaseURL
	}
	return refs[s.pick(len(refs))]
}

func (s *Scraper) printSummary(r *Report) {
	rows := []ui.SummaryRow{
		{Label: "Chapters listed", Value: r.ChaptersListed},
		{Label: "Chapters scheduled", Value: r.ChaptersScheduled},
		{Label: "Fetched", Value: r.Count(StateFetched)},
		{Label: "Fetched, no reviews", Value: r.Count(StateFetchedEmpty)},
		{Label: "Skipped (already done)", Value: r.Count(StateSkipped)},
		{Label: "Errored", Value: r.Count(StateErrored)},
		{Label: "Reviews this run", Value: r.Comments},
		{Label: "Credential refreshes", Value: r.Refreshes},
		{Label: "Duration", Value: r.Duration.Round(time.Second).String()},
	}
	if r.AggregatePath != "" {
		rows = append(rows, ui.SummaryRow{Label: "Aggregate file", Value: r.AggregatePath})
	}
	s.console.PrintSummary("Book "+r.BookID, rows)
}
