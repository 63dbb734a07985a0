package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Majd-SaaS/prospection/internal/browser"
	"github.com/Majd-SaaS/prospection/internal/domain"
	"github.com/Majd-SaaS/prospection/internal/events"
	"github.com/Majd-SaaS/prospection/internal/queue"
	"github.com/Majd-SaaS/prospection/internal/quota"
	"github.com/Majd-SaaS/prospection/internal/result"
	"github.com/Majd-SaaS/prospection/internal/server"
	"github.com/Majd-SaaS/prospection/internal/target"
)

// ErrQuotaReached stops a run before any target is processed. It is a clean
// stop, not a failure.
var ErrQuotaReached = errors.New("daily quota reached")

func timeoutReason(d time.Duration) string {
	return fmt.Sprintf("no report within %gs", d.Seconds())
}

// Options are the knobs for one follow run.
type Options struct {
	DailyLimit      int
	CallbackTimeout time.Duration
	DelayBetween    time.Duration
	DisplayDuration int
	// QueueFile, when set, is rewritten to the remaining suffix after each
	// completed item so a crash loses at most the in-flight target.
	QueueFile string
}

// Engine drives the launch/report loop: exactly one task outstanding at any
// time, each outcome persisted before the next target is launched.
type Engine struct {
	Results *result.Store
	Server  *server.Server
	Quota   *quota.Tracker
	Log     events.ResultLog
	Events  *events.Writer
	Logger  *slog.Logger

	// MarkProcessed is invoked for every non-error outcome; DB-backed runs
	// use it to flip the record's processed flag.
	MarkProcessed func(ctx context.Context, url string) error

	OpenURL func(url string) error
	Now     func() time.Time
	Sleep   func(d time.Duration)
}

// New wires an engine around a fresh result store and callback server.
func New(tracker *quota.Tracker, log events.ResultLog) *Engine {
	results := result.NewStore()
	return &Engine{
		Results: results,
		Server:  server.New(results),
		Quota:   tracker,
		Log:     log,
		Logger:  slog.Default(),
		OpenURL: browser.Open,
		Now:     time.Now,
		Sleep:   time.Sleep,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) sleep(d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Run processes targets sequentially and returns one outcome per attempted
// target. Per-target failures are data, never control flow; the only early
// stops are quota exhaustion before the first target and context
// cancellation between targets.
func (e *Engine) Run(ctx context.Context, targets []string, opts Options) ([]domain.Outcome, error) {
	all := target.MergeUnique(targets)
	if len(all) == 0 {
		return nil, errors.New("no targets to process")
	}

	remaining := e.Quota.Remaining(opts.DailyLimit)
	if remaining <= 0 {
		return nil, ErrQuotaReached
	}
	// Truncation only limits which prefix is attempted this run. The queue
	// rewrite below always uses the full list, so the untouched tail stays
	// on disk for the next run.
	attempt := all
	if remaining < len(all) {
		e.logger().Info("daily quota truncates run",
			"limit", opts.DailyLimit, "remaining", remaining, "targets", len(all))
		attempt = all[:remaining]
	}

	if err := e.Server.Start(); err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Server.Shutdown(shutdownCtx); err != nil {
			e.logger().Warn("callback server shutdown", "error", err)
		}
	}()

	var outcomes []domain.Outcome
	for i, raw := range attempt {
		if i > 0 && opts.DelayBetween > 0 {
			e.sleep(opts.DelayBetween)
		}
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome := e.processOne(ctx, raw, opts)
		outcomes = append(outcomes, outcome)

		if err := e.persist(ctx, outcome, all[i+1:], opts); err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// processOne takes a raw target through normalize, launch and await-report.
func (e *Engine) processOne(ctx context.Context, raw string, opts Options) domain.Outcome {
	normalized, err := target.Normalize(raw)
	if err != nil {
		return domain.Outcome{URL: raw, Status: domain.StatusError, Reason: err.Error()}
	}

	task := domain.Task{
		ID:        uuid.NewString(),
		URL:       normalized,
		Port:      e.Server.Port(),
		Duration:  opts.DisplayDuration,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	e.logger().Info("launching target", "url", task.URL, "task_id", task.ID)

	if err := e.OpenURL(e.Server.LaunchURL(task)); err != nil {
		// Indistinguishable from "the actor never reported": keep waiting so
		// the outcome surfaces as a timeout.
		e.logger().Warn("open browser tab", "url", task.URL, "error", err)
	}

	report, ok := e.Results.Wait(ctx, task.ID, opts.CallbackTimeout)
	if !ok {
		reason := timeoutReason(opts.CallbackTimeout)
		if ctx.Err() != nil {
			reason = "run interrupted before report"
		}
		return domain.Outcome{URL: normalized, Status: domain.StatusError, Reason: reason}
	}
	return domain.Outcome{URL: normalized, Status: report.Status, Reason: report.Reason}
}

// persist writes one completed item's state in order: result log, action
// event, quota, queue suffix, processed flag.
func (e *Engine) persist(ctx context.Context, outcome domain.Outcome, rest []string, opts Options) error {
	if err := e.Log.Append(outcome); err != nil {
		return fmt.Errorf("append result log: %w", err)
	}
	if e.Events != nil {
		if err := e.Events.Append(ctx, "follow.attempt", outcome.URL, outcome.Status, outcome.Reason); err != nil {
			e.logger().Warn("append event", "url", outcome.URL, "error", err)
		}
	}
	if err := e.Quota.Record(opts.DailyLimit); err != nil {
		return fmt.Errorf("record quota: %w", err)
	}
	if opts.QueueFile != "" {
		if err := queue.Write(opts.QueueFile, rest); err != nil {
			return err
		}
	}
	if e.MarkProcessed != nil && !outcome.IsError() {
		if err := e.MarkProcessed(ctx, outcome.URL); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
	}
	return nil
}
