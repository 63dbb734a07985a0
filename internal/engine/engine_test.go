package engine_test

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Majd-SaaS/prospection/internal/domain"
	"github.com/Majd-SaaS/prospection/internal/engine"
	"github.com/Majd-SaaS/prospection/internal/events"
	"github.com/Majd-SaaS/prospection/internal/queue"
	"github.com/Majd-SaaS/prospection/internal/quota"
	"github.com/Majd-SaaS/prospection/internal/render"
	prospectsdk "github.com/Majd-SaaS/prospection/sdk/go"
)

type testEnv struct {
	Engine    *engine.Engine
	Dir       string
	QuotaPath string
	LogPath   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		Dir:       dir,
		QuotaPath: filepath.Join(dir, "quota.json"),
		LogPath:   filepath.Join(dir, "results.csv"),
	}
	tracker := quota.NewTracker(env.QuotaPath, nil)
	env.Engine = engine.New(tracker, events.ResultLog{Path: env.LogPath})
	env.Engine.Sleep = func(time.Duration) {}
	return env
}

// reportingActor simulates the extension: it inspects the launch URL the
// engine opens and posts the given status back through the real HTTP path.
func (env *testEnv) reportingActor(t *testing.T, status, reason string) func(string) error {
	t.Helper()
	return func(launchURL string) error {
		parsed, err := url.Parse(launchURL)
		if err != nil {
			t.Fatalf("parse launch url: %v", err)
		}
		q := parsed.Query()
		taskID := q.Get("task_id")
		targetURL := q.Get("url")
		if taskID == "" || targetURL == "" {
			t.Fatalf("launch url missing params: %s", launchURL)
		}
		go func() {
			client := prospectsdk.New("http://" + parsed.Host)
			_ = client.SendReport(context.Background(), prospectsdk.Report{
				TaskID: taskID,
				URL:    targetURL,
				Status: status,
				Reason: reason,
			})
		}()
		return nil
	}
}

func TestRunSingleTargetFollowed(t *testing.T) {
	env := newTestEnv(t)
	queueFile := filepath.Join(env.Dir, "queue.txt")
	if err := queue.Write(queueFile, []string{"example.com/x"}); err != nil {
		t.Fatal(err)
	}
	env.Engine.OpenURL = env.reportingActor(t, "follow", "")

	var marked []string
	env.Engine.MarkProcessed = func(_ context.Context, u string) error {
		marked = append(marked, u)
		return nil
	}

	outcomes, err := env.Engine.Run(context.Background(), []string{"example.com/x"}, engine.Options{
		DailyLimit:      5,
		CallbackTimeout: 5 * time.Second,
		DisplayDuration: 3,
		QueueFile:       queueFile,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].Status != domain.StatusFollow {
		t.Fatalf("unexpected outcome %+v", outcomes[0])
	}
	if outcomes[0].URL != "https://example.com/x" {
		t.Fatalf("expected normalized URL, got %q", outcomes[0].URL)
	}

	data, err := os.ReadFile(queueFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("queue file should be empty, got %q", data)
	}

	logData, err := os.ReadFile(env.LogPath)
	if err != nil {
		t.Fatalf("result log missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(logData)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "follow") {
		t.Fatalf("log row missing status: %s", lines[1])
	}

	if tr := quota.NewTracker(env.QuotaPath, nil); tr.Used() != 1 {
		t.Fatalf("expected quota count 1, got %d", tr.Used())
	}
	if len(marked) != 1 || marked[0] != "https://example.com/x" {
		t.Fatalf("mark processed calls: %v", marked)
	}
	if render.ExitCode(outcomes) != 0 {
		t.Fatal("expected zero exit code")
	}
}

func TestRunTimeoutBecomesErrorOutcome(t *testing.T) {
	env := newTestEnv(t)
	opened := 0
	env.Engine.OpenURL = func(string) error {
		opened++
		return nil
	}

	start := time.Now()
	outcomes, err := env.Engine.Run(context.Background(), []string{"https://example.com/x"}, engine.Options{
		CallbackTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Fatal("run returned before the callback timeout")
	}
	if opened != 1 {
		t.Fatalf("expected 1 launch, got %d", opened)
	}
	if len(outcomes) != 1 || !outcomes[0].IsError() {
		t.Fatalf("expected error outcome, got %+v", outcomes)
	}
	if !strings.Contains(outcomes[0].Reason, "no report") {
		t.Fatalf("unexpected reason %q", outcomes[0].Reason)
	}
	if render.ExitCode(outcomes) != 1 {
		t.Fatal("expected non-zero exit code")
	}
}

func TestRunStopsCleanlyWhenQuotaExhausted(t *testing.T) {
	env := newTestEnv(t)
	tr := quota.NewTracker(env.QuotaPath, nil)
	_ = tr.Record(1)
	env.Engine.Quota = quota.NewTracker(env.QuotaPath, nil)

	queueFile := filepath.Join(env.Dir, "queue.txt")
	if err := queue.Write(queueFile, []string{"https://a", "https://b"}); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(queueFile)

	env.Engine.OpenURL = func(string) error {
		t.Fatal("no launch expected when quota is exhausted")
		return nil
	}
	_, err := env.Engine.Run(context.Background(), []string{"https://a", "https://b"}, engine.Options{
		DailyLimit:      1,
		CallbackTimeout: time.Second,
		QueueFile:       queueFile,
	})
	if err != engine.ErrQuotaReached {
		t.Fatalf("expected ErrQuotaReached, got %v", err)
	}

	after, _ := os.ReadFile(queueFile)
	if string(before) != string(after) {
		t.Fatal("queue file must remain unchanged")
	}
}

func TestRunTruncatesToRemainingQuota(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.OpenURL = env.reportingActor(t, "follow", "")

	queueFile := filepath.Join(env.Dir, "queue.txt")
	targets := []string{"https://a", "https://b", "https://c"}
	if err := queue.Write(queueFile, targets); err != nil {
		t.Fatal(err)
	}

	outcomes, err := env.Engine.Run(context.Background(), targets, engine.Options{
		DailyLimit:      2,
		CallbackTimeout: 5 * time.Second,
		QueueFile:       queueFile,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}

	remaining, err := queue.Read(queueFile)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if len(remaining) != 1 || remaining[0] != "https://c" {
		t.Fatalf("untouched tail must stay on disk, got %v", remaining)
	}
}

func TestRunInterruptUnblocksWaitPromptly(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.OpenURL = func(string) error { return nil } // actor stays silent

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcomes, _ := env.Engine.Run(ctx, []string{"https://example.com/a"}, engine.Options{
		CallbackTimeout: 30 * time.Second,
	})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancellation should not wait out the callback timeout, took %v", elapsed)
	}
	if len(outcomes) != 1 || outcomes[0].Status != domain.StatusError {
		t.Fatalf("interrupted target must still yield an error outcome, got %+v", outcomes)
	}
	if !strings.Contains(outcomes[0].Reason, "interrupted") {
		t.Fatalf("unexpected reason %q", outcomes[0].Reason)
	}
}

func TestRunBadURLSkipsLaunch(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.OpenURL = func(string) error {
		t.Fatal("normalization failures must not reach the browser")
		return nil
	}

	outcomes, err := env.Engine.Run(context.Background(), []string{"   ", "\t"}, engine.Options{
		CallbackTimeout: time.Second,
	})
	// All-blank input collapses to an empty target list.
	if err == nil {
		t.Fatalf("expected error, got outcomes %v", outcomes)
	}
}

func TestRunRecordsErrorOutcomeForActorFailure(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.OpenURL = env.reportingActor(t, "error", "follow button not found")

	outcomes, err := env.Engine.Run(context.Background(), []string{"https://example.com/a"}, engine.Options{
		CallbackTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != domain.StatusError {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if outcomes[0].Reason != "follow button not found" {
		t.Fatalf("reason must pass through verbatim, got %q", outcomes[0].Reason)
	}
}

func TestRunAppliesDelayBetweenTargets(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.OpenURL = env.reportingActor(t, "follow", "")

	var slept []time.Duration
	env.Engine.Sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err := env.Engine.Run(context.Background(), []string{"https://a", "https://b"}, engine.Options{
		CallbackTimeout: 5 * time.Second,
		DelayBetween:    1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(slept) != 1 || slept[0] != 1500*time.Millisecond {
		t.Fatalf("expected one inter-item delay, got %v", slept)
	}
}
