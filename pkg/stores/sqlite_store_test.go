package stores

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/engine"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testRun(id string, started time.Time) *Run {
	finished := started.Add(1500 * time.Millisecond)
	return &Run{
		ID:               id,
		Pipeline:         "demo.cue",
		Mode:             "batch",
		Status:           RunStatusCompleted,
		NumLoop:          10,
		DisplayFrequency: 1,
		ThreadMode:       true,
		Events:           10,
		Committed:        3,
		StartedAt:        started,
		FinishedAt:       &finished,
		Phases: []Phase{
			{Name: "Startup()", Status: "OK", StartedAt: started, Duration: time.Millisecond},
			{Name: "Analyze()", Status: "OK", StartedAt: started, Duration: time.Second},
		},
		Modules: []Module{
			{
				Index: 0, ID: "reader", Class: "Reader", Version: "1.0", On: true,
				Entry: 10, OK: 10,
				Parameters: []Parameter{
					{Name: "gain", Type: "float", Unit: "keV", Value: "2.5", Default: "1"},
					{Name: "count", Type: "int", Value: "7", Default: "0"},
				},
			},
			{Index: 1, ID: "writer", Class: "Writer", Version: "2.0", Description: "sink", On: false},
		},
	}
}

func TestStoreLifecycle(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected an error for an empty path")
	}

	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("health check must fail before Init")
	}
	if err := store.Migrate(ctx); err == nil {
		t.Error("migrate must fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	// A second migration is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate twice: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "phases", "modules", "parameters", "events"} {
		var count int
		err := store.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.SaveRun(ctx, testRun("run-001", started)); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	got, err := store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if got.Pipeline != "demo.cue" || got.Mode != "batch" || got.Status != RunStatusCompleted {
		t.Errorf("unexpected run header: %+v", got)
	}
	if !got.ThreadMode || got.Events != 10 || got.Committed != 3 {
		t.Errorf("unexpected counters: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if got.Duration() != 1500*time.Millisecond {
		t.Errorf("duration = %v", got.Duration())
	}
	if len(got.Phases) != 2 || got.Phases[1].Name != "Analyze()" || got.Phases[1].Duration != time.Second {
		t.Errorf("unexpected phases: %+v", got.Phases)
	}
	if len(got.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(got.Modules))
	}
	reader := got.Modules[0]
	if reader.ID != "reader" || !reader.On || reader.OK != 10 || len(reader.Parameters) != 2 {
		t.Errorf("unexpected reader: %+v", reader)
	}
	if p := reader.Parameters[0]; p.Name != "gain" || p.Unit != "keV" || p.Value != "2.5" {
		t.Errorf("unexpected parameter: %+v", p)
	}
	if w := got.Modules[1]; w.On || w.Description != "sink" || len(w.Parameters) != 0 {
		t.Errorf("unexpected writer: %+v", w)
	}
}

func TestSaveRunReplaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := testRun("run-001", time.Now())
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	msg := "Analyze() returned QUIT_ERROR"
	run.Status = RunStatusFailed
	run.Error = &msg
	run.Modules = run.Modules[:1]
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("failed to save run again: %v", err)
	}

	got, err := store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != RunStatusFailed || got.Error == nil || *got.Error != msg {
		t.Errorf("run not replaced: %+v", got)
	}
	if len(got.Modules) != 1 {
		t.Errorf("expected 1 module after replace, got %d", len(got.Modules))
	}
}

func TestListAndDeleteRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"a", "b", "c"} {
		if err := store.SaveRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		limit  int
		offset int
		want   []string
	}{
		{name: "all newest first", limit: 10, want: []string{"c", "b", "a"}},
		{name: "limited", limit: 2, want: []string{"c", "b"}},
		{name: "offset", limit: 10, offset: 2, want: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListRuns(ctx, tt.limit, tt.offset)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("got %d runs, want %d", len(runs), len(tt.want))
			}
			for i, r := range runs {
				if r.ID != tt.want[i] {
					t.Errorf("run %d = %s, want %s", i, r.ID, tt.want[i])
				}
				if r.Modules != nil {
					t.Errorf("ListRuns must not load modules")
				}
			}
		})
	}

	if err := store.DeleteRun(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetRun(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteRun(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}

	var orphans int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM parameters WHERE run_id = 'b'").Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("parameters of a deleted run survived: %d", orphans)
	}
}

func TestEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runA, runB := "run-a", "run-b"
	phase := "Prepare()"
	for _, e := range []*Event{
		{RunID: &runA, Type: "run.started", Level: EventLevelInfo, Message: "started"},
		{RunID: &runA, Type: "phase.failed", Phase: &phase, Level: EventLevelError, Message: "Prepare() returned QUIT_ERROR"},
		{RunID: &runB, Type: "gate.rejected", Level: EventLevelWarning, Message: "rejected"},
	} {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
		if e.ID == 0 {
			t.Error("event ID not assigned")
		}
	}

	errLevel := EventLevelError
	tests := []struct {
		name  string
		runID *string
		level *EventLevel
		want  int
	}{
		{name: "all", want: 3},
		{name: "by run", runID: &runA, want: 2},
		{name: "by level", level: &errLevel, want: 1},
		{name: "by run and level", runID: &runB, level: &errLevel, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.GetEvents(ctx, tt.runID, tt.level, 10, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}

	events, _ := store.GetEvents(ctx, &runA, &errLevel, 10, 0)
	if len(events) == 1 && (events[0].Phase == nil || *events[0].Phase != phase) {
		t.Errorf("phase not stored: %+v", events[0])
	}
}

func TestFromChainRun(t *testing.T) {
	started := time.Now()
	run := &chain.Run{
		ID:               uuid.New(),
		Mode:             chain.RunModeBatch,
		NumLoop:          5,
		DisplayFrequency: 1,
		StartedAt:        started,
		FinishedAt:       started.Add(time.Second),
		Committed:        2,
		Modules: []chain.ModuleSnapshot{
			{Index: 0, ID: "src", Class: "Source", Version: "1.0", On: true, Parameters: []chain.ParameterSnapshot{
				{Name: "rate", Type: "float", Value: "2", Default: "0"},
			}},
		},
		Phases: []chain.PhaseRecord{{Name: "Startup()", Status: engine.StatusOK, StartedAt: started}},
		Summary: &engine.Summary{Events: 5, Modules: []engine.ModuleCounters{
			{ModuleID: "src", Entry: 5, OK: 4, Skip: 1},
		}},
	}

	tests := []struct {
		name string
		err  error
		want RunStatus
	}{
		{name: "completed", want: RunStatusCompleted},
		{name: "rejected", err: chain.ErrGateRejected, want: RunStatusRejected},
		{name: "failed", err: errors.New("boom"), want: RunStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := FromChainRun(run, "demo", tt.err)
			if rec.Status != tt.want {
				t.Errorf("status = %s, want %s", rec.Status, tt.want)
			}
			if rec.ID != run.ID.String() || rec.Events != 5 || rec.Committed != 2 {
				t.Errorf("unexpected header: %+v", rec)
			}
			m := rec.Modules[0]
			if m.Entry != 5 || m.OK != 4 || m.Skip != 1 || m.Parameters[0].Value != "2" {
				t.Errorf("unexpected module: %+v", m)
			}
			if rec.Phases[0].Status != "OK" {
				t.Errorf("phase status = %s", rec.Phases[0].Status)
			}
		})
	}
}

func TestRecorder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := chain.New(
		chain.WithOutput(io.Discard),
		chain.WithLogger(zerolog.Nop()),
		chain.WithThreadMode(false),
		chain.WithObserver(NewRecorder(store, "inline", zerolog.Nop())),
	)
	m := &counter{}
	m.BasicModule = engine.NewBasicModule("Counter", "1.0", nil)
	if _, err := c.Push(m); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(ctx, 3, 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %v (%v)", runs, err)
	}
	got, err := store.GetRun(ctx, runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != RunStatusCompleted || got.Pipeline != "inline" || got.Events != 3 {
		t.Errorf("unexpected run: %+v", got)
	}
	if len(got.Phases) != 5 {
		t.Errorf("expected 5 phases, got %d", len(got.Phases))
	}
	if len(got.Modules) != 1 || got.Modules[0].OK != 3 {
		t.Errorf("unexpected modules: %+v", got.Modules)
	}
}

type counter struct {
	engine.BasicModule
}
