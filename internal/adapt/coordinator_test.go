package adapt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/seald/internal/feedback"
	"github.com/kalambet/seald/internal/model"
	"github.com/kalambet/seald/internal/policy"
	"github.com/kalambet/seald/internal/storage"
	"github.com/kalambet/seald/internal/trainer"
)

type fakeJournal struct {
	recs []feedback.Record
	err  error
}

func (j *fakeJournal) Append(rec feedback.Record) error {
	if j.err != nil {
		return j.err
	}
	j.recs = append(j.recs, rec)
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []storage.AdaptationEvent
}

func (a *fakeAudit) AppendAdaptationEvent(kind, detail string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, storage.AdaptationEvent{
		Seq:       int64(len(a.events) + 1),
		Kind:      kind,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return int64(len(a.events)), nil
}

func (a *fakeAudit) ListAdaptationEvents() ([]storage.AdaptationEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]storage.AdaptationEvent(nil), a.events...), nil
}

type fakeModels struct {
	loads   []string
	loadErr error
}

func (m *fakeModels) Load(_ context.Context, adapterPath string) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loads = append(m.loads, adapterPath)
	return nil
}

func (m *fakeModels) State() model.State {
	adapter := ""
	if len(m.loads) > 0 {
		adapter = m.loads[len(m.loads)-1]
	}
	return model.State{Status: model.StatusReady, BaseModel: "phi-2-sim", ActiveAdapter: adapter, Device: "cpu"}
}

type fakeTuner struct {
	batches [][]feedback.Record
	runErr  error
	skip    bool
}

func (t *fakeTuner) Run(_ context.Context, batch []feedback.Record, _, _ string) (trainer.Result, error) {
	t.batches = append(t.batches, batch)
	if t.runErr != nil {
		return trainer.Result{}, t.runErr
	}
	if t.skip {
		return trainer.Result{Skipped: true}, nil
	}
	path := fmt.Sprintf("adapters/adapter_%d/final", len(t.batches))
	return trainer.Result{Artifact: &trainer.Artifact{Path: path, CreatedFromBatchSize: len(batch)}}, nil
}

type harness struct {
	coord   *Coordinator
	journal *fakeJournal
	audit   *fakeAudit
	models  *fakeModels
	tuner   *fakeTuner
	pool    *feedback.Pool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	pol, err := policy.New(3)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	h := &harness{
		journal: &fakeJournal{},
		audit:   &fakeAudit{},
		models:  &fakeModels{},
		tuner:   &fakeTuner{},
		pool:    feedback.NewPool(),
	}
	h.coord = NewCoordinator(h.journal, h.pool, pol, h.tuner, h.models, h.audit,
		"phi-2-sim", "adapters", nil)
	return h
}

func rec(n int) feedback.Record {
	return feedback.Record{
		ID:                  fmt.Sprintf("f%d", n),
		Prompt:              fmt.Sprintf("prompt %d", n),
		OriginalCompletion:  "wrong",
		CorrectedCompletion: "right",
	}
}

func TestProgressMessagesBelowThreshold(t *testing.T) {
	h := newHarness(t)

	for i := 1; i <= 2; i++ {
		msg, err := h.coord.SubmitFeedback(context.Background(), rec(i))
		if err != nil {
			t.Fatalf("SubmitFeedback %d: %v", i, err)
		}
		want := fmt.Sprintf("Feedback received. %d/3 to next adaptation.", i)
		if msg != want {
			t.Errorf("message %d = %q, want %q", i, msg, want)
		}
	}
	if len(h.tuner.batches) != 0 {
		t.Errorf("cycle ran before threshold: %d runs", len(h.tuner.batches))
	}
	if h.pool.Len() != 2 {
		t.Errorf("pool size = %d, want 2", h.pool.Len())
	}
}

func TestThresholdTriggersFullCycle(t *testing.T) {
	h := newHarness(t)

	var msg string
	var err error
	for i := 1; i <= 3; i++ {
		msg, err = h.coord.SubmitFeedback(context.Background(), rec(i))
		if err != nil {
			t.Fatalf("SubmitFeedback %d: %v", i, err)
		}
	}
	if msg != "Feedback received. Adaptation triggered and completed." {
		t.Errorf("trigger message = %q", msg)
	}

	if len(h.tuner.batches) != 1 || len(h.tuner.batches[0]) != 3 {
		t.Fatalf("tuner batches = %v", h.tuner.batches)
	}
	if len(h.models.loads) != 1 || h.models.loads[0] != "adapters/adapter_1/final" {
		t.Errorf("model loads = %v", h.models.loads)
	}
	if h.pool.Len() != 0 {
		t.Errorf("pool size after cycle = %d, want 0", h.pool.Len())
	}

	events, _ := h.audit.ListAdaptationEvents()
	if len(events) != 2 {
		t.Fatalf("got %d audit events, want 2", len(events))
	}
	if events[0].Kind != KindCycleStarted || events[0].Detail != "Fine-tuning process initiated." {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Kind != KindModelUpdated ||
		events[1].Detail != "Model updated with adapter: adapters/adapter_1/final" {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestCounterResetsAfterTrigger(t *testing.T) {
	h := newHarness(t)

	for i := 1; i <= 3; i++ {
		if _, err := h.coord.SubmitFeedback(context.Background(), rec(i)); err != nil {
			t.Fatalf("SubmitFeedback %d: %v", i, err)
		}
	}
	msg, err := h.coord.SubmitFeedback(context.Background(), rec(4))
	if err != nil {
		t.Fatalf("SubmitFeedback 4: %v", err)
	}
	if msg != "Feedback received. 1/3 to next adaptation." {
		t.Errorf("message after trigger = %q", msg)
	}
}

func TestTrainingFailureIsAuditedNotFatal(t *testing.T) {
	h := newHarness(t)
	h.tuner.runErr = fmt.Errorf("boom")

	for i := 1; i <= 3; i++ {
		if _, err := h.coord.SubmitFeedback(context.Background(), rec(i)); err != nil {
			t.Fatalf("SubmitFeedback %d: %v", i, err)
		}
	}

	if len(h.models.loads) != 0 {
		t.Errorf("model swapped after failed training: %v", h.models.loads)
	}
	events, _ := h.audit.ListAdaptationEvents()
	if len(events) != 2 {
		t.Fatalf("got %d audit events, want started + failed", len(events))
	}
	if events[1].Kind != KindCycleFailed || events[1].Detail != "Fine-tuning failed or adapter not found." {
		t.Errorf("terminal event = %+v", events[1])
	}
}

func TestSwapFailureIsAudited(t *testing.T) {
	h := newHarness(t)
	h.models.loadErr = fmt.Errorf("missing weights.json")

	for i := 1; i <= 3; i++ {
		if _, err := h.coord.SubmitFeedback(context.Background(), rec(i)); err != nil {
			t.Fatalf("SubmitFeedback %d: %v", i, err)
		}
	}

	events, _ := h.audit.ListAdaptationEvents()
	if len(events) != 2 || events[1].Kind != KindCycleFailed {
		t.Fatalf("audit events = %+v", events)
	}
}

func TestSkippedRunIsAudited(t *testing.T) {
	h := newHarness(t)
	h.tuner.skip = true

	for i := 1; i <= 3; i++ {
		if _, err := h.coord.SubmitFeedback(context.Background(), rec(i)); err != nil {
			t.Fatalf("SubmitFeedback %d: %v", i, err)
		}
	}

	events, _ := h.audit.ListAdaptationEvents()
	if len(events) != 2 {
		t.Fatalf("got %d audit events", len(events))
	}
	if events[1].Kind != KindCycleFailed || !strings.Contains(events[1].Detail, "skipped") {
		t.Errorf("terminal event = %+v", events[1])
	}
	if len(h.models.loads) != 0 {
		t.Errorf("model swapped after skipped run: %v", h.models.loads)
	}
}

func TestJournalFailureRejectsFeedback(t *testing.T) {
	h := newHarness(t)
	h.journal.err = fmt.Errorf("disk full")

	if _, err := h.coord.SubmitFeedback(context.Background(), rec(1)); err == nil {
		t.Fatal("SubmitFeedback succeeded with a broken journal")
	}
	if h.pool.Len() != 0 {
		t.Errorf("unjournaled feedback landed in the pool: %d", h.pool.Len())
	}
	st, err := h.coord.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Policy.FeedbackCount != 0 {
		t.Errorf("policy counted unjournaled feedback: %d", st.Policy.FeedbackCount)
	}
}

func TestStatusAggregates(t *testing.T) {
	h := newHarness(t)

	for i := 1; i <= 4; i++ {
		if _, err := h.coord.SubmitFeedback(context.Background(), rec(i)); err != nil {
			t.Fatalf("SubmitFeedback %d: %v", i, err)
		}
	}

	st, err := h.coord.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Model.ActiveAdapter != "adapters/adapter_1/final" {
		t.Errorf("model adapter = %q", st.Model.ActiveAdapter)
	}
	if st.Policy.FeedbackCount != 1 || st.Policy.FeedbackThreshold != 3 {
		t.Errorf("policy status = %+v", st.Policy)
	}
	if len(st.AdaptationLog) != 2 {
		t.Errorf("adaptation log has %d events, want 2", len(st.AdaptationLog))
	}
	if st.FeedbackPoolSize != 1 {
		t.Errorf("pool size = %d, want 1", st.FeedbackPoolSize)
	}
}
