// Package adapt coordinates the self-adaptation loop: it journals incoming
// corrections, counts them against the trigger policy, and when the policy
// fires runs one full cycle of train, verify, swap, audit.
package adapt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kalambet/seald/internal/feedback"
	"github.com/kalambet/seald/internal/model"
	"github.com/kalambet/seald/internal/policy"
	"github.com/kalambet/seald/internal/storage"
	"github.com/kalambet/seald/internal/trainer"
)

// Audit event kinds recorded on the adaptation trail.
const (
	KindCycleStarted = "CycleStarted"
	KindModelUpdated = "ModelUpdated"
	KindCycleFailed  = "CycleFailed"
)

const (
	detailCycleStarted = "Fine-tuning process initiated."
	detailCycleFailed  = "Fine-tuning failed or adapter not found."
	detailCycleSkipped = "Fine-tuning skipped: empty feedback batch."
)

// AuditLog persists adaptation events.
type AuditLog interface {
	AppendAdaptationEvent(kind, detail string) (int64, error)
	ListAdaptationEvents() ([]storage.AdaptationEvent, error)
}

// ModelService swaps adapters into the serving path.
type ModelService interface {
	Load(ctx context.Context, adapterPath string) error
	State() model.State
}

// FineTuner produces adapter artifacts from feedback batches.
type FineTuner interface {
	Run(ctx context.Context, batch []feedback.Record, baseModel, outputRoot string) (trainer.Result, error)
}

// Journal durably records every accepted correction.
type Journal interface {
	Append(rec feedback.Record) error
}

// Status is the aggregate service view served by the status endpoint.
type Status struct {
	Model            model.State               `json:"model_status"`
	Policy           policy.Status             `json:"policy_status"`
	AdaptationLog    []storage.AdaptationEvent `json:"adaptation_log"`
	FeedbackPoolSize int                       `json:"feedback_pool_size"`
}

// Coordinator owns the adaptation loop. Cycles run one at a time; feedback
// arriving while a cycle runs lands in the pool for the next batch.
type Coordinator struct {
	journal      Journal
	pool         *feedback.Pool
	policy       *policy.Policy
	tuner        FineTuner
	models       ModelService
	audit        AuditLog
	baseModel    string
	adaptersRoot string
	logger       *slog.Logger

	cycleMu sync.Mutex
}

func NewCoordinator(journal Journal, pool *feedback.Pool, pol *policy.Policy, tuner FineTuner,
	models ModelService, audit AuditLog, baseModel, adaptersRoot string, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		journal:      journal,
		pool:         pool,
		policy:       pol,
		tuner:        tuner,
		models:       models,
		audit:        audit,
		baseModel:    baseModel,
		adaptersRoot: adaptersRoot,
		logger:       logger,
	}
}

// SubmitFeedback accepts one correction. The record is journaled and pooled
// first; if that pushes the counter to the threshold, a full adaptation
// cycle runs before returning. The returned message tells the caller either
// how far the next adaptation is, or that one just ran.
func (c *Coordinator) SubmitFeedback(ctx context.Context, rec feedback.Record) (string, error) {
	if err := c.journal.Append(rec); err != nil {
		return "", fmt.Errorf("journaling feedback: %w", err)
	}
	c.pool.Add(rec)

	if !c.policy.RecordFeedback() {
		st := c.policy.Status()
		return fmt.Sprintf("Feedback received. %d/%d to next adaptation.",
			st.FeedbackCount, st.FeedbackThreshold), nil
	}

	c.policy.Reset()
	c.runCycle(ctx)
	return "Feedback received. Adaptation triggered and completed.", nil
}

// runCycle executes one adaptation cycle. Failures are recorded on the
// audit trail and logged; they never propagate to the submitting client,
// which keeps being served by the last good model.
func (c *Coordinator) runCycle(ctx context.Context) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	batch := c.pool.Drain()
	c.appendEvent(KindCycleStarted, detailCycleStarted)
	c.logger.Info("adaptation cycle started", "batch_size", len(batch))

	res, err := c.tuner.Run(ctx, batch, c.baseModel, c.adaptersRoot)
	if err != nil {
		c.appendEvent(KindCycleFailed, detailCycleFailed)
		c.logger.Error("fine-tuning failed", "error", err)
		return
	}
	if res.Skipped {
		c.appendEvent(KindCycleFailed, detailCycleSkipped)
		c.logger.Warn("fine-tuning skipped", "reason", "empty feedback batch")
		return
	}

	if err := c.models.Load(ctx, res.Artifact.Path); err != nil {
		c.appendEvent(KindCycleFailed, detailCycleFailed)
		c.logger.Error("adapter swap failed", "adapter", res.Artifact.Path, "error", err)
		return
	}

	c.appendEvent(KindModelUpdated, fmt.Sprintf("Model updated with adapter: %s", res.Artifact.Path))
	c.logger.Info("model updated", "adapter", res.Artifact.Path)
}

// appendEvent records an audit event; storage errors are logged and
// swallowed so a broken audit trail cannot take down serving.
func (c *Coordinator) appendEvent(kind, detail string) {
	if _, err := c.audit.AppendAdaptationEvent(kind, detail); err != nil {
		c.logger.Error("appending adaptation event", "kind", kind, "error", err)
	}
}

// Status aggregates the model state, policy counters, audit trail and pool
// size into one snapshot.
func (c *Coordinator) Status() (Status, error) {
	events, err := c.audit.ListAdaptationEvents()
	if err != nil {
		return Status{}, fmt.Errorf("listing adaptation events: %w", err)
	}
	return Status{
		Model:            c.models.State(),
		Policy:           c.policy.Status(),
		AdaptationLog:    events,
		FeedbackPoolSize: c.pool.Len(),
	}, nil
}
