package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"session-scribe-go/internal/artifact"
	"session-scribe-go/internal/logger"
)

// WorkflowFunc is the body of one durable workflow. Stage faults propagate
// out and flip the run to Failed; a nil error commits the returned value as
// the run's output.
type WorkflowFunc func(ctx context.Context, rc *RunContext) (any, error)

// Runtime is the durable-execution substrate: it persists each run's
// record through the artifact store, checkpoints the stage cursor as
// workflows progress, and answers status queries from the persisted
// record. Many runs execute concurrently; each run is a single logical
// thread of control and runs only touch their own keys, so no cross-run
// locking is needed.
type Runtime struct {
	store artifact.Store
	log   *logger.Logger

	mu      sync.Mutex
	done    map[string]chan struct{}
	cancels map[string]context.CancelFunc
}

func NewRuntime(store artifact.Store, log *logger.Logger) *Runtime {
	return &Runtime{
		store:   store,
		log:     log,
		done:    make(map[string]chan struct{}),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Schedule persists a new run record and starts the workflow. The returned
// snapshot is the record as written; execution continues in the background.
func (r *Runtime) Schedule(workflow string, input RunInput, fn WorkflowFunc) (PipelineRun, error) {
	now := time.Now().UTC()
	run := &PipelineRun{
		InstanceID: uuid.New().String(),
		Workflow:   workflow,
		Input:      input,
		Status:     StatusRunning,
		Stage:      StageCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.persist(run); err != nil {
		return PipelineRun{}, fmt.Errorf("persist run record: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.mu.Lock()
	r.done[run.InstanceID] = done
	r.cancels[run.InstanceID] = cancel
	r.mu.Unlock()

	// Copy before the goroutine starts mutating run through checkpoints.
	snapshot := *run
	go r.execute(ctx, cancel, done, run, fn)
	return snapshot, nil
}

func (r *Runtime) execute(ctx context.Context, cancel context.CancelFunc, done chan struct{}, run *PipelineRun, fn WorkflowFunc) {
	// Deferred in reverse: cancel, drop the instance maps, then close done,
	// so a returning Wait never observes a retained entry.
	defer close(done)
	defer func() {
		r.mu.Lock()
		delete(r.done, run.InstanceID)
		delete(r.cancels, run.InstanceID)
		r.mu.Unlock()
	}()
	defer cancel()

	rc := &RunContext{
		run: run,
		rt:  r,
		Log: r.log.WithRun(run.InstanceID, run.Input.CampaignID, run.Input.EpisodeID).WithField("workflow", run.Workflow),
	}
	rc.Log.Info("workflow started")

	out, err := fn(ctx, rc)
	run.UpdatedAt = time.Now().UTC()
	if err != nil {
		run.Status = StatusFailed
		run.FailureDetail = err.Error()
		rc.Log.WithField("error", err.Error()).WithField("stage", run.Stage).Error("workflow failed")
	} else {
		run.Status = StatusCompleted
		if data, merr := json.Marshal(out); merr == nil {
			run.Output = data
		}
		rc.Log.Info("workflow completed")
	}
	if perr := r.persist(run); perr != nil {
		rc.Log.WithField("error", perr.Error()).Error("failed to persist terminal run record")
	}
}

// Status reads the persisted run record.
func (r *Runtime) Status(instanceID string) (PipelineRun, error) {
	var run PipelineRun
	if err := artifact.GetJSON(r.store, artifact.RunKey(instanceID), &run); err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return PipelineRun{}, fmt.Errorf("%w: run %s", artifact.ErrNotFound, instanceID)
		}
		return PipelineRun{}, err
	}
	return run, nil
}

// Wait blocks until the run reaches a terminal state. Returns immediately
// for unknown instances (e.g. runs from a previous process, whose records
// are already terminal or orphaned).
func (r *Runtime) Wait(instanceID string) {
	r.mu.Lock()
	done, ok := r.done[instanceID]
	r.mu.Unlock()
	if !ok {
		return
	}
	<-done
}

// Cancel abandons a running instance. Already-committed artifacts stay
// valid and are reused by a fresh run for the same key.
func (r *Runtime) Cancel(instanceID string) {
	r.mu.Lock()
	cancel, ok := r.cancels[instanceID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

func (r *Runtime) persist(run *PipelineRun) error {
	return artifact.PutJSON(r.store, artifact.RunKey(run.InstanceID), run)
}

// RunContext is handed to workflow bodies. It carries the run's logger and
// the checkpoint hook that advances the durable stage cursor.
type RunContext struct {
	run *PipelineRun
	rt  *Runtime
	Log *logrus.Entry
}

func (rc *RunContext) Input() RunInput {
	return rc.run.Input
}

// Checkpoint records that the run is entering the given stage. The record
// is persisted before the stage does any work, so a status query during a
// long stage reports where the run is.
func (rc *RunContext) Checkpoint(stage string) error {
	rc.run.Stage = stage
	rc.run.UpdatedAt = time.Now().UTC()
	if err := rc.rt.persist(rc.run); err != nil {
		return fmt.Errorf("checkpoint %s: %w", stage, err)
	}
	rc.Log.WithField("stage", stage).Info("stage started")
	return nil
}
