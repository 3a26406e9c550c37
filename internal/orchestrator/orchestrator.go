// Package orchestrator drives audit runs through their planned steps and
// reports progress on the event bus.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/eventbus"
	"github.com/auditecx/auditecx-cli/internal/intent"
	"github.com/auditecx/auditecx-cli/internal/ledger"
	"github.com/auditecx/auditecx-cli/internal/model"
	"github.com/auditecx/auditecx-cli/internal/narrative"
	"github.com/auditecx/auditecx-cli/internal/notify"
	"github.com/auditecx/auditecx-cli/internal/packager"
	"github.com/auditecx/auditecx-cli/internal/simulation"
	"github.com/auditecx/auditecx-cli/internal/store"
)

// DocumentFinder locates evidence for a set of identifiers.
type DocumentFinder interface {
	Locate(ctx context.Context, identifiers []string) ([]model.DocumentRecord, error)
}

// Reconciler pairs documents with ledger entries and flags anomalies.
type Reconciler interface {
	Reconcile(docs []model.DocumentRecord, entries []model.LedgerEntry) ([]model.MatchResult, []model.Anomaly)
}

// PolicyScanner evaluates the control catalog over run evidence.
type PolicyScanner interface {
	CheckDocuments(docs []model.DocumentRecord) []model.PolicyFinding
}

// ArtifactPackager materializes and removes run artifacts.
type ArtifactPackager interface {
	CreatePackage(in packager.Input) (packager.Result, error)
	PackagePath(runID string) string
	Cleanup(runID string) error
}

// Config bounds run execution.
type Config struct {
	StepTimeout time.Duration
	SimWorkDir  string
}

// Orchestrator owns the run lifecycle: it validates requests, persists
// run records, and executes the pipeline in a worker goroutine per run.
type Orchestrator struct {
	cfg       Config
	parser    intent.Parser
	finder    DocumentFinder
	journal   ledger.Querier
	engine    Reconciler
	policy    PolicyScanner
	generator narrative.Generator
	packager  ArtifactPackager
	notifier  notify.Notifier
	store     store.Store
	bus       *eventbus.Bus

	wg sync.WaitGroup
}

// New wires an Orchestrator from its collaborators.
func New(
	cfg Config,
	parser intent.Parser,
	finder DocumentFinder,
	journal ledger.Querier,
	engine Reconciler,
	policy PolicyScanner,
	generator narrative.Generator,
	pkg ArtifactPackager,
	notifier notify.Notifier,
	st store.Store,
	bus *eventbus.Bus,
) *Orchestrator {
	if cfg.StepTimeout == 0 {
		cfg.StepTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		cfg:       cfg,
		parser:    parser,
		finder:    finder,
		journal:   journal,
		engine:    engine,
		policy:    policy,
		generator: generator,
		packager:  pkg,
		notifier:  notifier,
		store:     st,
		bus:       bus,
	}
}

// Bus exposes the event bus for transports that stream progress.
func (o *Orchestrator) Bus() *eventbus.Bus { return o.bus }

// Wait blocks until all in-flight run workers finish. Used on shutdown
// and by tests.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// StartRun parses a natural-language request, records the run, and kicks
// off the pipeline. The run is registered on the bus before the worker
// starts, so no event can be published unobserved.
func (o *Orchestrator) StartRun(ctx context.Context, query, email string) (*model.Run, []intent.Step, error) {
	parsed := o.parser.Parse(query)
	identifiers := parsed.Identifiers()
	if len(identifiers) == 0 {
		return nil, nil, apperr.New(apperr.KindInput,
			"orchestrator: no vendor, invoice, or po identifiers found in request")
	}

	run := model.Run{
		RunID:       uuid.New().String(),
		Kind:        model.RunKindReal,
		Status:      model.RunStatusPending,
		CreatedAt:   time.Now().UTC(),
		Identifiers: identifiers,
		Email:       email,
	}
	if len(parsed.VendorIDs) > 0 {
		run.VendorID = parsed.VendorIDs[0]
	}

	steps := intent.PlanTasks(parsed)
	if err := o.launch(ctx, run, steps, nil); err != nil {
		return nil, nil, err
	}
	return &run, steps, nil
}

// StartSimulation records and launches a deterministic synthetic run.
func (o *Orchestrator) StartSimulation(ctx context.Context, params simulation.Params) (*model.Run, error) {
	params = params.Clamp()
	run := model.Run{
		RunID:       uuid.New().String(),
		Kind:        model.RunKindSimulation,
		Status:      model.RunStatusPending,
		CreatedAt:   time.Now().UTC(),
		Identifiers: []string{params.VendorID},
		VendorID:    params.VendorID,
		SampleSize:  params.SampleSize,
		AnomalyRate: params.AnomalyRate,
		Seed:        params.Seed,
	}

	steps := intent.PlanTasks(intent.Parsed{Kind: intent.KindGeneratePackage})
	if err := o.launch(ctx, run, steps, &params); err != nil {
		return nil, err
	}
	return &run, nil
}

// launch persists the run, registers its event log, and starts the
// worker goroutine.
func (o *Orchestrator) launch(ctx context.Context, run model.Run, steps []intent.Step, sim *simulation.Params) error {
	if err := o.store.CreateRun(ctx, run); err != nil {
		return err
	}
	if err := o.bus.Register(run.RunID); err != nil {
		return err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runWorker(run, steps, sim)
	}()
	zap.L().Info("orchestrator: run started",
		zap.String("run_id", run.RunID),
		zap.String("kind", string(run.Kind)),
		zap.Strings("identifiers", run.Identifiers),
	)
	return nil
}

// GetRun returns the stored run record.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return o.store.GetRun(ctx, runID)
}

// GetSummary returns the terminal snapshot of a finished run.
func (o *Orchestrator) GetSummary(ctx context.Context, runID string) (*model.ManifestSummary, error) {
	return o.store.GetSummary(ctx, runID)
}

// ListRuns lists stored runs.
func (o *Orchestrator) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	return o.store.ListRuns(ctx, filter)
}

// PackagePath resolves where a run's archive lives.
func (o *Orchestrator) PackagePath(runID string) string {
	return o.packager.PackagePath(runID)
}

// CleanupSimulation discards a finished simulation's artifacts and run
// record. Real runs are audit evidence and cannot be cleaned up.
func (o *Orchestrator) CleanupSimulation(ctx context.Context, runID string) error {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Kind != model.RunKindSimulation {
		return apperr.Newf(apperr.KindState, "orchestrator: run %s is not a simulation", runID)
	}
	if !run.Status.Terminal() {
		return apperr.Newf(apperr.KindState, "orchestrator: run %s is still in progress", runID)
	}
	if err := o.packager.Cleanup(runID); err != nil {
		return err
	}
	if o.cfg.SimWorkDir != "" {
		if err := simulation.Cleanup(o.cfg.SimWorkDir, runID); err != nil {
			return err
		}
	}
	o.bus.Release(runID)
	if err := o.store.DeleteRun(ctx, runID); err != nil {
		return err
	}
	zap.L().Info("orchestrator: simulation cleaned up", zap.String("run_id", runID))
	return nil
}

// runState accumulates pipeline output between steps.
type runState struct {
	docs      []model.DocumentRecord
	entries   []model.LedgerEntry
	matches   []model.MatchResult
	anomalies []model.Anomaly
	findings  []model.PolicyFinding
	chat      []model.ChatMessage
	summary   string
	result    packager.Result
}

// runWorker executes the plan sequentially. Each step runs under its own
// timeout; the first failure terminates the run with an error event.
func (o *Orchestrator) runWorker(run model.Run, steps []intent.Step, sim *simulation.Params) {
	ctx := context.Background()
	run.Status = model.RunStatusRunning
	if err := o.store.UpdateRunStatus(ctx, run.RunID, model.RunStatusRunning); err != nil {
		o.fail(ctx, run, err)
		return
	}

	var dataset simulation.Dataset
	if sim != nil {
		dataset = simulation.Generate(*sim)
		o.emit(run.RunID, model.EventStatus, model.StatusPayload{
			Message: fmt.Sprintf("Seeded synthetic dataset for %s", sim.VendorID),
		})
	}

	state := &runState{}
	for _, step := range steps {
		o.emit(run.RunID, model.EventStatus, model.StatusPayload{Message: step.Description})

		stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
		err := o.execStep(stepCtx, run, step.Task, sim, dataset, state)
		cancel()
		if err != nil {
			o.fail(ctx, run, err)
			return
		}
	}

	summary := model.ManifestSummary{
		RunID:        run.RunID,
		Kind:         run.Kind,
		Status:       model.RunStatusComplete,
		VendorID:     run.VendorID,
		Documents:    len(state.docs),
		Anomalies:    len(state.anomalies),
		PolicyIssues: len(state.findings),
		SummaryText:  state.summary,
		ManifestPath: state.result.ManifestPath,
		PackagePath:  state.result.PackagePath,
		GeneratedAt:  time.Now().UTC(),
		Chat:         state.chat,
	}
	if err := o.store.SetSummary(ctx, run.RunID, summary); err != nil {
		o.fail(ctx, run, err)
		return
	}

	o.emit(run.RunID, model.EventComplete, model.CompletePayload{
		ManifestPath: summary.ManifestPath,
		PackagePath:  summary.PackagePath,
	})

	if err := o.notifier.Notify(ctx, summary); err != nil {
		// Notification failures never fail a completed run.
		zap.L().Warn("orchestrator: notify failed",
			zap.String("run_id", run.RunID), zap.Error(err))
	}
}

func (o *Orchestrator) execStep(ctx context.Context, run model.Run, task intent.Task, sim *simulation.Params, dataset simulation.Dataset, state *runState) error {
	switch task {
	case intent.TaskFindDocs:
		if sim != nil {
			state.docs = dataset.Documents
			state.chat = dataset.Chat
			if o.cfg.SimWorkDir != "" {
				if err := simulation.Materialize(o.cfg.SimWorkDir, run.RunID, state.docs); err != nil {
					return err
				}
			}
		} else {
			docs, err := o.finder.Locate(ctx, run.Identifiers)
			if err != nil {
				return err
			}
			state.docs = docs
		}
		o.emit(run.RunID, model.EventDocumentsReady, model.CountPayload{Count: len(state.docs)})

	case intent.TaskQueryJournal:
		if sim != nil {
			state.entries = dataset.Entries
		} else {
			entries, err := o.journal.Query(ctx, run.Identifiers)
			if err != nil {
				return err
			}
			state.entries = entries
		}
		o.emit(run.RunID, model.EventStatus, model.StatusPayload{
			Message: fmt.Sprintf("Fetched %d ledger entries", len(state.entries)),
		})

	case intent.TaskReconcile:
		state.matches, state.anomalies = o.engine.Reconcile(state.docs, state.entries)
		o.emit(run.RunID, model.EventAnomaliesDetected, model.CountPayload{Count: len(state.anomalies)})
		if sim != nil {
			o.emit(run.RunID, model.EventChatSeeded, model.ChatSeededPayload{Messages: len(state.chat)})
		}

	case intent.TaskPolicyScan:
		state.findings = o.policy.CheckDocuments(state.docs)
		o.emit(run.RunID, model.EventPolicyAssessed, model.CountPayload{Count: len(state.findings)})

	case intent.TaskStreamSummary:
		text, err := o.generator.StreamSummary(ctx, narrative.Input{
			Run:       run,
			Documents: state.docs,
			Entries:   state.entries,
			Matches:   state.matches,
			Anomalies: state.anomalies,
			Findings:  state.findings,
		}, func(chunk string) {
			o.emit(run.RunID, model.EventSummaryChunk, model.SummaryChunkPayload{Text: chunk})
		})
		if err != nil {
			return err
		}
		state.summary = text

	case intent.TaskPackage:
		result, err := o.packager.CreatePackage(packager.Input{
			Run:       run,
			Summary:   state.summary,
			Documents: state.docs,
			Entries:   state.entries,
			Matches:   state.matches,
			Anomalies: state.anomalies,
			Findings:  state.findings,
			Chat:      state.chat,
		})
		if err != nil {
			return err
		}
		state.result = result
		o.emit(run.RunID, model.EventPackageReady, model.PackageReadyPayload{Path: result.PackagePath})

	default:
		return apperr.Newf(apperr.KindState, "orchestrator: unknown task %s", task)
	}
	return nil
}

// fail records the terminal error and closes the run's event log.
func (o *Orchestrator) fail(ctx context.Context, run model.Run, cause error) {
	zap.L().Error("orchestrator: run failed",
		zap.String("run_id", run.RunID), zap.Error(cause))

	summary := model.ManifestSummary{
		RunID:       run.RunID,
		Kind:        run.Kind,
		Status:      model.RunStatusError,
		VendorID:    run.VendorID,
		Error:       cause.Error(),
		GeneratedAt: time.Now().UTC(),
	}
	if err := o.store.SetSummary(ctx, run.RunID, summary); err != nil {
		zap.L().Error("orchestrator: record failure",
			zap.String("run_id", run.RunID), zap.Error(err))
	}
	o.emit(run.RunID, model.EventError, model.ErrorPayload{Message: cause.Error()})
}

// emit publishes one progress event; publish errors are logged, never
// propagated, because losing one event must not fail a run.
func (o *Orchestrator) emit(runID string, t model.EventType, payload model.EventPayload) {
	if err := o.bus.Publish(runID, t, payload); err != nil {
		zap.L().Warn("orchestrator: publish event",
			zap.String("run_id", runID),
			zap.String("type", string(t)),
			zap.Error(err))
	}
}
