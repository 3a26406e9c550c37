package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/auditecx/auditecx-cli/internal/config"
	"github.com/auditecx/auditecx-cli/internal/eventbus"
	"github.com/auditecx/auditecx-cli/internal/intent"
	"github.com/auditecx/auditecx-cli/internal/ledger"
	"github.com/auditecx/auditecx-cli/internal/locator"
	"github.com/auditecx/auditecx-cli/internal/narrative"
	"github.com/auditecx/auditecx-cli/internal/notify"
	"github.com/auditecx/auditecx-cli/internal/orchestrator"
	"github.com/auditecx/auditecx-cli/internal/packager"
	"github.com/auditecx/auditecx-cli/internal/policy"
	"github.com/auditecx/auditecx-cli/internal/reconcile"
	"github.com/auditecx/auditecx-cli/internal/store"
	"github.com/auditecx/auditecx-cli/internal/vendormetrics"
	"github.com/auditecx/auditecx-cli/pkg/claude"
	"github.com/auditecx/auditecx-cli/pkg/notion"
)

// env bundles the wired subsystems a command needs.
type env struct {
	store   store.Store
	orch    *orchestrator.Orchestrator
	metrics *vendormetrics.Service
}

// initEnv builds the full pipeline from configuration.
func initEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var sources []locator.Source
	for _, dir := range cfg.Locator.Dirs {
		sources = append(sources, locator.NewFSSource(dir))
	}
	ftpTimeout := time.Duration(cfg.Locator.TimeoutSecs) * time.Second
	for _, u := range cfg.Locator.FTPUrls {
		sources = append(sources, locator.NewFTPSource(u, cfg.Locator.FTPUser, cfg.Locator.FTPPassword, ftpTimeout))
	}

	checker, err := policy.LoadChecker(cfg.Policy.CatalogPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	var generator narrative.Generator = narrative.NewTemplateGenerator()
	if cfg.Narrative.Provider == "claude" && cfg.Anthropic.Key != "" {
		generator = narrative.NewClaudeGenerator(
			claude.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	}

	pkg, err := packager.New(cfg.Packager.OutDir, cfg.Packager.AuditLogDir)
	if err != nil {
		st.Close()
		return nil, err
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Notion.Token != "" && cfg.Notion.FindingsDB != "" {
		notifier = notify.NewNotionNotifier(notion.NewClient(cfg.Notion.Token), cfg.Notion.FindingsDB)
	}

	orch := orchestrator.New(
		orchestrator.Config{
			StepTimeout: time.Duration(cfg.Orchestra.StepTimeoutSecs) * time.Second,
			SimWorkDir:  cfg.Simulation.WorkDir,
		},
		intent.RegexParser{},
		locator.New(sources...),
		ledger.NewCSVQuerier(cfg.Ledger.CSVPath),
		reconcile.New(reconcile.Config{
			AmountToleranceAbs: cfg.Reconcile.AmountToleranceAbs,
			AmountTolerancePct: cfg.Reconcile.AmountTolerancePct,
			VarianceThreshold:  cfg.Reconcile.VarianceThreshold,
			WeightIdentifier:   cfg.Reconcile.WeightIdentifier,
			WeightAmount:       cfg.Reconcile.WeightAmount,
			WeightCurrency:     cfg.Reconcile.WeightCurrency,
		}),
		checker,
		generator,
		pkg,
		notifier,
		st,
		eventbus.New(cfg.Orchestra.Retention),
	)

	return &env{
		store:   st,
		orch:    orch,
		metrics: vendormetrics.New(cfg.Packager.AuditLogDir),
	}, nil
}

// Close waits for in-flight runs and releases resources.
func (e *env) Close() {
	e.orch.Wait()
	if err := e.store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
