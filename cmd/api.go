package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
	"github.com/auditecx/auditecx-cli/internal/orchestrator"
	"github.com/auditecx/auditecx-cli/internal/simulation"
	"github.com/auditecx/auditecx-cli/internal/store"
	"github.com/auditecx/auditecx-cli/internal/vendormetrics"
)

// newRouter builds the HTTP API surface over an orchestrator.
func newRouter(orch *orchestrator.Orchestrator, metrics *vendormetrics.Service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/nl_query", handleNLQuery(orch))
		r.Post("/simulations", handleStartSimulation(orch))
		r.Post("/simulations/{run_id}/cleanup", handleCleanupSimulation(orch))
		r.Get("/runs", handleListRuns(orch))
		r.Get("/runs/{run_id}", handleGetRun(orch))
		r.Get("/runs/{run_id}/conversation", handleConversation(orch))
		r.Get("/vendors/risk", handleVendorRisk(metrics))
		r.Get("/vendors/heatmap", handleVendorHeatmap(metrics))
		r.Get("/stream/{run_id}", handleStream(orch))
		r.Get("/stream/{run_id}/events", handlePollEvents(orch))
		r.Get("/download/{run_id}", handleDownload(orch))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func handleNLQuery(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text  string `json:"text"`
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.Wrap(apperr.KindInput, err, "api: decode request"))
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, apperr.New(apperr.KindInput, "api: text is required"))
			return
		}
		run, steps, err := orch.StartRun(r.Context(), req.Text, req.Email)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"run_id":     run.RunID,
			"status":     run.Status,
			"steps":      steps,
			"stream_url": "/api/stream/" + run.RunID,
		})
	}
}

func handleStartSimulation(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VendorID    string  `json:"vendor_id"`
			SampleSize  int     `json:"sample_size"`
			AnomalyRate float64 `json:"anomaly_rate"`
			Seed        int64   `json:"seed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.Wrap(apperr.KindInput, err, "api: decode request"))
			return
		}
		run, err := orch.StartSimulation(r.Context(), simulation.Params{
			VendorID:    req.VendorID,
			SampleSize:  req.SampleSize,
			AnomalyRate: req.AnomalyRate,
			Seed:        req.Seed,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"run_id":       run.RunID,
			"status":       run.Status,
			"vendor_id":    run.VendorID,
			"sample_size":  run.SampleSize,
			"anomaly_rate": run.AnomalyRate,
			"seed":         run.Seed,
			"stream_url":   "/api/stream/" + run.RunID,
		})
	}
}

func handleCleanupSimulation(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := orch.CleanupSimulation(r.Context(), chi.URLParam(r, "run_id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListRuns(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.RunFilter{
			Status: model.RunStatus(r.URL.Query().Get("status")),
			Kind:   model.RunKind(r.URL.Query().Get("kind")),
		}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil {
				writeError(w, apperr.Wrap(apperr.KindInput, err, "api: parse limit"))
				return
			}
			filter.Limit = n
		}
		runs, err := orch.ListRuns(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

func handleGetRun(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "run_id")
		run, err := orch.GetRun(r.Context(), runID)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := map[string]any{"run": run}
		if run.Status.Terminal() {
			if summary, err := orch.GetSummary(r.Context(), runID); err == nil {
				resp["summary"] = summary
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleConversation returns the chat transcript a run recorded, if any.
// Only simulation runs seed a transcript today.
func handleConversation(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "run_id")
		summary, err := orch.GetSummary(r.Context(), runID)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(summary.Chat) == 0 {
			writeError(w, apperr.Newf(apperr.KindNotFound, "api: run %s has no conversation", runID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"run_id":   runID,
			"messages": summary.Chat,
		})
	}
}

func handleVendorRisk(metrics *vendormetrics.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		risks, err := metrics.RiskMetrics()
		if err != nil {
			writeError(w, err)
			return
		}
		if risks == nil {
			risks = []vendormetrics.VendorRisk{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"vendors": risks})
	}
}

func handleVendorHeatmap(metrics *vendormetrics.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		by := r.URL.Query().Get("by")
		if by == "" {
			by = "vendor"
		}
		hm, err := metrics.Heatmap(by)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hm)
	}
}

// handleStream pushes the run's full event history and all subsequent
// events as SSE frames, closing once the run is terminal.
func handleStream(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, apperr.New(apperr.KindInput, "api: streaming unsupported"))
			return
		}
		runID := chi.URLParam(r, "run_id")
		ch, err := orch.Bus().Subscribe(r.Context(), runID)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		enc := json.NewEncoder(w)
		for event := range ch {
			if _, err := w.Write([]byte("event: " + string(event.Type) + "\ndata: ")); err != nil {
				return
			}
			if err := enc.Encode(event); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handlePollEvents returns events after the given sequence number without
// blocking, for clients that cannot hold an SSE connection.
func handlePollEvents(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "run_id")
		var since uint64
		if s := r.URL.Query().Get("since"); s != "" {
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				writeError(w, apperr.Wrap(apperr.KindInput, err, "api: parse since"))
				return
			}
			since = n
		}
		events, err := orch.Bus().Poll(runID, since)
		if err != nil {
			writeError(w, err)
			return
		}
		next := since
		if len(events) > 0 {
			next = events[len(events)-1].SequenceNo
		}
		if events == nil {
			events = []model.ProgressEvent{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events":   events,
			"next":     next,
			"terminal": orch.Bus().Terminal(runID),
		})
	}
}

func handleDownload(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "run_id")
		summary, err := orch.GetSummary(r.Context(), runID)
		if err != nil {
			writeError(w, err)
			return
		}
		if summary.PackagePath == "" {
			writeError(w, apperr.Newf(apperr.KindNotFound, "api: run %s has no package", runID))
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="package_`+runID+`.zip"`)
		http.ServeFile(w, r, summary.PackagePath)
	}
}
