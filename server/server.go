package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abhirockzz/langchaingo-trip-planner/emitter"
	"github.com/abhirockzz/langchaingo-trip-planner/logging"
	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/abhirockzz/langchaingo-trip-planner/sse"
	"github.com/abhirockzz/langchaingo-trip-planner/store"
)

const (
	PlanPath          = "/api/plan"
	HistoryPath       = "/api/history"
	DeleteHistoryPath = "/api/history/delete"
	HealthPath        = "/healthz"
	MetricsPath       = "/metrics"

	maxRequestBytes = 1 << 20
)

type App struct {
	resolver *emitter.Resolver
	store    store.Store
	metrics  *Metrics
	logger   *slog.Logger
}

// New returns an App. A nil store keeps transcripts in memory; nil metrics
// get a fresh registry.
func New(resolver *emitter.Resolver, st store.Store, metrics *Metrics, logger *slog.Logger) *App {
	if st == nil {
		st = store.NewMemory()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		resolver: resolver,
		store:    st,
		metrics:  metrics,
		logger:   logger,
	}
}

// Routes returns the full handler tree with middleware applied.
func (app *App) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(PlanPath, app.HandlePlan)
	mux.HandleFunc(HistoryPath, app.HandleGetHistory)
	mux.HandleFunc(DeleteHistoryPath, app.HandleDeleteConversation)
	mux.HandleFunc(HealthPath, app.HandleHealth)
	mux.Handle(MetricsPath, app.metrics.Handler())

	return chainMiddlewares(mux, withCORS, app.withLogging, app.withRequestID)
}

func (app *App) HandlePlan(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), app.logger)

	if r.Method != http.MethodPost {
		app.reject(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req plan.PlanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		log.Error("failed to decode plan request", "error", err)
		app.reject(w, "Failed to process request", http.StatusInternalServerError)
		return
	}

	if err := req.Validate(); err != nil {
		app.reject(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		app.reject(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writer := sse.NewWriter(w, flusher)
	var reply strings.Builder

	sink := func(ev plan.StreamEvent) error {
		for _, a := range ev.Actions {
			app.metrics.actionEmitted(a.Type)
		}
		reply.WriteString(ev.Content)
		return writer.WriteEvent(ev)
	}

	start := time.Now()
	app.metrics.streamStarted()
	report, err := app.resolver.Resolve(r.Context(), req, sink)
	app.metrics.streamFinished(report, time.Since(start), err)

	if err != nil {
		log.Info("plan stream stopped", "error", err, "events", report.Events)
		return
	}

	log.Info("plan stream completed",
		"strategy", report.Strategy,
		"fallback_reason", report.FallbackReason,
		"interrupted", report.Interrupted,
		"events", report.Events,
		"duration", time.Since(start))

	if req.SessionID != "" && !report.Interrupted {
		app.saveTranscript(r.Context(), req, reply.String())
	}
}

// saveTranscript stores the request history followed by the streamed
// reply under the request's session.
func (app *App) saveTranscript(ctx context.Context, req plan.PlanRequest, reply string) {
	log := logging.FromContext(ctx, app.logger)

	msgs := make([]plan.ConversationMessage, 0, len(req.Messages)+1)
	msgs = append(msgs, req.Messages...)
	msgs = append(msgs, plan.NewMessage(plan.RoleAssistant, reply, time.Now().UTC()))

	if err := app.store.Save(context.WithoutCancel(ctx), req.SessionID, msgs); err != nil {
		log.Warn("failed to save transcript", "session_id", req.SessionID, "error", err)
		return
	}
	log.Debug("saved transcript", "session_id", req.SessionID, "messages", len(msgs))
}

func (app *App) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.FromContext(r.Context(), app.logger)

	if r.Method != http.MethodGet {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("sessionID")
	if sessionID == "" {
		sendErrorResponse(w, "SessionID is required", http.StatusBadRequest)
		return
	}

	messages, err := app.store.Load(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrInvalidSessionID) {
			sendErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error("failed to retrieve history", "session_id", sessionID, "error", err)
		sendErrorResponse(w, "Failed to retrieve chat history", http.StatusInternalServerError)
		return
	}

	log.Info("retrieved history", "session_id", sessionID, "messages", len(messages), "duration", time.Since(start))
	writeJSON(w, http.StatusOK, ChatHistoryResponse{SessionID: sessionID, Messages: messages})
}

func (app *App) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.FromContext(r.Context(), app.logger)

	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DeleteConversationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if req.SessionID == "" {
		sendErrorResponse(w, "SessionID is required", http.StatusBadRequest)
		return
	}

	if err := app.store.Delete(r.Context(), req.SessionID); err != nil {
		if errors.Is(err, store.ErrInvalidSessionID) {
			sendErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error("failed to delete conversation", "session_id", req.SessionID, "error", err)
		sendErrorResponse(w, "Failed to delete conversation", http.StatusInternalServerError)
		return
	}

	log.Info("deleted conversation", "session_id", req.SessionID, "duration", time.Since(start))
	writeJSON(w, http.StatusOK, DeleteConversationResponse{Success: true})
}

func (app *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (app *App) reject(w http.ResponseWriter, message string, statusCode int) {
	app.metrics.requestRejected(strconv.Itoa(statusCode))
	sendErrorResponse(w, message, statusCode)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}
