package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/infra/observability"
	"github.com/boddenberg/aml-risk-engine/internal/port"
	"github.com/boddenberg/aml-risk-engine/internal/service"
)

var tracer = otel.Tracer("handler")

const maxBodyBytes = 1 << 20

// NewRouter creates the HTTP router with all routes and middleware.
// backend is pinged by /healthz and may be nil. Batch routes require a
// service token signed with jwtSecret.
func NewRouter(
	risk *service.RiskService,
	profiles *service.ProfileService,
	backend port.Pinger,
	metrics *observability.Metrics,
	jwtSecret []byte,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(backend, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/transactions/assess", assessHandler(risk, logger))
		r.Post("/transactions/{transactionId}/assess", assessByIDHandler(risk, logger))
		r.Get("/metrics/engine", engineMetricsHandler(metrics))

		r.Group(func(r chi.Router) {
			r.Use(ServiceTokenMiddleware(jwtSecret, logger))
			r.Post("/transactions/rescore", rescoreHandler(risk, logger))
			r.Post("/profiles/rebuild", rebuildProfilesHandler(profiles, logger))
			r.Delete("/screening/cache", invalidateScreeningHandler(risk, logger))
		})
	})

	return r
}

// ============================================================
// Assessment
// ============================================================

func assessHandler(svc *service.RiskService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/assess")
		defer span.End()

		var ref domain.TransactionRecord
		if err := decodeJSON(w, r, &ref); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.Int64("transaction.id", ref.ID))

		assessment, err := svc.Assess(ctx, ref)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, assessment)
	}
}

func assessByIDHandler(svc *service.RiskService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/{transactionId}/assess")
		defer span.End()

		id, err := strconv.ParseInt(chi.URLParam(r, "transactionId"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "transactionId must be a positive integer")
			return
		}
		span.SetAttributes(attribute.Int64("transaction.id", id))

		assessment, err := svc.AssessByID(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, assessment)
	}
}

// ============================================================
// Batch jobs
// ============================================================

func rescoreHandler(svc *service.RiskService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/rescore")
		defer span.End()

		logger.Info("rescore requested", zap.String("by", ServiceFromContext(ctx)))
		result, err := svc.RescoreAll(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func rebuildProfilesHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/profiles/rebuild")
		defer span.End()

		logger.Info("profile rebuild requested", zap.String("by", ServiceFromContext(ctx)))
		summary, err := svc.Rebuild(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func invalidateScreeningHandler(svc *service.RiskService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.InvalidateScreening()
		logger.Info("screening cache invalidated", zap.String("by", ServiceFromContext(r.Context())))
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Metrics & Health
// ============================================================

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetEngineSnapshot())
	}
}

func healthzHandler(backend port.Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "aml-engine", Status: "healthy", LastChecked: now},
		}

		if backend != nil {
			start := time.Now()
			err := backend.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("health: backend ping failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "backend", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
