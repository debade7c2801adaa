package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"QuantLens/internal/domain/models"
	domsvc "QuantLens/internal/domain/service"
	"QuantLens/internal/service/metrics"
	"QuantLens/internal/service/ratelimit"
	xhttp "QuantLens/pkg/http"
	xlogger "QuantLens/pkg/logger"
)

// IntelligenceHandler exposes the market-intelligence facade over Echo.
type IntelligenceHandler struct {
	intel     domsvc.Intelligence
	scheduler domsvc.RetrainScheduler
	limiter   *ratelimit.Limiter
	logger    *xlogger.Logger
}

var _ xhttp.Handler = (*IntelligenceHandler)(nil)

type HandlerOption func(*IntelligenceHandler)

// WithScheduler enables asynchronous training through the job queue.
func WithScheduler(s domsvc.RetrainScheduler) HandlerOption {
	return func(h *IntelligenceHandler) { h.scheduler = s }
}

// WithTrainLimiter throttles training requests per client.
func WithTrainLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *IntelligenceHandler) { h.limiter = l }
}

func WithLogger(l *xlogger.Logger) HandlerOption {
	return func(h *IntelligenceHandler) { h.logger = l }
}

func NewIntelligenceHandler(intel domsvc.Intelligence, opts ...HandlerOption) *IntelligenceHandler {
	metrics.Register()
	h := &IntelligenceHandler{intel: intel, logger: xlogger.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IntelligenceHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/regime", h.Regime)
	g.POST("/regime/train", h.Train)
	g.POST("/scan", h.Scan)
	g.POST("/assets/analyze", h.Analyze)
	g.POST("/outcomes", h.RecordOutcome)
	g.GET("/performance/:strategy", h.Performance)
}

func (h *IntelligenceHandler) Regime(c echo.Context) error {
	defer metrics.Observe("regime", time.Now(), nil)
	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	pred, err := h.intel.PredictRegime(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "regime", err)
	}
	if req.RequireModel && pred.Fallback {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("regime model is not trained").WithParam("reason", pred.Error))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, pred)
}

func (h *IntelligenceHandler) Train(c echo.Context) error {
	defer metrics.Observe("train", time.Now(), nil)
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()+":train") {
		metrics.RateLimited.WithLabelValues("train").Inc()
		h.logger.Warn("train rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params := models.TrainParams{Symbol: req.Symbol, N: req.N, Seed: req.Seed, Estimators: req.Estimators}

	if req.Async && h.scheduler != nil {
		if err := h.scheduler.ScheduleRetrain(c.Request().Context(), params); err != nil {
			return h.fail(c, "train", err)
		}
		return xhttp.AcceptedResponse(c, map[string]string{"status": "scheduled", "symbol": req.Symbol})
	}

	report, err := h.intel.TrainRegimeModel(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, "train", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *IntelligenceHandler) Scan(c echo.Context) error {
	defer metrics.Observe("scan", time.Now(), nil)
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.intel.Scan(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "scan", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *IntelligenceHandler) Analyze(c echo.Context) error {
	defer metrics.Observe("analyze", time.Now(), nil)
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.intel.AnalyzeAsset(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *IntelligenceHandler) RecordOutcome(c echo.Context) error {
	defer metrics.Observe("outcomes", time.Now(), nil)
	req := &models.OutcomeEvent{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, err := h.intel.RecordOutcome(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "outcomes", err)
	}
	return xhttp.CreatedResponse(c, rec)
}

func (h *IntelligenceHandler) Performance(c echo.Context) error {
	defer metrics.Observe("performance", time.Now(), nil)
	req := &models.StrategyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.intel.Performance(c.Request().Context(), req.Strategy)
	if err != nil {
		return h.fail(c, "performance", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *IntelligenceHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.APIErrors.WithLabelValues(endpoint).Inc()
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(endpoint+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
