package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	"QuantLens/internal/service/metrics"
	"QuantLens/internal/usecase"
	xhttp "QuantLens/pkg/http"
	xlogger "QuantLens/pkg/logger"
	"QuantLens/pkg/util"
)

// CandlesHandler serves the stored candles behind regime features.
type CandlesHandler struct {
	logger *xlogger.Logger
	uc     *usecase.CandlesUseCase
}

var _ xhttp.Handler = (*CandlesHandler)(nil)

func NewCandlesHandler(logger *xlogger.Logger, uc *usecase.CandlesUseCase) *CandlesHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	metrics.Register()
	return &CandlesHandler{logger: logger, uc: uc}
}

func (h *CandlesHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/candles", h.Candles)
}

func (h *CandlesHandler) Candles(c echo.Context) error {
	defer metrics.Observe("candles", time.Now(), nil)
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var from, to time.Time
	if req.From != "" {
		t, ok := util.ParseTime(req.From)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from %q", req.From))
		}
		from = t
	}
	if req.To != "" {
		t, ok := util.ParseTime(req.To)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to %q", req.To))
		}
		to = t
	}

	res, err := h.uc.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues("candles").Inc()
		appErr := toAppError(err)
		if appErr.Status >= 500 {
			h.logger.Error("candles usecase error", xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, res)
}
