package api

import (
	"errors"

	"QuantLens/internal/services/features"
	"QuantLens/internal/services/ml"
	"QuantLens/internal/services/performance"
	"QuantLens/internal/services/regime"
	"QuantLens/internal/usecase"
	xhttp "QuantLens/pkg/http"
)

// toAppError maps service errors to HTTP application errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, regime.ErrInsufficientSamples),
		errors.Is(err, features.ErrInsufficientData),
		errors.Is(err, ml.ErrInvalidTrainingData):
		return xhttp.BadRequestError("insufficient market data").WithError(err)
	case errors.Is(err, performance.ErrInvalidRecord),
		errors.Is(err, usecase.ErrInvalidRange):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, regime.ErrModelNotTrained),
		errors.Is(err, ml.ErrInvalidModelState):
		return xhttp.ConflictError("regime model is not trained").WithError(err)
	case errors.Is(err, usecase.ErrTrainingInProgress):
		return xhttp.ConflictError("training already in progress").WithError(err)
	case errors.Is(err, usecase.ErrNoMarketData):
		return xhttp.NotFoundError("no market data for symbol").WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
