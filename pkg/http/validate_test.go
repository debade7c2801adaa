package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainBody struct {
	Symbol string `json:"symbol" default:"SPY" validate:"required"`
	N      int    `json:"n" default:"1500" validate:"gte=300,lte=10000"`
	Regime string `json:"regime" validate:"omitempty,oneof=risk_off neutral risk_on"`
}

func newJSONContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequest_Defaults(t *testing.T) {
	c, _ := newJSONContext(`{}`)
	var req trainBody
	errs := ReadAndValidateRequest(c, &req)
	require.Nil(t, errs)
	assert.Equal(t, "SPY", req.Symbol)
	assert.Equal(t, 1500, req.N)
}

func TestReadAndValidateRequest_Errors(t *testing.T) {
	c, _ := newJSONContext(`{"n": 10, "regime": "bull"}`)
	var req trainBody
	errs := ReadAndValidateRequest(c, &req)
	require.Len(t, errs, 2)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_GTE", byField["n"].Code)
	assert.Equal(t, "n must be greater than or equal to 300", byField["n"].Message)
	assert.Equal(t, "300", byField["n"].Params["min"])
	assert.Equal(t, "ERR_ONEOF", byField["regime"].Code)
	assert.Equal(t, []string{"risk_off", "neutral", "risk_on"}, byField["regime"].Params["options"])
}

func TestReadAndValidateRequest_MalformedJSON(t *testing.T) {
	c, _ := newJSONContext(`{"n":`)
	var req trainBody
	errs := ReadAndValidateRequest(c, &req)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_UNKNOWN", errs[0].Code)
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newJSONContext(``)
	err := ConflictError("regime model not trained").WithError(errors.New("not fitted"))
	require.NoError(t, AppErrorResponse(c, err))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusConflict, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_CONFLICT", body.Data[0].Code)

	c, rec = newJSONContext(``)
	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_RegistersHandlersAndMetrics(t *testing.T) {
	s := NewServer([]Handler{pingHandler{}})

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quantlens_http_requests_total")
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
}
