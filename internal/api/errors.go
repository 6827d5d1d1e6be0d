package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/market"
	"github.com/selivandex/sentiment-fusion/internal/corpus"
	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/internal/portfolio"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, orchestrator.ErrRunInProgress), errors.Is(err, portfolio.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, market.ErrNotFound), errors.Is(err, corpus.ErrNotFound), errors.Is(err, portfolio.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, portfolio.ErrInvalidCode):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HTTPErrorHandler writes {"status":"error","error":...} with the mapped status code
func HTTPErrorHandler(err error, c echo.Context) {
	code := statusFor(err)
	msg := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Message != nil {
		msg = fmt.Sprint(he.Message)
	}

	req := c.Request()
	fields := []zap.Field{
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Debug("request rejected", fields...)
	}

	if c.Response().Committed {
		return
	}
	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{Status: "error", Error: msg})
}
