// Package respond renders the gateway envelope: {"status":true,"data":T}
// on success, {"status":false,"msg":...,"error":{...}} on failure.
package respond

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hims/billing/internal/platform/apperr"
)

// Envelope is the success wrapper every endpoint returns.
type Envelope struct {
	Status bool        `json:"status"`
	Data   interface{} `json:"data"`
}

// ErrorBody mirrors the failure envelope consumed by UI clients.
type ErrorBody struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Error  ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Msg     string        `json:"msg"`
	Details []DetailEntry `json:"details,omitempty"`
}

type DetailEntry struct {
	Msg string `json:"msg"`
}

// OK writes a 200 success envelope.
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Status: true, Data: data})
}

// Created writes a 201 success envelope.
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{Status: true, Data: data})
}

// HTTPErrorHandler builds the echo error handler that renders the
// failure envelope from the apperr taxonomy. Canceled requests are
// logged at debug only; internal errors hide their cause.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ae *apperr.Error
		if !errors.As(err, &ae) {
			if he, ok := err.(*echo.HTTPError); ok {
				msg := http.StatusText(he.Code)
				if s, ok := he.Message.(string); ok {
					msg = s
				}
				writeError(c, he.Code, msg, nil)
				return
			}
			logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
			writeError(c, http.StatusInternalServerError, "internal server error", nil)
			return
		}

		switch ae.Kind {
		case apperr.KindCanceled:
			logger.Debug().Str("path", c.Path()).Msg("request canceled")
		case apperr.KindInternal:
			logger.Error().Err(ae).Str("path", c.Path()).Msg("internal error")
			writeError(c, http.StatusInternalServerError, "internal server error", nil)
			return
		}

		var details []DetailEntry
		for _, d := range ae.Details {
			details = append(details, DetailEntry{Msg: d})
		}
		writeError(c, ae.Kind.HTTPStatus(), ae.Msg, details)
	}
}

// ErrorDetailOf builds the failure detail block for errors rendered by
// hand, such as the multi-status partial import response.
func ErrorDetailOf(err error) ErrorDetail {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return ErrorDetail{Msg: err.Error()}
	}
	var details []DetailEntry
	for _, d := range ae.Details {
		details = append(details, DetailEntry{Msg: d})
	}
	return ErrorDetail{Msg: ae.Msg, Details: details}
}

func writeError(c echo.Context, code int, msg string, details []DetailEntry) {
	_ = c.JSON(code, ErrorBody{
		Status: false,
		Msg:    msg,
		Error:  ErrorDetail{Msg: msg, Details: details},
	})
}
