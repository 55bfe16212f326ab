package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const internalMessage = "Internal server error"

// HTTPErrorHandler renders every error as {success:false, message}. Internal failures
// are reported to Sentry and their details are hidden in production.
func HTTPErrorHandler(env string) echo.HTTPErrorHandler {
	production := env == "production"

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := internalMessage

		var appErr *apperrors.Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = apperrors.HTTPStatus(appErr.Kind)
			message = appErr.Message
			if appErr.Kind == apperrors.KindInternal {
				reportInternal(c, err)
				if production {
					message = internalMessage
				} else if appErr.Cause != nil {
					message = appErr.Message + ": " + appErr.Cause.Error()
				}
			}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			message = fmt.Sprint(httpErr.Message)
			if httpErr.Internal != nil && status >= http.StatusInternalServerError {
				reportInternal(c, httpErr.Internal)
			}
		default:
			reportInternal(c, err)
			if !production {
				message = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"success": false, "message": message})
		}
		if err != nil {
			logger.Warn("writing error response", zap.Error(err))
		}
	}
}

func reportInternal(c echo.Context, err error) {
	logger.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("route", c.Path()),
		zap.Error(err))

	if hub := sentry.GetHubFromContext(c.Request().Context()); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}
