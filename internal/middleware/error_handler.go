package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"foundation_site/internal/apperror"
	"foundation_site/web/pages"
)

// ErrorResponse is the JSON error body of /api routes.
type ErrorResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Kind        string `json:"kind,omitempty"`
}

// NewErrorHandler returns an echo.HTTPErrorHandler that answers /api routes
// with JSON and everything else with the error page.
func NewErrorHandler(site pages.Site, log *zap.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, title, message, kind := describe(err)
		if code >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", code),
				zap.Error(err),
			)
		} else {
			log.Debug("request rejected", zap.String("path", c.Request().URL.Path), zap.Int("status", code), zap.Error(err))
		}

		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			if werr := c.JSON(code, ErrorResponse{Title: title, Description: message, Kind: kind}); werr != nil {
				log.Error("write error response", zap.Error(werr))
			}
			return
		}

		site.UserEmail = ContextString(c, ContextUserEmail)
		site.UserUID = ContextString(c, ContextUserUID)
		if site.Year == 0 {
			site.Year = time.Now().Year()
		}
		props := pages.ErrorPageProps{
			Site:         site,
			Title:        title,
			ErrorTitle:   title,
			ErrorMessage: message,
		}

		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(code)
		if rerr := pages.ErrorPage(props).Render(c.Request().Context(), c.Response()); rerr != nil {
			log.Error("render error page", zap.Error(rerr))
		}
	}
}

// describe maps err to a status, a friendly title and message. Raw error
// text is only used when a handler chose it for an echo.HTTPError.
func describe(err error) (code int, title, message, kind string) {
	code = http.StatusInternalServerError
	title = "Internal Server Error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != http.StatusText(code) {
			message = msg
		}
	} else if ae, ok := apperror.As(err); ok {
		kind = string(ae.Kind)
		switch ae.Kind {
		case apperror.KindNotFound:
			code = http.StatusNotFound
		case apperror.KindBadRequest, apperror.KindValidation:
			code = http.StatusBadRequest
		case apperror.KindRateLimit:
			code = http.StatusTooManyRequests
		case apperror.KindConfiguration:
			code = http.StatusServiceUnavailable
		default:
			code = http.StatusBadGateway
		}
	}

	switch code {
	case http.StatusNotFound:
		title = "Page Not Found"
		if message == "" {
			message = "The page you're looking for doesn't exist."
		}
	case http.StatusForbidden:
		title = "Access Denied"
		if message == "" {
			message = "You don't have permission to access this resource."
		}
	case http.StatusUnauthorized:
		title = "Unauthorized"
		if message == "" {
			message = "Please log in to continue."
		}
	case http.StatusBadRequest:
		title = "Bad Request"
		if message == "" {
			message = "The request could not be processed."
		}
	case http.StatusTooManyRequests:
		title = "Too Many Requests"
		if message == "" {
			message = "Please wait a moment and try again."
		}
	case http.StatusServiceUnavailable:
		title = "Service Unavailable"
		if message == "" {
			message = "This feature is temporarily unavailable."
		}
	default:
		if code >= http.StatusInternalServerError {
			title = "Something Went Wrong"
		}
		if message == "" {
			message = "Something went wrong. Please try again later."
		}
	}
	return code, title, message, kind
}
