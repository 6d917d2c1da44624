package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"foundation_site/internal/forms"
	"foundation_site/internal/middleware"
	"foundation_site/web/pages"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderClientID       = "X-Client-ID"

	maxBodyBytes = 64 << 10
)

// site fills the per-request parts of the shared page data.
func site(base pages.Site, c echo.Context) pages.Site {
	base.UserEmail = middleware.ContextString(c, middleware.ContextUserEmail)
	base.UserUID = middleware.ContextString(c, middleware.ContextUserUID)
	if base.Year == 0 {
		base.Year = time.Now().Year()
	}
	return base
}

// render buffers the page so a template failure still reaches the error
// handler before anything is written.
func render(c echo.Context, status int, component templ.Component) error {
	var buf bytes.Buffer
	if err := component.Render(c.Request().Context(), &buf); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

// readBody returns the request body, bounded to maxBodyBytes.
func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Could not read the request.")
	}
	if len(body) > maxBodyBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "The request is too large.")
	}
	return body, nil
}

// bindForm binds a JSON or urlencoded form into dest and extracts the
// submission metadata. The Idempotency-Key header wins over a posted
// idempotency_key field.
func bindForm(c echo.Context, dest any) (forms.Meta, error) {
	var meta forms.Meta
	var postedKey string

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		body, err := readBody(c)
		if err != nil {
			return meta, err
		}
		if err := json.Unmarshal(body, dest); err != nil {
			return meta, echo.NewHTTPError(http.StatusBadRequest, "The request is not valid JSON.")
		}
		var envelope struct {
			IdempotencyKey string `json:"idempotency_key"`
		}
		_ = json.NewDecoder(bytes.NewReader(body)).Decode(&envelope)
		postedKey = envelope.IdempotencyKey
	} else {
		if err := c.Bind(dest); err != nil {
			return meta, echo.NewHTTPError(http.StatusBadRequest, "The form could not be read.")
		}
		postedKey = c.FormValue("idempotency_key")
	}

	key := c.Request().Header.Get(HeaderIdempotencyKey)
	if key == "" {
		key = postedKey
	}
	if key != "" {
		if _, err := uuid.Parse(key); err != nil {
			return meta, echo.NewHTTPError(http.StatusBadRequest, "Invalid idempotency key.")
		}
	}
	meta.IdempotencyKey = strings.ToLower(key)
	meta.ClientID = clientID(c)
	return meta, nil
}

// clientID returns the analytics client id from the _ga cookie
// ("GA1.1.<random>.<timestamp>") or the X-Client-ID header.
func clientID(c echo.Context) string {
	if cookie, err := c.Cookie("_ga"); err == nil {
		parts := strings.Split(cookie.Value, ".")
		if len(parts) >= 4 {
			return parts[len(parts)-2] + "." + parts[len(parts)-1]
		}
	}
	return c.Request().Header.Get(HeaderClientID)
}
