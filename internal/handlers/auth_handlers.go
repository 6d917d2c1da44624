package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"foundation_site/internal/config"
	"foundation_site/internal/middleware"
	"foundation_site/web/pages"
)

// SessionIssuer exchanges a Firebase ID token for a session cookie.
// *auth.Client implements it.
type SessionIssuer interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
}

const sessionDuration = 5 * 24 * time.Hour

// AuthHandler handles staff authentication endpoints
type AuthHandler struct {
	issuer   SessionIssuer
	firebase config.FirebaseConfig
	site     pages.Site
	secure   bool
	log      *zap.Logger
}

func NewAuthHandler(issuer SessionIssuer, firebase config.FirebaseConfig, site pages.Site, secure bool, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{issuer: issuer, firebase: firebase, site: site, secure: secure, log: log.Named("auth")}
}

// LoginPage renders the login page
func (h *AuthHandler) LoginPage(c echo.Context) error {
	props := pages.LoginPageProps{
		Site:               site(h.site, c),
		Title:              "Staff sign in",
		FirebaseAPIKey:     h.firebase.APIKey,
		FirebaseAuthDomain: h.firebase.AuthDomain,
		FirebaseProjectID:  h.firebase.ProjectID,
	}
	if c.QueryParam("error") == "auth_not_configured" {
		props.Error = "Sign in is not configured on this server."
	}
	return render(c, http.StatusOK, pages.Login(props))
}

// HandleLogin verifies the Firebase ID token and creates a session cookie
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.issuer == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Firebase not initialized",
		})
	}

	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Missing authorization header",
		})
	}

	idToken := strings.TrimPrefix(authHeader, "Bearer ")
	if idToken == authHeader {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid authorization format",
		})
	}

	ctx := c.Request().Context()
	token, err := h.issuer.VerifyIDToken(ctx, idToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid token",
		})
	}

	cookieValue, err := h.issuer.SessionCookie(ctx, idToken, sessionDuration)
	if err != nil {
		h.log.Error("create session cookie", zap.String("uid", token.UID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to create session",
		})
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    cookieValue,
		MaxAge:   int(sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	h.log.Info("staff signed in", zap.String("uid", token.UID))
	return c.JSON(http.StatusOK, map[string]string{
		"status": "success",
	})
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	c.SetCookie(middleware.ClearSessionCookie())
	return c.JSON(http.StatusOK, map[string]string{
		"status": "logged out",
	})
}
