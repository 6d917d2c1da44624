package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"foundation_site/internal/apperror"
)

// ContentHandler serves the read-only JSON API.
type ContentHandler struct {
	content *Content
}

func NewContentHandler(content *Content) *ContentHandler {
	return &ContentHandler{content: content}
}

func queryLimit(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		return 0
	}
	return n
}

func (h *ContentHandler) Posts(c echo.Context) error {
	ctx := c.Request().Context()
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		posts, err := h.content.PostsByCategory(ctx, category)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, posts)
	}

	posts, err := h.content.Posts(ctx, queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, posts)
}

func (h *ContentHandler) Post(c echo.Context) error {
	post, err := h.content.Post(c.Request().Context(), c.Param("slug"))
	if apperror.Is(err, apperror.KindNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found.")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

// Testimonials lists published testimonials; ?featured=true narrows to
// the featured ones.
func (h *ContentHandler) Testimonials(c echo.Context) error {
	featured, _ := strconv.ParseBool(c.QueryParam("featured"))
	items, err := h.content.Testimonials(c.Request().Context(), featured)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ContentHandler) Events(c echo.Context) error {
	events, err := h.content.Events(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

func (h *ContentHandler) RecentDonations(c echo.Context) error {
	donations, err := h.content.RecentDonations(c.Request().Context(), queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, donations)
}

func (h *ContentHandler) TotalDonations(c echo.Context) error {
	totals, err := h.content.TotalDonations(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":       totals.Total,
		"count":       totals.Count,
		"by_currency": totals.ByCurrency,
	})
}
