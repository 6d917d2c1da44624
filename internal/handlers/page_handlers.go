package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
	"foundation_site/web/pages"
)

// PageHandler renders the public pages.
type PageHandler struct {
	content           *Content
	site              pages.Site
	midtransClientKey string
	log               *zap.Logger
}

func NewPageHandler(content *Content, site pages.Site, midtransClientKey string, log *zap.Logger) *PageHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PageHandler{content: content, site: site, midtransClientKey: midtransClientKey, log: log.Named("pages")}
}

var pageTitles = map[string]string{
	"about":       "About Us",
	"programs":    "Our Programs",
	"contact":     "Contact Us",
	"volunteer":   "Volunteer",
	"apply":       "Apply",
	"privacy":     "Privacy Policy",
	"terms":       "Terms of Use",
	"unsubscribe": "Unsubscribe",
}

// Home shows featured testimonials, upcoming events and the latest posts.
// A failing section is left out rather than failing the page.
func (h *PageHandler) Home(c echo.Context) error {
	ctx := c.Request().Context()
	var data pages.HomeData
	var err error

	if data.Testimonials, err = h.content.Testimonials(ctx, true); err != nil {
		h.log.Warn("home testimonials", zap.Error(err))
	}
	if data.Events, err = h.content.Events(ctx); err != nil {
		h.log.Warn("home events", zap.Error(err))
	}
	if data.Posts, err = h.content.Posts(ctx, 3); err != nil {
		h.log.Warn("home posts", zap.Error(err))
	}

	return render(c, http.StatusOK, pages.Page("home", pages.PageProps{
		Site:      site(h.site, c),
		Title:     "Home",
		ActiveNav: "home",
		Data:      data,
	}))
}

// Static returns a handler for a page without dynamic content.
func (h *PageHandler) Static(name string) echo.HandlerFunc {
	title := pageTitles[name]
	return func(c echo.Context) error {
		props := pages.PageProps{
			Site:      site(h.site, c),
			Title:     title,
			ActiveNav: name,
			Breadcrumbs: []pages.Breadcrumb{
				{Title: "Home", URL: "/"},
				{Title: title},
			},
		}
		switch name {
		case "apply":
			props.Data = models.Programs
		case "unsubscribe":
			props.Data = c.QueryParam("email")
		}
		return render(c, http.StatusOK, pages.Page(name, props))
	}
}

func (h *PageHandler) Blog(c echo.Context) error {
	ctx := c.Request().Context()
	category := strings.TrimSpace(c.QueryParam("category"))

	var data pages.BlogData
	var err error
	if category != "" {
		data.Category = category
		data.Posts, err = h.content.PostsByCategory(ctx, category)
	} else {
		data.Posts, err = h.content.Posts(ctx, maxListLimit)
	}
	if err != nil {
		return err
	}

	return render(c, http.StatusOK, pages.Page("blog", pages.PageProps{
		Site:      site(h.site, c),
		Title:     "News",
		ActiveNav: "blog",
		Data:      data,
	}))
}

func (h *PageHandler) BlogPost(c echo.Context) error {
	post, err := h.content.Post(c.Request().Context(), c.Param("slug"))
	if apperror.Is(err, apperror.KindNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "This article doesn't exist or is no longer published.")
	}
	if err != nil {
		return err
	}

	return render(c, http.StatusOK, pages.BlogPost(pages.PageProps{
		Site:      site(h.site, c),
		Title:     post.Title,
		ActiveNav: "blog",
		Breadcrumbs: []pages.Breadcrumb{
			{Title: "Home", URL: "/"},
			{Title: "News", URL: "/blog"},
			{Title: post.Title},
		},
		Data: post,
	}))
}

// Donate renders the donation form. The gateway returns donors here with
// ?status=pending.
func (h *PageHandler) Donate(c echo.Context) error {
	return render(c, http.StatusOK, pages.Donate(pages.DonatePageProps{
		Site:              site(h.site, c),
		Title:             "Donate",
		Currencies:        models.Currencies,
		Campaigns:         models.Campaigns,
		Status:            c.QueryParam("status"),
		MidtransClientKey: h.midtransClientKey,
	}))
}

// NotFound routes unknown paths to the error handler.
func (h *PageHandler) NotFound(c echo.Context) error {
	return echo.ErrNotFound
}
