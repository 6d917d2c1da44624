package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"foundation_site/internal/models"
	"foundation_site/web/pages"
)

// AdminStore lists recent submissions for staff.
type AdminStore interface {
	RecentContacts(ctx context.Context, limit int) ([]models.ContactSubmission, error)
	RecentSubscriptions(ctx context.Context, limit int) ([]models.NewsletterSubscription, error)
	RecentVolunteers(ctx context.Context, limit int) ([]models.VolunteerRegistration, error)
	RecentApplications(ctx context.Context, limit int) ([]models.ProgramApplication, error)
	RecentAllDonations(ctx context.Context, limit int) ([]models.Donation, error)
}

const adminListLimit = 25

// AdminHandler renders the staff area
type AdminHandler struct {
	store AdminStore
	site  pages.Site
}

func NewAdminHandler(st AdminStore, site pages.Site) *AdminHandler {
	return &AdminHandler{store: st, site: site}
}

// Submissions loads every collection concurrently.
func (h *AdminHandler) Submissions(c echo.Context) error {
	props := pages.AdminPageProps{Site: site(h.site, c), Title: "Submissions"}

	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		props.Contacts, err = h.store.RecentContacts(ctx, adminListLimit)
		return err
	})
	g.Go(func() (err error) {
		props.Subscriptions, err = h.store.RecentSubscriptions(ctx, adminListLimit)
		return err
	})
	g.Go(func() (err error) {
		props.Volunteers, err = h.store.RecentVolunteers(ctx, adminListLimit)
		return err
	})
	g.Go(func() (err error) {
		props.Applications, err = h.store.RecentApplications(ctx, adminListLimit)
		return err
	})
	g.Go(func() (err error) {
		props.Donations, err = h.store.RecentAllDonations(ctx, adminListLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return render(c, http.StatusOK, pages.Admin(props))
}
