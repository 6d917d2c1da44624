package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"foundation_site/internal/forms"
	"foundation_site/internal/validation"
)

// FormController is implemented by forms.Controller.
type FormController interface {
	SubmitContact(ctx context.Context, f validation.ContactForm, meta forms.Meta) forms.Outcome
	Subscribe(ctx context.Context, f validation.NewsletterForm, meta forms.Meta) forms.Outcome
	Unsubscribe(ctx context.Context, email string) forms.Outcome
	RegisterVolunteer(ctx context.Context, f validation.VolunteerForm, meta forms.Meta) forms.Outcome
	SubmitApplication(ctx context.Context, f validation.ApplicationForm, meta forms.Meta) forms.Outcome
	Donate(ctx context.Context, f validation.DonationForm, meta forms.Meta) forms.Outcome
}

// FormHandler serves the JSON endpoints behind the site's forms.
type FormHandler struct {
	forms FormController
}

func NewFormHandler(fc FormController) *FormHandler {
	return &FormHandler{forms: fc}
}

func respond(c echo.Context, out forms.Outcome) error {
	return c.JSON(out.HTTPStatus(), out)
}

func (h *FormHandler) Contact(c echo.Context) error {
	var f validation.ContactForm
	meta, err := bindForm(c, &f)
	if err != nil {
		return err
	}
	return respond(c, h.forms.SubmitContact(c.Request().Context(), f, meta))
}

func (h *FormHandler) Newsletter(c echo.Context) error {
	var f validation.NewsletterForm
	meta, err := bindForm(c, &f)
	if err != nil {
		return err
	}
	return respond(c, h.forms.Subscribe(c.Request().Context(), f, meta))
}

// Unsubscribe accepts a posted email or the ?email= link from the
// newsletter footer.
func (h *FormHandler) Unsubscribe(c echo.Context) error {
	var f validation.NewsletterForm
	if c.Request().Method == http.MethodPost {
		if _, err := bindForm(c, &f); err != nil {
			return err
		}
	}
	if f.Email == "" {
		f.Email = c.QueryParam("email")
	}
	return respond(c, h.forms.Unsubscribe(c.Request().Context(), f.Email))
}

func (h *FormHandler) Volunteer(c echo.Context) error {
	var f validation.VolunteerForm
	meta, err := bindForm(c, &f)
	if err != nil {
		return err
	}
	return respond(c, h.forms.RegisterVolunteer(c.Request().Context(), f, meta))
}

func (h *FormHandler) Apply(c echo.Context) error {
	var f validation.ApplicationForm
	meta, err := bindForm(c, &f)
	if err != nil {
		return err
	}
	return respond(c, h.forms.SubmitApplication(c.Request().Context(), f, meta))
}

func (h *FormHandler) Donate(c echo.Context) error {
	var f validation.DonationForm
	meta, err := bindForm(c, &f)
	if err != nil {
		return err
	}
	return respond(c, h.forms.Donate(c.Request().Context(), f, meta))
}
