package forms

import (
	"net/http"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
	"foundation_site/internal/validation"
)

// Outcome is what a visitor is told after submitting a form. Controllers
// always return one; they never return an error.
type Outcome struct {
	Success     bool                  `json:"success"`
	Kind        apperror.Kind         `json:"kind,omitempty"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Violations  validation.Violations `json:"violations,omitempty"`
	RedirectURL string                `json:"redirect_url,omitempty"`
	Record      models.Record         `json:"record,omitempty"`
	Duplicate   bool                  `json:"duplicate,omitempty"`
	// Detail carries the raw error outside production.
	Detail string `json:"detail,omitempty"`
}

// HTTPStatus maps the outcome to a response status for the JSON API.
func (o Outcome) HTTPStatus() int {
	if o.Success {
		return http.StatusOK
	}
	switch o.Kind {
	case apperror.KindValidation:
		return http.StatusUnprocessableEntity
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindConfiguration:
		return http.StatusServiceUnavailable
	case apperror.KindRateLimit:
		return http.StatusTooManyRequests
	case apperror.KindBadRequest, apperror.KindReference:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

const (
	titleError             = "Error"
	titleSubscriptionError = "Subscription Error"

	msgInvalidForm      = "Please correct the highlighted fields and try again."
	msgDuplicate        = "This submission is already being processed. Please wait a moment before trying again."
	msgPaymentsDisabled = "Online donations are temporarily unavailable. Please try again later or contact us."
	msgBusy             = "We are receiving a lot of requests right now. Please try again in a moment."
)

// formCopy is the fixed text of one form.
type formCopy struct {
	successTitle string
	successDesc  string
	errorTitle   string
	errorDesc    string
}

var (
	contactCopy = formCopy{
		successTitle: "Message Sent!",
		successDesc:  "Thank you for contacting us. We'll get back to you soon.",
		errorTitle:   titleError,
		errorDesc:    "Failed to send message. Please try again.",
	}
	newsletterCopy = formCopy{
		successTitle: "Successfully Subscribed!",
		successDesc:  "Thank you for subscribing to our newsletter.",
		errorTitle:   titleSubscriptionError,
		errorDesc:    "Failed to subscribe. Please try again.",
	}
	unsubscribeCopy = formCopy{
		successTitle: "Unsubscribed",
		successDesc:  "You will no longer receive our newsletter.",
		errorTitle:   titleError,
		errorDesc:    "Failed to unsubscribe. Please try again.",
	}
	volunteerCopy = formCopy{
		successTitle: "Application Submitted!",
		successDesc:  "Thank you for your interest in volunteering. We'll contact you soon.",
		errorTitle:   titleError,
		errorDesc:    "Failed to submit application. Please try again.",
	}
	applicationCopy = formCopy{
		successTitle: "Application Submitted!",
		successDesc:  "Thank you for applying. We'll review your application and contact you soon.",
		errorTitle:   titleError,
		errorDesc:    "Failed to submit application. Please try again.",
	}
	donationCopy = formCopy{
		successTitle: "Donation Initiated!",
		successDesc:  "Thank you for your generosity. You will be redirected to complete the payment.",
		errorTitle:   titleError,
		errorDesc:    "Failed to process donation. Please try again.",
	}
)

func (c formCopy) success(rec models.Record) Outcome {
	return Outcome{Success: true, Title: c.successTitle, Description: c.successDesc, Record: rec}
}

func (c formCopy) invalid(v validation.Violations) Outcome {
	return Outcome{
		Kind:        apperror.KindValidation,
		Title:       c.errorTitle,
		Description: msgInvalidForm,
		Violations:  v,
	}
}

// duplicate answers a key whose claim is still held. The first submission
// may still fail, so nothing is reported as done.
func (c formCopy) duplicate() Outcome {
	return Outcome{Kind: apperror.KindConflict, Duplicate: true, Title: c.errorTitle, Description: msgDuplicate}
}
