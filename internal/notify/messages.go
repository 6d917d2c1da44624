package notify

import (
	"fmt"
	"net/url"
	"strings"

	"foundation_site/internal/models"
)

// Messages renders the notifications for each kind of submission.
type Messages struct {
	AppName      string
	AppURL       string
	SupportEmail string
}

func (m Messages) signature() string {
	return "\n\nWarm regards,\nThe " + m.AppName + " Team"
}

func (m Messages) dashboardLink() string {
	return m.AppURL + "/admin/submissions"
}

func adminSubject(title string) string {
	return "[ACTION NEEDED] " + title
}

func (m Messages) Contact(c *models.ContactSubmission) Notification {
	subject := models.StringValue(c.Subject)
	if subject == "" {
		subject = "General inquiry"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", c.Name)
	fmt.Fprintf(&body, "Thank you for reaching out. We received your message about %q and will get back to you soon.\n", subject)
	fmt.Fprintf(&body, "If your request is urgent, write to %s.", m.SupportEmail)
	body.WriteString(m.signature())

	return Notification{
		Source: "contact",
		Confirmation: &Email{
			To:      []string{c.Email},
			Subject: "We received your message - " + m.AppName,
			Body:    body.String(),
		},
		AdminEmail: &Email{
			Subject: adminSubject("New Contact Form Submission"),
			Body: fmt.Sprintf("From: %s <%s>\nPhone: %s\nSubject: %s\n\n%s\n\n%s",
				c.Name, c.Email, models.StringValue(c.Phone), subject, c.Message, m.dashboardLink()),
		},
		Event: &Event{Name: "contact_form_submission"},
	}
}

func (m Messages) Subscription(s *models.NewsletterSubscription) Notification {
	name := models.StringValue(s.Name)
	greeting := "Hi,"
	if name != "" {
		greeting = "Hi " + name + ","
	}
	unsubscribe := m.AppURL + "/unsubscribe?email=" + url.QueryEscape(s.Email)

	return Notification{
		Source: "newsletter",
		Confirmation: &Email{
			To:      []string{s.Email},
			Subject: "Newsletter Subscription Confirmed - " + m.AppName,
			Body: greeting + "\n\nYou are now subscribed to our newsletter. " +
				"You will hear about our programs, events and impact stories.\n\n" +
				"To unsubscribe at any time, visit " + unsubscribe + m.signature(),
		},
		Event: &Event{Name: "newsletter_subscription"},
	}
}

func (m Messages) Volunteer(v *models.VolunteerRegistration) Notification {
	return Notification{
		Source: "volunteer",
		Confirmation: &Email{
			To:      []string{v.Email},
			Subject: "Welcome to " + m.AppName + " Volunteers!",
			Body: fmt.Sprintf("Hi %s,\n\nThank you for signing up to volunteer. "+
				"We will review your application and contact you within 5 business days.", v.FirstName) + m.signature(),
		},
		AdminEmail: &Email{
			Subject: adminSubject("New Volunteer Registration"),
			Body: fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\nLocation: %s\nAvailability: %s\n\nWhy: %s\n\n%s",
				v.FullName(), v.Email, v.Phone, models.StringValue(v.Location),
				models.StringValue(v.Availability), v.WhyVolunteer, m.dashboardLink()),
		},
		AdminAlert: fmt.Sprintf("New volunteer: %s (%s)", v.FullName(), v.Phone),
		Event:      &Event{Name: "volunteer_signup"},
	}
}

func (m Messages) Application(a *models.ProgramApplication) Notification {
	program := models.Programs[a.ProgramName]
	if program == "" {
		program = a.ProgramName
	}

	return Notification{
		Source: "application",
		Confirmation: &Email{
			To:      []string{a.ApplicantEmail},
			Subject: fmt.Sprintf("Application Received - %s - %s", program, m.AppName),
			Body: fmt.Sprintf("Hi %s,\n\nWe received your application to %s. "+
				"We will review your application and contact you within 7 business days.", a.ApplicantName, program) + m.signature(),
		},
		AdminEmail: &Email{
			Subject: adminSubject("New Program Application"),
			Body: fmt.Sprintf("Program: %s\nApplicant: %s <%s>\nPhone: %s\nGuardian: %s %s\nSchool: %s\n\n%s",
				program, a.ApplicantName, a.ApplicantEmail, a.ApplicantPhone,
				models.StringValue(a.GuardianName), models.StringValue(a.GuardianPhone),
				models.StringValue(a.SchoolName), m.dashboardLink()),
		},
		AdminAlert: fmt.Sprintf("New %s application: %s (%s)", program, a.ApplicantName, a.ApplicantPhone),
		Event:      &Event{Name: "program_application", Params: map[string]any{"program": a.ProgramName}},
	}
}

// DonationInitiated is queued when the donor is sent to the gateway.
func (m Messages) DonationInitiated(d *models.Donation) Notification {
	return Notification{
		Source: "donation",
		Event: &Event{Name: "donate", Params: map[string]any{
			"value":    d.Amount,
			"currency": d.Currency,
			"campaign": d.Campaign,
		}},
	}
}

// DonationCompleted is queued once the gateway confirms payment.
func (m Messages) DonationCompleted(d *models.Donation) Notification {
	name := d.PublicDonorName()
	if name == "Anonymous" {
		name = "friend"
	}
	amount := fmt.Sprintf("%s %.2f", d.Currency, d.Amount)

	return Notification{
		Source: "donation",
		Confirmation: &Email{
			To:      []string{d.DonorEmail},
			Subject: "Thank you for your donation - " + m.AppName,
			Body: fmt.Sprintf("Dear %s,\n\nWe received your donation of %s. "+
				"Your donation will help us empower young Tanzanians through sports and education.\n\n"+
				"Your donation may be tax-deductible. Please check with your local tax authority.", name, amount) + m.signature(),
		},
		AdminEmail: &Email{
			Subject: adminSubject("New Donation Received"),
			Body: fmt.Sprintf("Donor: %s <%s>\nAmount: %s\nCampaign: %s\nReference: %s\n\n%s",
				d.PublicDonorName(), d.DonorEmail, amount, d.Campaign,
				models.StringValue(d.PaymentReference), m.dashboardLink()),
		},
		AdminAlert: fmt.Sprintf("Donation received: %s from %s (%s)", amount, d.PublicDonorName(), d.Campaign),
	}
}
