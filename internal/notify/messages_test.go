package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foundation_site/internal/models"
)

var testMessages = Messages{AppName: "Samatta Foundation", AppURL: "https://site.test", SupportEmail: "support@site.test"}

func TestApplicationSubjectUsesProgramLabel(t *testing.T) {
	a := &models.ProgramApplication{ProgramName: "samatta_cup", ApplicantName: "Baraka", ApplicantEmail: "b@x.co"}
	n := testMessages.Application(a)

	require.NotNil(t, n.Confirmation)
	assert.Equal(t, "Application Received - Samatta Cup - Samatta Foundation", n.Confirmation.Subject)
	assert.Equal(t, []string{"b@x.co"}, n.Confirmation.To)
	assert.Equal(t, "program_application", n.Event.Name)
}

func TestSubscriptionIncludesUnsubscribeLink(t *testing.T) {
	n := testMessages.Subscription(&models.NewsletterSubscription{Email: "a+b@x.co"})

	assert.Equal(t, "Newsletter Subscription Confirmed - Samatta Foundation", n.Confirmation.Subject)
	assert.Contains(t, n.Confirmation.Body, "https://site.test/unsubscribe?email=a%2Bb%40x.co")
	assert.Nil(t, n.AdminEmail)
}

func TestDonationCompletedHidesAnonymousDonor(t *testing.T) {
	name := "Secret Person"
	d := &models.Donation{DonorName: &name, DonorEmail: "s@x.co", Amount: 25, Currency: "USD", IsAnonymous: true, Campaign: "health"}
	n := testMessages.DonationCompleted(d)

	assert.Equal(t, "Thank you for your donation - Samatta Foundation", n.Confirmation.Subject)
	assert.Contains(t, n.Confirmation.Body, "Dear friend")
	assert.NotContains(t, n.AdminAlert, "Secret Person")
	assert.Contains(t, n.AdminAlert, "USD 25.00")
}

func TestDonationInitiatedIsEventOnly(t *testing.T) {
	n := testMessages.DonationInitiated(&models.Donation{Amount: 1000, Currency: "TZS", Campaign: "general"})

	assert.Nil(t, n.Confirmation)
	require.NotNil(t, n.Event)
	assert.Equal(t, "donate", n.Event.Name)
	assert.Equal(t, 1000.0, n.Event.Params["value"])
}
