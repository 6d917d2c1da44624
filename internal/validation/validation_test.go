package validation

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
)

func validDonation() DonationForm {
	return DonationForm{
		DonorName:  "Jane Donor",
		DonorEmail: "jane@example.com",
		DonorPhone: "0712345678",
		Amount:     "50000",
		Currency:   "TZS",
		Message:    "Keep up the great work!",
		Campaign:   "general",
	}
}

func TestValidateContact(t *testing.T) {
	tests := []struct {
		name     string
		form     ContactForm
		expected Violations
	}{
		{
			name: "valid form",
			form: ContactForm{Name: "Jo Doe", Email: "jo@x.com", Message: "Hello there, I have a question."},
		},
		{
			name: "short message",
			form: ContactForm{Name: "Jo Doe", Email: "jo@x.com", Message: "Hi"},
			expected: Violations{
				"message": "Message must be at least 10 characters",
			},
		},
		{
			name: "invalid email and short name",
			form: ContactForm{Name: "J", Email: "not-an-email", Message: "I would like to learn more."},
			expected: Violations{
				"name":  "Name must be at least 2 characters",
				"email": "Please enter a valid email address",
			},
		},
		{
			name: "optional fields validated when present",
			form: ContactForm{Name: "Jo Doe", Email: "jo@x.com", Phone: "123", Subject: "Hey", Message: "Hello there, I have a question."},
			expected: Violations{
				"phone":   "Phone number must be at least 10 characters",
				"subject": "Subject must be at least 5 characters",
			},
		},
		{
			name: "message too long",
			form: ContactForm{Name: "Jo Doe", Email: "jo@x.com", Message: strings.Repeat("a", 5001)},
			expected: Violations{
				"message": "Message must be less than 5000 characters",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, v := ValidateContact(tt.form)
			if tt.expected == nil {
				require.Empty(t, v)
				require.NotNil(t, rec)
				return
			}
			assert.Nil(t, rec)
			if diff := cmp.Diff(tt.expected, v); diff != "" {
				t.Errorf("violations mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateContactNormalizes(t *testing.T) {
	rec, v := ValidateContact(ContactForm{
		Name:    "  Jo Doe ",
		Email:   " Jo@X.com ",
		Phone:   "   ",
		Message: "Hello there, I have a question.",
	})
	require.Empty(t, v)
	assert.Equal(t, "Jo Doe", rec.Name)
	assert.Equal(t, "jo@x.com", rec.Email)
	assert.Nil(t, rec.Phone)
	assert.Nil(t, rec.Subject)
	assert.Equal(t, models.SubmissionStatusNew, rec.Status)
}

func TestValidateIsIdempotent(t *testing.T) {
	forms := []Form{
		ContactForm{Name: "J", Email: "bad", Message: "Hi"},
		ContactForm{Name: "Jo Doe", Email: "jo@x.com", Message: "Hello there, I have a question."},
		NewsletterForm{Email: "someone@example.org"},
		DonationForm{Amount: "abc", Currency: "XYZ"},
		validDonation(),
		VolunteerForm{FirstName: "A"},
		ApplicationForm{ProgramName: "samatta_cup"},
	}

	for _, f := range forms {
		t.Run(string(f.Kind()), func(t *testing.T) {
			rec1, v1 := Validate(f)
			rec2, v2 := Validate(f)
			assert.Equal(t, rec1 == nil, rec2 == nil)
			if diff := cmp.Diff(v1, v2); diff != "" {
				t.Errorf("second run differs (-first +second):\n%s", diff)
			}
			if rec1 != nil {
				assert.Equal(t, rec1, rec2)
			}
		})
	}
}

func TestValidateDonationAnonymousRule(t *testing.T) {
	form := validDonation()
	form.DonorName = ""
	form.IsAnonymous = true

	rec, v := ValidateDonation(form)
	require.Empty(t, v)
	assert.Nil(t, rec.DonorName)
	assert.True(t, rec.IsAnonymous)
	assert.Equal(t, "Anonymous", rec.PublicDonorName())

	form.IsAnonymous = false
	rec, v = ValidateDonation(form)
	assert.Nil(t, rec)
	assert.Equal(t, Violations{"donor_name": "Name must be at least 2 characters"}, v)
}

func TestValidateDonationEmailRequiredWhenAnonymous(t *testing.T) {
	form := validDonation()
	form.IsAnonymous = true
	form.DonorEmail = ""

	_, v := ValidateDonation(form)
	assert.Equal(t, "Please enter a valid email address", v["donor_email"])
}

func TestValidateDonationFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DonationForm)
		field  string
		msg    string
	}{
		{"non numeric amount", func(f *DonationForm) { f.Amount = "abc" }, "amount", "Amount must be a valid number"},
		{"zero amount", func(f *DonationForm) { f.Amount = "0" }, "amount", "Amount must be greater than 0"},
		{"negative amount", func(f *DonationForm) { f.Amount = "-5" }, "amount", "Amount must be greater than 0"},
		{"infinite amount", func(f *DonationForm) { f.Amount = "Inf" }, "amount", "Amount must be a valid number"},
		{"unknown currency", func(f *DonationForm) { f.Currency = "JPY" }, "currency", "Please select a valid currency"},
		{"unknown campaign", func(f *DonationForm) { f.Campaign = "yachts" }, "campaign", "Please select a campaign"},
		{"long message", func(f *DonationForm) { f.Message = strings.Repeat("x", 501) }, "message", "Message must be less than 500 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validDonation()
			tt.mutate(&form)
			rec, v := ValidateDonation(form)
			assert.Nil(t, rec)
			assert.Equal(t, tt.msg, v[tt.field])
		})
	}
}

func TestValidateDonationDefaults(t *testing.T) {
	form := validDonation()
	form.Campaign = ""
	form.Currency = "usd"
	form.Amount = "1,250.50"

	rec, v := ValidateDonation(form)
	require.Empty(t, v)
	assert.Equal(t, models.DefaultCampaign, rec.Campaign)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, 1250.50, rec.Amount)
	assert.Equal(t, models.PaymentStatusPending, rec.PaymentStatus)
}

func TestValidateVolunteer(t *testing.T) {
	form := VolunteerForm{
		FirstName:    "Amina",
		LastName:     "Juma",
		Email:        "amina@example.com",
		Phone:        "0712345678",
		DateOfBirth:  "1999-04-12",
		Gender:       "Female",
		WhyVolunteer: "I want to coach young players in my community.",
	}

	rec, v := ValidateVolunteer(form)
	require.Empty(t, v)
	require.NotNil(t, rec.DateOfBirth)
	assert.Equal(t, 1999, rec.DateOfBirth.Year())
	assert.Equal(t, "female", models.StringValue(rec.Gender))
	assert.Equal(t, "Amina Juma", rec.FullName())

	form.Gender = "robot"
	form.DateOfBirth = "not a date"
	form.WhyVolunteer = "fun"
	_, v = ValidateVolunteer(form)
	assert.Equal(t, Violations{
		"gender":        "Please select a valid gender",
		"date_of_birth": "Please enter a valid date",
		"why_volunteer": "Please tell us why you want to volunteer (at least 10 characters)",
	}, v)
}

func TestValidateApplication(t *testing.T) {
	form := ApplicationForm{
		ProgramName:    "coaching_clinic",
		ApplicantName:  "Baraka Mushi",
		ApplicantEmail: "baraka@example.com",
		ApplicantPhone: "+255712345678",
	}
	rec, v := ValidateApplication(form)
	require.Empty(t, v)
	assert.Equal(t, "coaching_clinic", rec.ProgramName)

	form.ProgramName = ""
	form.ApplicantPhone = "0712"
	_, v = ValidateApplication(form)
	assert.Equal(t, []string{"applicant_phone", "program_name"}, v.Fields())
}

func TestViolationsAsError(t *testing.T) {
	assert.NoError(t, Violations{}.AsError())

	err := Violations{"email": invalidEmail}.AsError()
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Contains(t, err.Error(), "email: Please enter a valid email address")
}
