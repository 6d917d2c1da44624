package validation

import (
	"slices"
	"strings"

	"foundation_site/internal/models"
)

// ContactForm is posted from /contact.
type ContactForm struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Phone   string `json:"phone" form:"phone"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message"`
}

func (ContactForm) Kind() Kind { return KindContact }

func (f ContactForm) validate() (models.Record, Violations) {
	rec, v := ValidateContact(f)
	return rec, v
}

// ValidateContact checks a contact form.
func ValidateContact(f ContactForm) (*models.ContactSubmission, Violations) {
	c := newChecker()
	rec := &models.ContactSubmission{
		Name:  c.name("name", f.Name, "Name"),
		Email: c.email("email", f.Email),
		Phone: c.optionalPhone("phone", f.Phone),
		Subject: c.optional("subject", f.Subject, 5, 200,
			"Subject must be at least 5 characters",
			"Subject must be less than 200 characters"),
		Message: c.text("message", f.Message, 10, 5000,
			"Message must be at least 10 characters",
			"Message must be less than 5000 characters"),
		Status: models.SubmissionStatusNew,
	}
	if len(c.v) > 0 {
		return nil, c.v
	}
	return rec, nil
}

// NewsletterForm is the footer and home page signup.
type NewsletterForm struct {
	Email string `json:"email" form:"email"`
	Name  string `json:"name" form:"name"`
}

func (NewsletterForm) Kind() Kind { return KindNewsletter }

func (f NewsletterForm) validate() (models.Record, Violations) {
	rec, v := ValidateNewsletter(f)
	return rec, v
}

// ValidateNewsletter checks a newsletter signup.
func ValidateNewsletter(f NewsletterForm) (*models.NewsletterSubscription, Violations) {
	c := newChecker()
	rec := &models.NewsletterSubscription{
		Email: c.email("email", f.Email),
		Name: c.optional("name", f.Name, 2, 100,
			"Name must be at least 2 characters",
			"Name must be less than 100 characters"),
		IsActive: true,
	}
	if len(c.v) > 0 {
		return nil, c.v
	}
	return rec, nil
}

// DonationForm is posted from /donate. Amount stays a string so that a
// non-numeric entry is reported as such rather than failing to bind.
type DonationForm struct {
	DonorName   string `json:"donor_name" form:"donor_name"`
	DonorEmail  string `json:"donor_email" form:"donor_email"`
	DonorPhone  string `json:"donor_phone" form:"donor_phone"`
	Amount      string `json:"amount" form:"amount"`
	Currency    string `json:"currency" form:"currency"`
	IsAnonymous bool   `json:"is_anonymous" form:"is_anonymous"`
	Message     string `json:"message" form:"message"`
	Campaign    string `json:"campaign" form:"campaign"`
}

func (DonationForm) Kind() Kind { return KindDonation }

func (f DonationForm) validate() (models.Record, Violations) {
	rec, v := ValidateDonation(f)
	return rec, v
}

// ValidateDonation checks a donation. The donor name may be left out only
// when the gift is anonymous; the email is required either way.
func ValidateDonation(f DonationForm) (*models.Donation, Violations) {
	c := newChecker()

	var donorName *string
	if f.IsAnonymous {
		donorName = c.optional("donor_name", f.DonorName, 2, 100,
			"Name must be at least 2 characters",
			"Name must be less than 100 characters")
	} else {
		name := c.name("donor_name", f.DonorName, "Name")
		donorName = &name
	}

	currency := strings.ToUpper(strings.TrimSpace(f.Currency))
	if !slices.Contains(models.Currencies, currency) {
		c.v.add("currency", "Please select a valid currency")
	}

	campaign := strings.TrimSpace(f.Campaign)
	if campaign == "" {
		campaign = models.DefaultCampaign
	}
	if _, ok := models.Campaigns[campaign]; !ok {
		c.v.add("campaign", "Please select a campaign")
	}

	rec := &models.Donation{
		DonorName:     donorName,
		DonorEmail:    c.email("donor_email", f.DonorEmail),
		DonorPhone:    c.optionalPhone("donor_phone", f.DonorPhone),
		Amount:        c.positiveAmount("amount", f.Amount),
		Currency:      currency,
		PaymentStatus: models.PaymentStatusPending,
		IsAnonymous:   f.IsAnonymous,
		Message:       c.maxOnly("message", f.Message, 500, "Message"),
		Campaign:      campaign,
	}
	if len(c.v) > 0 {
		return nil, c.v
	}
	return rec, nil
}

// Genders accepted by the volunteer form, compared case-insensitively.
var Genders = []string{"male", "female", "other", "prefer_not_to_say"}

// VolunteerForm is posted from /volunteer.
type VolunteerForm struct {
	FirstName    string `json:"first_name" form:"first_name"`
	LastName     string `json:"last_name" form:"last_name"`
	Email        string `json:"email" form:"email"`
	Phone        string `json:"phone" form:"phone"`
	DateOfBirth  string `json:"date_of_birth" form:"date_of_birth"`
	Gender       string `json:"gender" form:"gender"`
	Location     string `json:"location" form:"location"`
	Skills       string `json:"skills" form:"skills"`
	Interests    string `json:"interests" form:"interests"`
	Availability string `json:"availability" form:"availability"`
	Experience   string `json:"experience" form:"experience"`
	WhyVolunteer string `json:"why_volunteer" form:"why_volunteer"`
}

func (VolunteerForm) Kind() Kind { return KindVolunteer }

func (f VolunteerForm) validate() (models.Record, Violations) {
	rec, v := ValidateVolunteer(f)
	return rec, v
}

// ValidateVolunteer checks a volunteer registration.
func ValidateVolunteer(f VolunteerForm) (*models.VolunteerRegistration, Violations) {
	c := newChecker()

	var gender *string
	if g := strings.ToLower(strings.TrimSpace(f.Gender)); g != "" {
		if slices.Contains(Genders, g) {
			gender = &g
		} else {
			c.v.add("gender", "Please select a valid gender")
		}
	}

	rec := &models.VolunteerRegistration{
		FirstName:    c.name("first_name", f.FirstName, "First name"),
		LastName:     c.name("last_name", f.LastName, "Last name"),
		Email:        c.email("email", f.Email),
		Phone:        c.phone("phone", f.Phone),
		DateOfBirth:  c.optionalDate("date_of_birth", f.DateOfBirth),
		Gender:       gender,
		Location:     c.maxOnly("location", f.Location, 100, "Location"),
		Skills:       c.maxOnly("skills", f.Skills, 500, "Skills"),
		Interests:    c.maxOnly("interests", f.Interests, 500, "Interests"),
		Availability: c.maxOnly("availability", f.Availability, 200, "Availability"),
		Experience:   c.maxOnly("experience", f.Experience, 500, "Experience"),
		WhyVolunteer: c.text("why_volunteer", f.WhyVolunteer, 10, 1000,
			"Please tell us why you want to volunteer (at least 10 characters)",
			"Motivation must be less than 1000 characters"),
		Status: models.SubmissionStatusNew,
	}
	if len(c.v) > 0 {
		return nil, c.v
	}
	return rec, nil
}

// ApplicationForm is posted from /apply.
type ApplicationForm struct {
	ProgramName       string `json:"program_name" form:"program_name"`
	ApplicantName     string `json:"applicant_name" form:"applicant_name"`
	ApplicantEmail    string `json:"applicant_email" form:"applicant_email"`
	ApplicantPhone    string `json:"applicant_phone" form:"applicant_phone"`
	DateOfBirth       string `json:"date_of_birth" form:"date_of_birth"`
	GuardianName      string `json:"guardian_name" form:"guardian_name"`
	GuardianPhone     string `json:"guardian_phone" form:"guardian_phone"`
	SchoolName        string `json:"school_name" form:"school_name"`
	GradeLevel        string `json:"grade_level" form:"grade_level"`
	SportsExperience  string `json:"sports_experience" form:"sports_experience"`
	MedicalConditions string `json:"medical_conditions" form:"medical_conditions"`
	AdditionalInfo    string `json:"additional_info" form:"additional_info"`
}

func (ApplicationForm) Kind() Kind { return KindApplication }

func (f ApplicationForm) validate() (models.Record, Violations) {
	rec, v := ValidateApplication(f)
	return rec, v
}

// ValidateApplication checks a program application.
func ValidateApplication(f ApplicationForm) (*models.ProgramApplication, Violations) {
	c := newChecker()

	program := strings.TrimSpace(f.ProgramName)
	if _, ok := models.Programs[program]; !ok {
		c.v.add("program_name", "Please select a program")
	}

	rec := &models.ProgramApplication{
		ProgramName:    program,
		ApplicantName:  c.name("applicant_name", f.ApplicantName, "Name"),
		ApplicantEmail: c.email("applicant_email", f.ApplicantEmail),
		ApplicantPhone: c.phone("applicant_phone", f.ApplicantPhone),
		DateOfBirth:    c.optionalDate("date_of_birth", f.DateOfBirth),
		GuardianName:   c.maxOnly("guardian_name", f.GuardianName, 100, "Guardian name"),
		GuardianPhone: c.optional("guardian_phone", f.GuardianPhone, 0, 50, "",
			"Phone number must be less than 50 characters"),
		SchoolName:        c.maxOnly("school_name", f.SchoolName, 200, "School name"),
		GradeLevel:        c.maxOnly("grade_level", f.GradeLevel, 50, "Grade level"),
		SportsExperience:  c.maxOnly("sports_experience", f.SportsExperience, 500, "Experience"),
		MedicalConditions: c.maxOnly("medical_conditions", f.MedicalConditions, 500, "Medical conditions"),
		AdditionalInfo:    c.maxOnly("additional_info", f.AdditionalInfo, 1000, "Additional info"),
		Status:            models.SubmissionStatusNew,
	}
	if len(c.v) > 0 {
		return nil, c.v
	}
	return rec, nil
}
