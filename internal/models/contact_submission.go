package models

// SubmissionStatus tracks the staff follow-up of a submission.
type SubmissionStatus string

const (
	SubmissionStatusNew      SubmissionStatus = "new"
	SubmissionStatusReviewed SubmissionStatus = "reviewed"
	SubmissionStatusArchived SubmissionStatus = "archived"
)

// ContactSubmission is a message sent through the contact form.
type ContactSubmission struct {
	Base

	Name    string           `gorm:"type:varchar(100);not null" json:"name"`
	Email   string           `gorm:"type:varchar(255);not null" json:"email"`
	Phone   *string          `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Subject *string          `gorm:"type:varchar(200)" json:"subject,omitempty"`
	Message string           `gorm:"type:text;not null" json:"message"`
	Status  SubmissionStatus `gorm:"type:varchar(20);default:'new'" json:"status,omitempty"`
}

func (ContactSubmission) TableName() string { return "contact_submissions" }
