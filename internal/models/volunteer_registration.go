package models

import "time"

// VolunteerRegistration is created once by the volunteer form.
type VolunteerRegistration struct {
	Base

	FirstName    string           `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName     string           `gorm:"type:varchar(100);not null" json:"last_name"`
	Email        string           `gorm:"type:varchar(255);not null" json:"email"`
	Phone        string           `gorm:"type:varchar(50);not null" json:"phone"`
	DateOfBirth  *time.Time       `gorm:"type:date" json:"date_of_birth,omitempty"`
	Gender       *string          `gorm:"type:varchar(20)" json:"gender,omitempty"`
	Location     *string          `gorm:"type:varchar(100)" json:"location,omitempty"`
	Skills       *string          `gorm:"type:text" json:"skills,omitempty"`
	Interests    *string          `gorm:"type:text" json:"interests,omitempty"`
	Availability *string          `gorm:"type:varchar(200)" json:"availability,omitempty"`
	Experience   *string          `gorm:"type:text" json:"experience,omitempty"`
	WhyVolunteer string           `gorm:"type:text" json:"why_volunteer"`
	Status       SubmissionStatus `gorm:"type:varchar(20);default:'new'" json:"status,omitempty"`
}

func (VolunteerRegistration) TableName() string { return "volunteer_registrations" }

// FullName joins first and last name.
func (v VolunteerRegistration) FullName() string {
	return v.FirstName + " " + v.LastName
}
