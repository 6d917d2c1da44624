package models

import "time"

// ProgramApplication is an application to one of the foundation's programs.
type ProgramApplication struct {
	Base

	ProgramName       string           `gorm:"type:varchar(100);not null" json:"program_name"`
	ApplicantName     string           `gorm:"type:varchar(100);not null" json:"applicant_name"`
	ApplicantEmail    string           `gorm:"type:varchar(255);not null" json:"applicant_email"`
	ApplicantPhone    string           `gorm:"type:varchar(50);not null" json:"applicant_phone"`
	DateOfBirth       *time.Time       `gorm:"type:date" json:"date_of_birth,omitempty"`
	GuardianName      *string          `gorm:"type:varchar(100)" json:"guardian_name,omitempty"`
	GuardianPhone     *string          `gorm:"type:varchar(50)" json:"guardian_phone,omitempty"`
	SchoolName        *string          `gorm:"type:varchar(200)" json:"school_name,omitempty"`
	GradeLevel        *string          `gorm:"type:varchar(50)" json:"grade_level,omitempty"`
	SportsExperience  *string          `gorm:"type:text" json:"sports_experience,omitempty"`
	MedicalConditions *string          `gorm:"type:text" json:"medical_conditions,omitempty"`
	AdditionalInfo    *string          `gorm:"type:text" json:"additional_info,omitempty"`
	Status            SubmissionStatus `gorm:"type:varchar(20);default:'new'" json:"status,omitempty"`
}

func (ProgramApplication) TableName() string { return "program_applications" }

// Programs open for applications, keyed by form value.
var Programs = map[string]string{
	"samatta_cup":       "Samatta Cup",
	"youth_development": "Youth Development Program",
	"education_support": "Education Support",
	"coaching_clinic":   "Coaching Clinic",
	"health_awareness":  "Health & Wellness Program",
}
