package models

import "time"

// BlogPost is published content for /blog.
type BlogPost struct {
	ID               string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title            string     `gorm:"type:varchar(255);not null" json:"title"`
	Slug             string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Excerpt          *string    `gorm:"type:text" json:"excerpt,omitempty"`
	Content          string     `gorm:"type:text;not null" json:"content"`
	Author           string     `gorm:"type:varchar(100)" json:"author"`
	FeaturedImageURL *string    `gorm:"type:text" json:"featured_image_url,omitempty"`
	Category         *string    `gorm:"type:varchar(50);index" json:"category,omitempty"`
	Tags             []string   `gorm:"serializer:json;type:jsonb" json:"tags,omitempty"`
	IsPublished      bool       `gorm:"default:false" json:"is_published"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	ViewsCount       int        `gorm:"default:0" json:"views_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (BlogPost) TableName() string { return "blog_posts" }

// Testimonial is a quote shown on the home page.
type Testimonial struct {
	ID           string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	Role         *string   `gorm:"type:varchar(100)" json:"role,omitempty"`
	Organization *string   `gorm:"type:varchar(100)" json:"organization,omitempty"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	AvatarURL    *string   `gorm:"type:text" json:"avatar_url,omitempty"`
	Rating       *int      `json:"rating,omitempty"`
	IsFeatured   bool      `gorm:"default:false" json:"is_featured"`
	IsPublished  bool      `gorm:"default:false" json:"is_published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Testimonial) TableName() string { return "testimonials" }

// Event is a scheduled program activity.
type Event struct {
	ID                   string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title                string     `gorm:"type:varchar(255);not null" json:"title"`
	Slug                 string     `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	Description          string     `gorm:"type:text" json:"description"`
	EventType            string     `gorm:"type:varchar(50)" json:"event_type"`
	Location             string     `gorm:"type:varchar(255)" json:"location"`
	StartDate            time.Time  `gorm:"index" json:"start_date"`
	EndDate              *time.Time `json:"end_date,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	MaxParticipants      *int       `json:"max_participants,omitempty"`
	CurrentParticipants  int        `gorm:"default:0" json:"current_participants"`
	FeaturedImageURL     *string    `gorm:"type:text" json:"featured_image_url,omitempty"`
	IsPublished          bool       `gorm:"default:false" json:"is_published"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (Event) TableName() string { return "events" }
