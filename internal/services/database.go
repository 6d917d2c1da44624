package services

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foundation_site/internal/models"
)

// InitDB initializes the database connection with connection pooling
func InitDB(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database connection established")
	return db, nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")

	err := db.AutoMigrate(
		&models.ContactSubmission{},
		&models.NewsletterSubscription{},
		&models.VolunteerRegistration{},
		&models.ProgramApplication{},
		&models.Donation{},
		&models.PaymentSession{},
		&models.PaymentCallbackHistory{},
		&models.BlogPost{},
		&models.Testimonial{},
		&models.Event{},
		&models.ScheduledTask{},
		&models.ScheduledTaskHistory{},
	)
	if err != nil {
		return err
	}

	// PostgREST has no increment verb; the REST backend calls this instead.
	if err := db.Exec(incrementBlogViewsSQL).Error; err != nil {
		return err
	}

	log.Info("database migrations completed")
	return nil
}

const incrementBlogViewsSQL = `CREATE OR REPLACE FUNCTION increment_blog_views(post_id uuid)
RETURNS void LANGUAGE sql AS $$
  UPDATE blog_posts SET views_count = views_count + 1 WHERE id = post_id;
$$;`
