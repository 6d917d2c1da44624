package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"foundation_site/internal/models"
	"foundation_site/internal/services"
	"foundation_site/internal/store"
)

// ContentStore is the read side of store.Gateway used by the public pages.
type ContentStore interface {
	PublishedPosts(ctx context.Context, limit int) ([]models.BlogPost, error)
	PostsByCategory(ctx context.Context, category string) ([]models.BlogPost, error)
	PostBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	IncrementPostViews(ctx context.Context, id string) error
	Testimonials(ctx context.Context, featuredOnly bool) ([]models.Testimonial, error)
	UpcomingEvents(ctx context.Context) ([]models.Event, error)
	RecentDonations(ctx context.Context, limit int) ([]models.DonationSummary, error)
	TotalDonations(ctx context.Context) (store.DonationTotals, error)
}

const (
	keyPosts            = "content:posts"
	keyTestimonials     = "content:testimonials"
	keyFeatured         = "content:testimonials:featured"
	keyEvents           = "content:events"
	keyRecentDonations  = "donations:recent"
	keyDonationTotals   = "donations:total"
	keyPostBySlugPrefix = "content:post:"
	keyCategoryPrefix   = "content:category:"

	contentTTL  = 5 * time.Minute
	donationTTL = time.Minute

	// maxListLimit bounds the cached lists; requests slice them.
	maxListLimit = 50
)

// Content reads published content through the Redis cache. A nil cache
// reads straight from the store.
type Content struct {
	store ContentStore
	cache *services.RedisCache
	log   *zap.Logger
}

func NewContent(st ContentStore, cache *services.RedisCache, log *zap.Logger) *Content {
	if log == nil {
		log = zap.NewNop()
	}
	return &Content{store: st, cache: cache, log: log.Named("content")}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return store.DefaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func (c *Content) Posts(ctx context.Context, limit int) ([]models.BlogPost, error) {
	posts, err := services.GetOrSet(c.cache, ctx, keyPosts, contentTTL, func() ([]models.BlogPost, error) {
		return c.store.PublishedPosts(ctx, maxListLimit)
	})
	return head(posts, clampLimit(limit)), err
}

func (c *Content) PostsByCategory(ctx context.Context, category string) ([]models.BlogPost, error) {
	return services.GetOrSet(c.cache, ctx, keyCategoryPrefix+category, contentTTL, func() ([]models.BlogPost, error) {
		return c.store.PostsByCategory(ctx, category)
	})
}

// Post returns a published post and counts the view. A failed count is
// logged and does not fail the read.
func (c *Content) Post(ctx context.Context, slug string) (*models.BlogPost, error) {
	post, err := services.GetOrSet(c.cache, ctx, keyPostBySlugPrefix+slug, contentTTL, func() (*models.BlogPost, error) {
		return c.store.PostBySlug(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	if err := c.store.IncrementPostViews(ctx, post.ID); err != nil {
		c.log.Warn("increment post views", zap.String("slug", slug), zap.Error(err))
	}
	return post, nil
}

func (c *Content) Testimonials(ctx context.Context, featuredOnly bool) ([]models.Testimonial, error) {
	key := keyTestimonials
	if featuredOnly {
		key = keyFeatured
	}
	return services.GetOrSet(c.cache, ctx, key, contentTTL, func() ([]models.Testimonial, error) {
		return c.store.Testimonials(ctx, featuredOnly)
	})
}

func (c *Content) Events(ctx context.Context) ([]models.Event, error) {
	return services.GetOrSet(c.cache, ctx, keyEvents, contentTTL, func() ([]models.Event, error) {
		return c.store.UpcomingEvents(ctx)
	})
}

func (c *Content) RecentDonations(ctx context.Context, limit int) ([]models.DonationSummary, error) {
	donations, err := services.GetOrSet(c.cache, ctx, keyRecentDonations, donationTTL, func() ([]models.DonationSummary, error) {
		return c.store.RecentDonations(ctx, maxListLimit)
	})
	return head(donations, clampLimit(limit)), err
}

func (c *Content) TotalDonations(ctx context.Context) (store.DonationTotals, error) {
	return services.GetOrSet(c.cache, ctx, keyDonationTotals, donationTTL, func() (store.DonationTotals, error) {
		return c.store.TotalDonations(ctx)
	})
}

// InvalidateDonations drops the cached donor wall and totals after a
// donation settles.
func (c *Content) InvalidateDonations(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, keyRecentDonations, keyDonationTotals); err != nil {
		c.log.Warn("invalidate donation cache", zap.Error(err))
	}
}
