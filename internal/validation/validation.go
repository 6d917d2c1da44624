// Package validation checks user-entered form data before any remote call.
//
// Forms are a closed set of kinds. Each kind has a fixed field set and
// produces a normalized store record or a set of field violations. Validation
// performs no I/O and can be re-run on the same input with the same result.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
)

// Kind discriminates the form union.
type Kind string

const (
	KindContact     Kind = "contact"
	KindNewsletter  Kind = "newsletter"
	KindDonation    Kind = "donation"
	KindVolunteer   Kind = "volunteer"
	KindApplication Kind = "application"
)

// Form is implemented only by the form types of this package.
type Form interface {
	Kind() Kind
	validate() (models.Record, Violations)
}

// Validate checks f and returns its normalized record, or the violations
// found. Exactly one of the results is non-nil.
func Validate(f Form) (models.Record, Violations) {
	rec, v := f.validate()
	if len(v) > 0 {
		return nil, v
	}
	return rec, nil
}

// Violations maps a field name to a human-readable message. Only the first
// violation of each field is kept.
type Violations map[string]string

func (v Violations) add(field, message string) {
	if _, exists := v[field]; !exists {
		v[field] = message
	}
}

// Fields returns the violated field names in sorted order.
func (v Violations) Fields() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (v Violations) Error() string {
	parts := make([]string, 0, len(v))
	for _, f := range v.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", f, v[f]))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// AsError classifies the violations as a validation error, or returns nil.
func (v Violations) AsError() error {
	if len(v) == 0 {
		return nil
	}
	return &apperror.Error{Kind: apperror.KindValidation, Message: v.Error(), Err: v}
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9.!#$%&'*+/=?^_{|}~-]+@[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)

const invalidEmail = "Please enter a valid email address"

// checker accumulates violations for one form.
type checker struct {
	v Violations
}

func newChecker() *checker { return &checker{v: Violations{}} }

func length(s string) int { return utf8.RuneCountInString(s) }

// text trims s and applies min/max bounds. A min of 0 makes the field optional.
func (c *checker) text(field, s string, min, max int, minMsg, maxMsg string) string {
	s = strings.TrimSpace(s)
	if min > 0 && length(s) < min {
		c.v.add(field, minMsg)
	}
	if max > 0 && length(s) > max {
		c.v.add(field, maxMsg)
	}
	return s
}

// optional trims s; when non-empty it must satisfy the bounds.
func (c *checker) optional(field, s string, min, max int, minMsg, maxMsg string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	c.text(field, s, min, max, minMsg, maxMsg)
	return &s
}

func (c *checker) email(field, s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !emailPattern.MatchString(s) {
		c.v.add(field, invalidEmail)
	}
	return s
}

func (c *checker) name(field, s string, label string) string {
	return c.text(field, s, 2, 100,
		label+" must be at least 2 characters",
		label+" must be less than 100 characters")
}

func (c *checker) optionalPhone(field, s string) *string {
	return c.optional(field, s, 10, 50,
		"Phone number must be at least 10 characters",
		"Phone number must be less than 50 characters")
}

func (c *checker) phone(field, s string) string {
	return c.text(field, s, 10, 50,
		"Phone number must be at least 10 characters",
		"Phone number must be less than 50 characters")
}

func (c *checker) maxOnly(field, s string, max int, label string) *string {
	return c.optional(field, s, 0, max, "", fmt.Sprintf("%s must be less than %d characters", label, max))
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

func (c *checker) optionalDate(field, s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	c.v.add(field, "Please enter a valid date")
	return nil
}

func (c *checker) positiveAmount(field, s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		c.v.add(field, "Amount must be a valid number")
		return 0
	}
	if amount <= 0 {
		c.v.add(field, "Amount must be greater than 0")
	}
	return amount
}
