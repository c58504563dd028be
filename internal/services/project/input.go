package project

import (
	"strings"
	"time"

	"github.com/pixelforge/forge/internal/domain"
)

// CreateProjectInput carries the fields of a create request before validation.
type CreateProjectInput struct {
	Name        string
	Description string
	Deadline    string // YYYY-MM-DD or RFC 3339, optional
	TechStack   []string
	Status      string // optional, defaults to Active
}

const dateLayout = "2006-01-02"

// parseDeadline accepts a calendar date or a full RFC 3339 timestamp. An empty
// string means no deadline.
func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.Validationf("deadline %q must be YYYY-MM-DD or RFC 3339", s)
}

// cleanTechStack trims entries and drops empty ones, keeping order.
func cleanTechStack(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
