// Package service implements rating aggregation, store queries, accounts and
// dashboards on top of store.Repository. Every operation takes the acting
// principal explicitly and returns errors that wrap the domain error kinds.
package service

import (
	"math"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/store-rating/services/ratings/internal/domain"
)

// EventPublisher is satisfied by *analytics.Publisher. Publishing never fails
// the calling operation.
type EventPublisher interface {
	Publish(subject, eventName, userID string, props map[string]any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, string, map[string]any) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// Limits bounds list pagination.
type Limits struct {
	DefaultPageLimit int
	MaxPageLimit     int
}

// Paging parses 1-indexed page/limit query values. Empty values take the
// defaults; values below 1 are rejected; limit is clamped to MaxPageLimit.
func (l Limits) Paging(page, limit string) (domain.Paging, error) {
	p := domain.Paging{Page: 1, Limit: l.DefaultPageLimit}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	fields := map[string]string{}
	if page = strings.TrimSpace(page); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			fields["page"] = "must be a positive integer"
		} else {
			p.Page = n
		}
	}
	if limit = strings.TrimSpace(limit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			fields["limit"] = "must be a positive integer"
		} else {
			p.Limit = n
		}
	}
	if len(fields) > 0 {
		return domain.Paging{}, domain.Invalid("INVALID_PAGINATION", "invalid pagination parameters", fields)
	}
	if l.MaxPageLimit > 0 && p.Limit > l.MaxPageLimit {
		p.Limit = l.MaxPageLimit
	}
	// The offset (page-1)*limit must fit in an int.
	if p.Page-1 > math.MaxInt/p.Limit {
		return domain.Paging{}, domain.Invalid("INVALID_PAGINATION", "invalid pagination parameters",
			map[string]string{"page": "is too large"})
	}
	return p, nil
}

func requirePrincipal(p domain.Principal) error {
	if strings.TrimSpace(p.ID) == "" {
		return domain.Unauthenticated("AUTH_MISSING", "authentication required")
	}
	return nil
}

func validateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Invalid("INVALID_ID", field+" must be a valid id", map[string]string{field: "must be a UUID"})
	}
	return nil
}

// notFoundAs rewrites a bare domain.ErrNotFound into a coded error and
// passes anything else through.
func notFoundAs(err error, code, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		var de *domain.Error
		if errors.As(err, &de) {
			return err
		}
		return domain.NotFound(code, msg)
	}
	return err
}

// fieldErrors collects per-field violations.
type fieldErrors map[string]string

func (f fieldErrors) check(ok bool, field, msg string) {
	if !ok {
		if _, dup := f[field]; !dup {
			f[field] = msg
		}
	}
}

func (f fieldErrors) err(code, msg string) error {
	if len(f) == 0 {
		return nil
	}
	return domain.Invalid(code, msg, f)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func validEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@")+1:], ".")
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
