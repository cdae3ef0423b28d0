package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"questlog/internal/domain"
)

// Upstream failure taxonomy. Clients wrap these with call context; the
// handler layer maps them to HTTP status codes with errors.Is.
var (
	ErrUnknownPlatform     = errors.New("unknown platform")
	ErrCredentialMissing   = errors.New("credential required but missing")
	ErrCredential          = errors.New("credential rejected")
	ErrAccessDenied        = errors.New("access denied")
	ErrUnknownUser         = errors.New("unknown user")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// StatusError maps an unexpected upstream HTTP status onto the taxonomy.
func StatusError(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w (status %d)", ErrCredential, code)
	case code == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrAccessDenied, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w (status %d)", ErrUnknownUser, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w (status %d)", ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w (status %d)", ErrUpstreamUnavailable, code)
	default:
		return fmt.Errorf("unexpected upstream status %d", code)
	}
}

// ListOutcome discriminates the shapes an owned-items listing can come
// back in. Transport and status failures are errors; shape drift is not.
type ListOutcome string

const (
	ListOK        ListOutcome = "ok"
	ListEmpty     ListOutcome = "empty"
	ListMalformed ListOutcome = "malformed"
)

// ListResult is the outcome of one owned-items listing call.
// Items is non-empty only when Outcome is ListOK.
type ListResult struct {
	Outcome ListOutcome
	Items   []RawItem
}

// RawItem is one owned-library entry exactly as the upstream API returned
// it. Concrete types are private to each platform package; only that
// platform's Normalize reads past these accessors.
type RawItem interface {
	ItemID() string
	ItemTitle() string
}

// RawDetail is the platform-specific per-item achievement payload. Its
// concrete shape is private to the platform that produced it.
type RawDetail any

// Session carries the resolved upstream identity for one sync run.
type Session struct {
	// AccountID is the platform-native account identifier upstream calls use.
	AccountID string
	// AccessToken authorizes upstream calls on platforms with a credential
	// exchange; empty when the platform signs requests another way.
	AccessToken string
}

// Provider is the capability set every platform adapter implements.
type Provider interface {
	// Tag returns the platform identifier.
	Tag() domain.Platform

	// Name returns the human-readable platform name.
	Name() string

	// ExchangeCredential resolves the requested user key and optional
	// per-user credential into a Session. Returns ErrCredentialMissing when
	// the platform needs a credential and none was sent, ErrCredential when
	// the exchange is rejected, ErrUnknownUser when the key resolves to
	// nobody.
	ExchangeCredential(ctx context.Context, userKey, credential string) (Session, error)

	// ListOwnedItems fetches the user's full owned-items list. The sole
	// fatal step of a sync: an error here aborts the run.
	ListOwnedItems(ctx context.Context, sess Session) (ListResult, error)

	// FetchItemDetail fetches the achievement payload for one item. Calls
	// are paced by the client's own limiter; the caller loops sequentially.
	FetchItemDetail(ctx context.Context, sess Session, item RawItem) (RawDetail, error)

	// FetchAchievements fetches the full per-achievement breakdown for one
	// item, already normalized.
	FetchAchievements(ctx context.Context, sess Session, itemID string) ([]domain.AchievementDetail, error)

	// Normalize merges one raw item and its detail payload (nil when the
	// detail fetch failed) into the canonical shape.
	Normalize(userKey string, item RawItem, detail RawDetail) domain.PlatformItem
}
