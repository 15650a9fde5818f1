// Package publish handles downstream announcements of new and enriched
// stories. A claim registry serializes announcement attempts per article so
// concurrent sweeps and pipeline runs never double-post.
package publish

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyClaimed is returned when an article's announcement is
	// currently claimed by another worker.
	ErrAlreadyClaimed = errors.New("announcement already claimed")

	// ErrNotClaimed is returned when finalizing or releasing an article with
	// no live claim.
	ErrNotClaimed = errors.New("announcement is not claimed")

	// ErrTokenMismatch is returned when a finalize or release presents a
	// token from a different claim. The holder lost the claim to expiry.
	ErrTokenMismatch = errors.New("claim token mismatch")
)

// ClaimState is the announcement lifecycle state of one article.
type ClaimState int

const (
	// StateUnclaimed means no announcement is in flight or recorded.
	StateUnclaimed ClaimState = iota
	// StateClaimed means a worker holds the announcement claim.
	StateClaimed
	// StateFinalized means the announcement was posted and its post ID
	// recorded.
	StateFinalized
)

func (s ClaimState) String() string {
	switch s {
	case StateClaimed:
		return "claimed"
	case StateFinalized:
		return "finalized"
	default:
		return "unclaimed"
	}
}

type claim struct {
	state     ClaimState
	token     string
	claimedAt time.Time
	postID    string
}

// Registry tracks announcement claims per article. Claims expire: a worker
// that dies mid-announcement releases its claim implicitly after the TTL, and
// a finalized announcement becomes claimable again after the TTL so a later
// enrichment of the same article can be announced too.
type Registry struct {
	mu     sync.Mutex
	claims map[int64]claim
	ttl    time.Duration
	now    func() time.Time
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a claim registry with the given claim TTL.
func NewRegistry(ttl time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		claims: make(map[int64]claim),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Claim attempts to take the announcement claim for an article. On success
// it returns an opaque token the holder must present to finalize or release.
func (r *Registry) Claim(articleID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[articleID]
	if ok && c.state != StateUnclaimed && r.now().Sub(c.claimedAt) < r.ttl {
		return "", ErrAlreadyClaimed
	}

	token := uuid.New().String()
	r.claims[articleID] = claim{
		state:     StateClaimed,
		token:     token,
		claimedAt: r.now(),
	}
	return token, nil
}

// Finalize records the posted announcement under the holder's claim.
func (r *Registry) Finalize(articleID int64, token, postID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[articleID]
	if !ok || c.state != StateClaimed {
		return ErrNotClaimed
	}
	if c.token != token {
		return ErrTokenMismatch
	}
	c.state = StateFinalized
	c.postID = postID
	r.claims[articleID] = c
	return nil
}

// Release abandons a claim after a failed announcement, making the article
// immediately claimable again.
func (r *Registry) Release(articleID int64, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[articleID]
	if !ok || c.state != StateClaimed {
		return ErrNotClaimed
	}
	if c.token != token {
		return ErrTokenMismatch
	}
	delete(r.claims, articleID)
	return nil
}

// State reports the current claim state for an article, accounting for TTL
// expiry.
func (r *Registry) State(articleID int64) ClaimState {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[articleID]
	if !ok || r.now().Sub(c.claimedAt) >= r.ttl {
		return StateUnclaimed
	}
	return c.state
}

// PostID returns the recorded post ID of a finalized announcement.
func (r *Registry) PostID(articleID int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[articleID]
	if !ok || c.state != StateFinalized {
		return "", false
	}
	return c.postID, true
}
