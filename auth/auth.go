// Package auth resolves an opaque bearer credential to an owner id. The
// credential format and its validation live entirely behind the Verifier
// boundary; the rest of the system only sees the owner.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mnemolabs/mnemo/core"
)

// Verifier turns a bearer token into an owner id.
type Verifier interface {
	// Verify returns the owner id for a valid token, or an error wrapping
	// core.ErrUnauthorized.
	Verify(ctx context.Context, token string) (string, error)
}

// Static always resolves to a fixed owner. Development only: it is the
// no-auth mode, equivalent to running every request as one user.
type Static struct {
	Owner string
}

// Verify returns the fixed owner.
func (s Static) Verify(ctx context.Context, token string) (string, error) {
	return s.Owner, nil
}

// Remote verifies tokens against an external identity service:
// POST {"token": ...} to the verify endpoint, expecting {"uid": ...}.
type Remote struct {
	endpoint string
	client   *http.Client
}

// NewRemote creates a remote verifier. timeout bounds each verify call.
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Verify calls the identity service. Any failure, including transport
// errors, resolves to Unauthorized: a token that cannot be verified is
// not accepted.
func (r *Remote) Verify(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: missing bearer token", core.ErrUnauthorized)
	}

	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return "", fmt.Errorf("%w: encode verify request: %v", core.ErrUnauthorized, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build verify request: %v", core.ErrUnauthorized, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: verify call failed: %v", core.ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: identity service returned %d", core.ErrUnauthorized, resp.StatusCode)
	}

	var body struct {
		UID string `json:"uid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode verify response: %v", core.ErrUnauthorized, err)
	}
	if body.UID == "" {
		return "", fmt.Errorf("%w: identity service returned no uid", core.ErrUnauthorized)
	}

	return body.UID, nil
}

// cacheTTL bounds how long a verified token is trusted without
// re-verification.
const cacheTTL = 5 * time.Minute

type cachedOwner struct {
	owner     string
	expiresAt time.Time
}

// Cached wraps a Verifier with a TTL cache of successful verifications.
type Cached struct {
	inner Verifier
	cache sync.Map
}

// NewCached wraps a verifier.
func NewCached(inner Verifier) *Cached {
	return &Cached{inner: inner}
}

// Verify returns the cached owner when present and fresh, otherwise
// delegates. Only successes are cached.
func (c *Cached) Verify(ctx context.Context, token string) (string, error) {
	if val, ok := c.cache.Load(token); ok {
		cached := val.(*cachedOwner)
		if time.Now().Before(cached.expiresAt) {
			return cached.owner, nil
		}
		c.cache.Delete(token)
	}

	owner, err := c.inner.Verify(ctx, token)
	if err != nil {
		return "", err
	}

	c.cache.Store(token, &cachedOwner{owner: owner, expiresAt: time.Now().Add(cacheTTL)})
	return owner, nil
}
