package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mnemolabs/mnemo/auth"
	"github.com/mnemolabs/mnemo/core"
)

func newIdentityServer(t *testing.T, validToken, uid string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token != validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"uid": uid})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStaticAlwaysResolves(t *testing.T) {
	v := auth.Static{Owner: "default-user"}

	owner, err := v.Verify(context.Background(), "")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if owner != "default-user" {
		t.Errorf("unexpected owner: %q", owner)
	}
}

func TestRemoteVerify(t *testing.T) {
	srv := newIdentityServer(t, "good-token", "uid-1")
	v := auth.NewRemote(srv.URL, time.Second)

	owner, err := v.Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if owner != "uid-1" {
		t.Errorf("unexpected owner: %q", owner)
	}
}

func TestRemoteVerifyRejections(t *testing.T) {
	srv := newIdentityServer(t, "good-token", "uid-1")
	v := auth.NewRemote(srv.URL, time.Second)

	for name, token := range map[string]string{
		"empty token": "",
		"bad token":   "wrong",
	} {
		if _, err := v.Verify(context.Background(), token); !errors.Is(err, core.ErrUnauthorized) {
			t.Errorf("%s: expected ErrUnauthorized, got: %v", name, err)
		}
	}
}

func TestRemoteVerifyUnreachableServiceIsUnauthorized(t *testing.T) {
	srv := newIdentityServer(t, "good-token", "uid-1")
	srv.Close()
	v := auth.NewRemote(srv.URL, time.Second)

	if _, err := v.Verify(context.Background(), "good-token"); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized on transport failure, got: %v", err)
	}
}

// countingVerifier counts delegated calls.
type countingVerifier struct {
	calls atomic.Int64
	fail  bool
}

func (v *countingVerifier) Verify(ctx context.Context, token string) (string, error) {
	v.calls.Add(1)
	if v.fail {
		return "", fmt.Errorf("%w: rejected", core.ErrUnauthorized)
	}
	return "uid-" + token, nil
}

func TestCachedVerifyHitsCache(t *testing.T) {
	inner := &countingVerifier{}
	v := auth.NewCached(inner)

	for i := 0; i < 3; i++ {
		owner, err := v.Verify(context.Background(), "t1")
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		if owner != "uid-t1" {
			t.Errorf("unexpected owner: %q", owner)
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 delegated call, got %d", got)
	}
}

func TestCachedVerifyDoesNotCacheFailures(t *testing.T) {
	inner := &countingVerifier{fail: true}
	v := auth.NewCached(inner)

	for i := 0; i < 2; i++ {
		if _, err := v.Verify(context.Background(), "t1"); !errors.Is(err, core.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got: %v", err)
		}
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("failures must not be cached, expected 2 delegated calls, got %d", got)
	}
}

func TestCachedVerifyIsPerToken(t *testing.T) {
	inner := &countingVerifier{}
	v := auth.NewCached(inner)

	a, err := v.Verify(context.Background(), "alice")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	b, err := v.Verify(context.Background(), "bob")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if a == b {
		t.Errorf("distinct tokens resolved to the same owner: %q", a)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("expected 2 delegated calls, got %d", got)
	}
}
