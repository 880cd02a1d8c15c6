package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorString(t *testing.T) {
	plain := Transientf("helix returned %d", 503)
	if got, want := plain.Error(), "TRANSIENT_API: helix returned 503"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	wrapped := CacheIO("write ledger", io.ErrShortWrite)
	if got, want := wrapped.Error(), "CACHE_IO: write ledger: short write"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transient("helix call", cause)

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should reach the cause through Unwrap")
	}
}

func TestHasCode(t *testing.T) {
	err := Upstream("unexpected payload", nil)

	if !HasCode(err, CodeUpstreamLogic) {
		t.Fatal("HasCode should match the error's own code")
	}
	if HasCode(err, CodeAuth) {
		t.Fatal("HasCode should not match a different code")
	}
	if HasCode(errors.New("plain"), CodeUpstreamLogic) {
		t.Fatal("HasCode should not match an uncoded error")
	}
	if HasCode(nil, CodeUpstreamLogic) {
		t.Fatal("HasCode should not match nil")
	}
}

func TestHasCode_WrappedDeep(t *testing.T) {
	inner := Auth("token endpoint returned 403", nil)
	outer := fmt.Errorf("run aborted: %w", inner)

	if !HasCode(outer, CodeAuth) {
		t.Fatal("HasCode should unwrap through fmt.Errorf")
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(Auth("no credentials", nil)) {
		t.Fatal("auth errors are fatal")
	}
	if IsFatal(Transientf("timeout")) {
		t.Fatal("transient errors are not fatal")
	}
	if IsFatal(CacheIO("read ledger", nil)) {
		t.Fatal("cache errors are not fatal")
	}
	if IsFatal(nil) {
		t.Fatal("nil is not fatal")
	}
}
