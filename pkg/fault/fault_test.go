package fault

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFaultError(t *testing.T) {
	f := New(DisallowedNamespace, "namespace not permitted").
		WithQName("{http://example.org/x}Custom").
		WithExchange("Digikoppeling 2W-be-S", "urn:uuid:1234")

	msg := f.Error()
	for _, want := range []string{"DisallowedNamespace", "namespace not permitted", "{http://example.org/x}Custom", "Digikoppeling 2W-be-S", "urn:uuid:1234"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error message %q", want, msg)
		}
	}
}

func TestCodeOf(t *testing.T) {
	f := New(UnknownProfile, "no such profile")
	wrapped := fmt.Errorf("lookup: %w", f)

	code, ok := CodeOf(wrapped)
	if !ok {
		t.Fatal("expected fault code")
	}
	if code != UnknownProfile {
		t.Errorf("expected UnknownProfile, got %s", code)
	}

	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Error("expected no fault code for plain error")
	}
}

func TestIs(t *testing.T) {
	f := Wrap(DecryptionFailed, errors.New("cipher: message authentication failed"), "body decryption failed")

	if !Is(f, DecryptionFailed) {
		t.Error("expected Is to match DecryptionFailed")
	}
	if Is(f, SignatureInvalid) {
		t.Error("expected Is to not match SignatureInvalid")
	}
	if errors.Unwrap(f) == nil {
		t.Error("expected wrapped cause")
	}
}

func TestWithExchangeDoesNotOverwrite(t *testing.T) {
	f := New(CallbackTimeout, "expired").WithExchange("p1", "m1").WithExchange("p2", "m2")
	if f.ProfileID != "p1" || f.MessageID != "m1" {
		t.Errorf("expected first exchange context to win, got %s/%s", f.ProfileID, f.MessageID)
	}
}
