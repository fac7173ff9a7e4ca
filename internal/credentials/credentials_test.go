package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clipper/internal/logging"
	"clipper/internal/services"
)

const validCookies = "# Netscape HTTP Cookie File\n" +
	"# This is a comment line\n" +
	".youtube.com\tTRUE\t/\tTRUE\t1893456000\tSID\tabc123\n" +
	"#HttpOnly_.youtube.com\tTRUE\t/\tTRUE\t1893456000\tHSID\tdef456\n" +
	"\n" +
	".google.com\tTRUE\t/\tFALSE\t1893456000\tNID\tghi789\n"

func newTestStore(t *testing.T, shared string) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), shared, logging.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestValidateNetscapeCountsCookies(t *testing.T) {
	count, err := ValidateNetscape([]byte(validCookies))
	if err != nil {
		t.Fatalf("ValidateNetscape failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 cookies (HttpOnly included), got %d", count)
	}
}

func TestValidateNetscapeRejectsMalformedLine(t *testing.T) {
	_, err := ValidateNetscape([]byte(".youtube.com\tTRUE\t/\tTRUE\tSID\tabc123\n"))
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput for 6-field line, got %v", err)
	}
}

func TestValidateNetscapeRejectsEmptyUpload(t *testing.T) {
	for _, blob := range []string{"", "# only comments\n\n"} {
		if _, err := ValidateNetscape([]byte(blob)); !errors.Is(err, services.ErrInput) {
			t.Fatalf("expected ErrInput for %q, got %v", blob, err)
		}
	}
}

func TestSaveAndResolveSession(t *testing.T) {
	store := newTestStore(t, "")

	sessionID, err := store.Save([]byte(validCookies))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected a session ID")
	}

	resolved := store.Resolve(sessionID)
	if resolved.Source != SourceSession {
		t.Fatalf("expected session source, got %q", resolved.Source)
	}
	info, err := os.Stat(resolved.Path)
	if err != nil {
		t.Fatalf("cookie file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("cookie file permissions %o, expected 600", perm)
	}
}

func TestSaveRejectsInvalidBlob(t *testing.T) {
	store := newTestStore(t, "")
	if _, err := store.Save([]byte("not cookies")); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestResolveFallsBackToShared(t *testing.T) {
	shared := filepath.Join(t.TempDir(), "shared.cookies.txt")
	if err := os.WriteFile(shared, []byte(validCookies), 0o600); err != nil {
		t.Fatalf("write shared cookies: %v", err)
	}
	store := newTestStore(t, shared)

	if resolved := store.Resolve("unknown-session"); resolved.Source != SourceShared {
		t.Fatalf("expected shared fallback, got %q", resolved.Source)
	}
	if resolved := store.Resolve(""); resolved.Source != SourceShared {
		t.Fatalf("expected shared for empty session, got %q", resolved.Source)
	}
}

func TestResolveNoneWithoutAnyCookies(t *testing.T) {
	store := newTestStore(t, "")
	if resolved := store.Resolve(""); resolved.Source != SourceNone {
		t.Fatalf("expected none, got %q", resolved.Source)
	}
}

func TestAlternateSwitchesSessionToShared(t *testing.T) {
	shared := filepath.Join(t.TempDir(), "shared.cookies.txt")
	if err := os.WriteFile(shared, []byte(validCookies), 0o600); err != nil {
		t.Fatalf("write shared cookies: %v", err)
	}
	store := newTestStore(t, shared)

	alt, ok := store.Alternate(Resolved{Path: "session.txt", Source: SourceSession})
	if !ok || alt.Source != SourceShared {
		t.Fatalf("expected shared alternate, got %+v ok=%v", alt, ok)
	}
	if _, ok := store.Alternate(alt); ok {
		t.Fatal("shared credentials have no alternate")
	}
}

func TestDeleteSession(t *testing.T) {
	store := newTestStore(t, "")
	sessionID, err := store.Save([]byte(validCookies))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(sessionID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if resolved := store.Resolve(sessionID); resolved.Source != SourceNone {
		t.Fatalf("expected none after delete, got %q", resolved.Source)
	}
	if err := store.Delete("missing"); err != nil {
		t.Fatalf("deleting a missing session must not error: %v", err)
	}
}
