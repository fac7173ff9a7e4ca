// Package credentials stores uploaded platform cookies and resolves which
// cookie file a download should use. Cookie blobs are validated as Netscape
// format before they touch disk, and writes are serialized with a file lock
// so concurrent uploads cannot interleave.
package credentials

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"clipper/internal/logging"
	"clipper/internal/services"
)

// Source names where a resolved cookie file came from.
type Source string

const (
	SourceNone    Source = "none"
	SourceSession Source = "session"
	SourceShared  Source = "shared"
)

// Resolved is the cookie file chosen for a download, if any.
type Resolved struct {
	Path   string
	Source Source
}

// Store keeps session cookie files under a private directory and knows about
// the optional shared cookie file configured for the daemon.
type Store struct {
	dir        string
	sharedPath string
	logger     *slog.Logger
}

// NewStore prepares the credential directory.
func NewStore(credentialDir, sharedCookieFile string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(credentialDir, 0o700); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "credentials", "init", "create credential directory", err)
	}
	return &Store{
		dir:        credentialDir,
		sharedPath: sharedCookieFile,
		logger:     logging.WithComponent(logger, "credentials"),
	}, nil
}

// netscapeFieldCount is the column count of a Netscape cookie line:
// domain, include-subdomains, path, secure, expiration, name, value.
const netscapeFieldCount = 7

// ValidateNetscape checks that the blob is a Netscape cookie file and returns
// the number of cookie lines found.
func ValidateNetscape(data []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	count := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		// HttpOnly cookies are prefixed comments, not comments to skip.
		if strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "#HttpOnly_") {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(trimmed, "#HttpOnly_"), "\t")
		if len(fields) != netscapeFieldCount {
			return 0, services.Wrap(services.ErrInput, "credentials", "validate",
				fmt.Sprintf("line %d has %d fields, expected %d tab-separated fields", lineNo, len(fields), netscapeFieldCount), nil)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, services.Wrap(services.ErrInput, "credentials", "validate", "read cookie data", err)
	}
	if count == 0 {
		return 0, services.Wrap(services.ErrInput, "credentials", "validate", "no cookies found in upload", nil)
	}
	return count, nil
}

// Save validates the blob and writes it as a new session cookie file,
// returning the session ID to submit with jobs.
func (s *Store) Save(blob []byte) (string, error) {
	count, err := ValidateNetscape(blob)
	if err != nil {
		return "", err
	}

	sessionID := uuid.New().String()
	path := s.sessionPath(sessionID)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "credentials", "save", "acquire cookie file lock", err)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "credentials", "save", "write cookie file", err)
	}

	s.logger.Info("session cookies stored",
		logging.String("session_id", sessionID),
		logging.Int("cookies", count))
	return sessionID, nil
}

// Resolve picks the cookie file for a download: the session's own upload if
// present, otherwise the shared file, otherwise none.
func (s *Store) Resolve(sessionID string) Resolved {
	if sessionID != "" {
		path := s.sessionPath(sessionID)
		if fileExists(path) {
			return Resolved{Path: path, Source: SourceSession}
		}
		s.logger.Warn("session cookies not found, falling back",
			logging.String("session_id", sessionID))
	}
	if s.sharedPath != "" && fileExists(s.sharedPath) {
		return Resolved{Path: s.sharedPath, Source: SourceShared}
	}
	return Resolved{Source: SourceNone}
}

// Alternate returns a different credential to retry an authentication failure
// with, and reports whether one exists. Session cookies fall back to the
// shared file; anything else has no alternate.
func (s *Store) Alternate(used Resolved) (Resolved, bool) {
	if used.Source == SourceSession && s.sharedPath != "" && fileExists(s.sharedPath) {
		return Resolved{Path: s.sharedPath, Source: SourceShared}, true
	}
	return Resolved{Source: SourceNone}, false
}

// Delete removes a session's cookie file. Missing files are not an error.
func (s *Store) Delete(sessionID string) error {
	err := os.Remove(s.sessionPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return services.Wrap(services.ErrConfiguration, "credentials", "delete", "remove cookie file", err)
	}
	return nil
}

func (s *Store) sessionPath(sessionID string) string {
	// The session ID is a UUID we minted; sanitize anyway before touching disk.
	safe := filepath.Base(strings.ReplaceAll(sessionID, string(os.PathSeparator), "_"))
	return filepath.Join(s.dir, safe+".cookies.txt")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
