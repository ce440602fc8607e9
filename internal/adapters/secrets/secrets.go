// Package secrets resolves the proxy's upstream secret without ever handing
// it to the browser-facing side.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNoSecret = errors.New("no upstream secret configured")

// Resolve returns the upstream secret: an explicit value wins, otherwise the
// secret is read from secretFile. Values are trimmed so a trailing newline in
// a mounted secret file does not poison the Authorization header.
func Resolve(value, secretFile string) (string, error) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed, nil
	}
	if secretFile == "" {
		return "", ErrNoSecret
	}

	data, err := os.ReadFile(secretFile)
	if err != nil {
		return "", fmt.Errorf("read secret file %q: %w", secretFile, err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", fmt.Errorf("secret file %q is empty", secretFile)
	}
	return trimmed, nil
}
