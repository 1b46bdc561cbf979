// Package envutil reads environment variables in the few places that sit
// outside config.Load: logger bootstrap, APP_MODE selection, and the
// report catalog path override. Everything else goes through
// internal/config.
package envutil

import (
	"os"
	"strings"
)

// String returns the trimmed value of name, or def when unset or blank.
func String(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

// Bool parses name as a switch. Unrecognized values fall back to def.
func Bool(name string, def bool) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
