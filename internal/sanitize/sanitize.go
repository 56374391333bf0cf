// Package sanitize provides functions for sanitizing identifiers for safe
// filesystem use.
package sanitize

import "strings"

// Name converts a job or user identifier into a filesystem-safe path
// component. Job IDs are caller-supplied and may contain "/", which would
// otherwise be interpreted as a directory separator when building report
// and log paths.
func Name(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}
