package store

import (
	"fmt"
	"strings"
	"unicode"

	citeerrors "github.com/citewise/citewise/internal/errors"
)

// ValidateSourceName rejects source names that cannot safely identify a
// document: empty or over-long names, path separators, and quote, backslash,
// NUL, or other control characters. Source names are always bound as SQL
// parameters; this check keeps hostile names out of the index in the first
// place and out of log lines and file paths derived from them.
func ValidateSourceName(source string) error {
	if source == "" {
		return citeerrors.InvalidSourceName("source name must not be empty")
	}
	if len(source) > MaxSourceLen {
		return citeerrors.InvalidSourceName(
			fmt.Sprintf("source name exceeds %d bytes", MaxSourceLen))
	}
	if strings.ContainsAny(source, `"'`+"`\\\x00") {
		return citeerrors.InvalidSourceName(
			fmt.Sprintf("source name %q contains a forbidden character", source))
	}
	if strings.ContainsAny(source, "/\\") || source == "." || source == ".." {
		return citeerrors.InvalidSourceName(
			fmt.Sprintf("source name %q must be a base name without path separators", source))
	}
	for _, r := range source {
		if unicode.IsControl(r) {
			return citeerrors.InvalidSourceName(
				fmt.Sprintf("source name %q contains a control character", source))
		}
	}
	return nil
}
