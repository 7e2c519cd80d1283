package output

import (
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
)

// Format is a file encoding understood by FileSink.
type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
)

// Ext returns the filename extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// ParseFormats parses a comma separated list such as "json,csv". Duplicates
// are dropped and an empty list yields JSON.
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		f := Format(part)
		if f != JSON && f != CSV {
			return nil, platformerrors.WithContext(
				platformerrors.Newf(platformerrors.CodeInvalidInput, "unknown output format %q", part),
				"format", part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		out = []Format{JSON}
	}
	return out, nil
}

// filename returns base with the format's extension, unless it already has it.
func filename(base string, f Format) string {
	if strings.HasSuffix(strings.ToLower(base), f.Ext()) {
		return base
	}
	return base + f.Ext()
}
