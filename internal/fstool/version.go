package fstool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrParse marks tool version output that does not contain the expected
// "<tool> version <number>" phrase. There is no meaningful fallback value,
// so callers get the error.
var ErrParse = errors.New("version parse error")

// Version is a comparable dotted version number, e.g. 5.4.0.
type Version []int

// ParseVersion extracts tool's version from its banner output. The banner
// must contain "<tool> version <dotted-number>".
func ParseVersion(tool, output string) (Version, error) {
	re := regexp.MustCompile(regexp.QuoteMeta(tool) + ` version ([\d.]+)`)
	m := re.FindStringSubmatch(output)
	if len(m) != 2 {
		return nil, fmt.Errorf("%w: no '%s version' phrase in %q", ErrParse, tool, strings.TrimSpace(output))
	}
	parts := strings.Split(strings.Trim(m[1], "."), ".")
	v := make(Version, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed version number %q", ErrParse, m[1])
		}
		v = append(v, n)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty version number in %q", ErrParse, strings.TrimSpace(output))
	}
	return v, nil
}

// Version queries tool's banner with -V and parses the reported version.
// Some tools print the banner and exit non-zero, so the exit code is
// ignored; only the banner content matters.
func (t *Tool) Version(ctx context.Context, tool string) (Version, error) {
	res, err := t.runner.Run(ctx, tool, "-V")
	if err != nil {
		return nil, err
	}
	out := res.Stdout
	if strings.TrimSpace(out) == "" {
		out = res.Stderr
	}
	return ParseVersion(tool, out)
}

// Compare returns -1, 0, or 1 as v is ordered before, equal to, or after
// other. Missing segments compare as zero, so 5.4 equals 5.4.0.
func (v Version) Compare(other Version) int {
	n := len(v)
	if len(other) > n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(v) {
			a = v[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// LessThan reports whether v is ordered before other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}
