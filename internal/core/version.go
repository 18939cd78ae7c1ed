package core

import (
	"regexp"
	"strconv"
	"strings"
)

// versionPattern accepts 1 to 4 numeric groups separated by '.' or '-'.
var versionPattern = regexp.MustCompile(`^(\d+)(?:[.-](\d+))?(?:[.-](\d+))?(?:[.-](\d+))?$`)

// Ordering is the result of comparing two versions.
// Versions are only partially ordered, so Incomparable is a valid outcome.
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
	Incomparable
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "incomparable"
	}
}

// Version is a build number such as "5.2.1-7033".
// Any string is accepted; grammar is checked when comparing.
type Version string

// ParseVersion never fails. Use Valid to check the grammar.
func ParseVersion(s string) Version {
	return Version(strings.TrimSpace(s))
}

func (v Version) String() string {
	return string(v)
}

// IsZero reports whether no version was given.
func (v Version) IsZero() bool {
	return v == ""
}

// Valid reports whether v matches the numeric group grammar.
func (v Version) Valid() bool {
	_, ok := v.groups()
	return ok
}

// groups returns the four zero-padded numeric groups of v.
func (v Version) groups() ([4]uint64, bool) {
	var out [4]uint64
	m := versionPattern.FindStringSubmatch(string(v))
	if m == nil {
		return out, false
	}
	for i, g := range m[1:] {
		if g == "" {
			continue
		}
		n, err := strconv.ParseUint(g, 10, 64)
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

// Compare orders v against other group by group.
func (v Version) Compare(other Version) Ordering {
	a, ok := v.groups()
	if !ok {
		return Incomparable
	}
	b, ok := other.groups()
	if !ok {
		return Incomparable
	}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return Less
		case a[i] > b[i]:
			return Greater
		}
	}
	return Equal
}

// Equal reports numeric equality. Incomparable versions are never equal.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == Equal
}
