package sema

import (
	"fmt"
	"strings"
)

// Conformance selects how strictly extensions to the standard are diagnosed.
type Conformance uint8

const (
	// Extensions accepts common extensions such as REAL DO controls silently.
	Extensions Conformance = iota
	// Pedantic warns about nonstandard usage.
	Pedantic
	// Strict reports nonstandard usage as errors.
	Strict
)

func (c Conformance) String() string {
	switch c {
	case Extensions:
		return "extensions"
	case Pedantic:
		return "pedantic"
	case Strict:
		return "strict"
	}
	return "<invalid conformance>"
}

// ParseConformance parses the name of a conformance mode as printed by
// [Conformance.String]. Case is ignored.
func ParseConformance(s string) (Conformance, error) {
	for c := Extensions; c <= Strict; c++ {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown conformance mode %q (want extensions, pedantic or strict)", s)
}

// Options configures a [Checker]. The value is copied into the checker and
// never modified.
type Options struct {
	Conformance Conformance
	// WarnRealDoControls warns about REAL and DOUBLE PRECISION DO controls
	// even when Conformance is Extensions.
	WarnRealDoControls bool
}

// warnNonstandard reports whether nonstandard usage should be diagnosed.
func (o Options) warnNonstandard() bool { return o.Conformance >= Pedantic }
