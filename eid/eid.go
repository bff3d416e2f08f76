// Package eid implements Endpoint Identifiers: URI-like addressable names
// for bundle sources, destinations, and registration patterns (§3).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package eid

import (
	"fmt"
	"strings"

	"github.com/NVIDIA/aistore/cmn/cos"
)

// MaxLen is the canonical-form length bound (§3: "≤256 bytes canonical").
const MaxLen = 256

// NullScheme/NullSSP name the distinguished null endpoint, "dtn:none".
const (
	NullScheme = "dtn"
	NullSSP    = "none"
)

// EID is a canonicalized Endpoint Identifier. The zero value is invalid;
// use Parse or New to construct one.
type EID struct {
	scheme string
	ssp    string
}

// Null is the distinguished null EID ("dtn:none").
var Null = EID{scheme: NullScheme, ssp: NullSSP}

// New builds an EID from an already-split scheme and scheme-specific part,
// canonicalizing both.
func New(scheme, ssp string) (EID, error) {
	return canon(scheme, ssp)
}

// Parse canonicalizes a URI-form string ("scheme:ssp" or "scheme://ssp")
// into an EID. Invariant (§3): every stored EID is canonicalized on parse.
func Parse(s string) (EID, error) {
	if len(s) == 0 {
		return EID{}, fmt.Errorf("eid: empty string")
	}
	idx := strings.IndexByte(s, ':')
	if idx <= 0 {
		return EID{}, fmt.Errorf("eid: %q has no scheme", s)
	}
	return canon(s[:idx], s[idx+1:])
}

func canon(scheme, ssp string) (EID, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" {
		return EID{}, fmt.Errorf("eid: empty scheme")
	}
	for i := range len(scheme) {
		c := scheme[i]
		isAlnum := (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
		if !isAlnum && c != '+' && c != '-' && c != '.' {
			return EID{}, fmt.Errorf("eid: invalid scheme %q", scheme)
		}
	}
	// strip a leading "//" authority marker; canonical form keeps it implicit
	ssp = strings.TrimPrefix(ssp, "//")
	if ssp != "/" && len(ssp) > 1 {
		ssp = strings.TrimSuffix(ssp, "/")
	}
	if ssp == "" {
		ssp = "/"
	}
	e := EID{scheme: scheme, ssp: ssp}
	if len(e.String()) > MaxLen {
		return EID{}, fmt.Errorf("eid: canonical form exceeds %d bytes", MaxLen)
	}
	return e, nil
}

func (e EID) Scheme() string { return e.scheme }
func (e EID) SSP() string    { return e.ssp }
func (e EID) IsZero() bool   { return e.scheme == "" }

// String renders the canonical "scheme://ssp" form.
func (e EID) String() string {
	if e.scheme == "" {
		return ""
	}
	if e.ssp == "/" {
		return e.scheme + "://"
	}
	return e.scheme + "://" + e.ssp
}

// Equal is exact EID equality (§3).
func (e EID) Equal(o EID) bool { return e.scheme == o.scheme && e.ssp == o.ssp }

func (e EID) IsNull() bool { return e.Equal(Null) }

// Local returns the per-node local EID for a given node identifier, e.g.
// Local("dtn", "node7") == dtn://node7.
func Local(scheme, node string) (EID, error) { return New(scheme, node) }

// Match reports whether this EID (concrete) matches a pattern EID. The
// scheme must agree exactly; the SSP matches under the scheme's wildcard
// rule (§3): a pattern SSP of "*" matches any SSP; a pattern SSP ending in
// "/*" matches any concrete SSP sharing that prefix; otherwise SSP must
// match exactly.
func (e EID) Match(pattern EID) bool {
	if e.scheme != pattern.scheme {
		return false
	}
	return matchSSP(pattern.ssp, e.ssp)
}

func matchSSP(pattern, ssp string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "/*"):
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(ssp, prefix) || ssp+"/" == prefix
	default:
		return pattern == ssp
	}
}

// IsWildcard reports whether this EID, used as a pattern, contains a
// wildcard in its scheme-specific part.
func (e EID) IsWildcard() bool {
	return e.ssp == "*" || strings.HasSuffix(e.ssp, "/*")
}

func (e EID) Validate() error {
	if e.IsZero() {
		return fmt.Errorf("eid: zero value")
	}
	if len(e.String()) > MaxLen {
		return fmt.Errorf("eid: canonical form exceeds %d bytes", MaxLen)
	}
	return nil
}

// MarshalJSON/UnmarshalJSON let EID participate directly in the
// json-iterator-encoded descriptors returned by the API adapter (§4.9).
func (e EID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + e.String() + `"`), nil
}

func (e *EID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(cos.UnsafeS(b), `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
