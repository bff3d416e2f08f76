// Package eid implements Endpoint Identifiers.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package eid_test

import (
	"encoding/json"
	"testing"

	"github.com/NVIDIA/aistore/eid"
)

func TestParseCanonicalizesScheme(t *testing.T) {
	e, err := eid.Parse("DTN://Node7/app")
	if err != nil {
		t.Fatal(err)
	}
	if e.Scheme() != "dtn" {
		t.Fatalf("scheme not lower-cased: %q", e.Scheme())
	}
	if e.String() != "dtn://Node7/app" {
		t.Fatalf("unexpected canonical form: %q", e.String())
	}
}

func TestParseStripsTrailingSlash(t *testing.T) {
	e, err := eid.Parse("dtn://node7/app/")
	if err != nil {
		t.Fatal(err)
	}
	if e.SSP() != "node7/app" {
		t.Fatalf("trailing slash not stripped: %q", e.SSP())
	}
}

func TestParseKeepsRootSlash(t *testing.T) {
	e, err := eid.Parse("dtn://")
	if err != nil {
		t.Fatal(err)
	}
	if e.SSP() != "/" {
		t.Fatalf("expected root SSP, got %q", e.SSP())
	}
}

func TestEqualIsExact(t *testing.T) {
	a, _ := eid.Parse("dtn://node7/app")
	b, _ := eid.Parse("dtn://node7/app")
	c, _ := eid.Parse("dtn://node8/app")
	if !a.Equal(b) {
		t.Fatal("identical EIDs should be equal")
	}
	if a.Equal(c) {
		t.Fatal("distinct EIDs should not be equal")
	}
}

func TestNullEID(t *testing.T) {
	n, err := eid.Parse("dtn:none")
	if err != nil {
		t.Fatal(err)
	}
	if !n.IsNull() {
		t.Fatalf("dtn:none should parse as Null, got %q", n.String())
	}
}

func TestMatchWildcardSuffix(t *testing.T) {
	pattern, _ := eid.New("dtn", "node7/*")
	in, _ := eid.New("dtn", "node7/app")
	out, _ := eid.New("dtn", "node8/app")
	if !in.Match(pattern) {
		t.Fatal("expected wildcard suffix match")
	}
	if out.Match(pattern) {
		t.Fatal("expected no match across different node")
	}
}

func TestMatchWildcardStar(t *testing.T) {
	pattern, _ := eid.New("dtn", "*")
	any, _ := eid.New("dtn", "node7/app")
	if !any.Match(pattern) {
		t.Fatal("expected bare '*' to match anything under the same scheme")
	}
}

func TestMatchRequiresSameScheme(t *testing.T) {
	pattern, _ := eid.New("dtn", "*")
	other, _ := eid.New("ipn", "7.1")
	if other.Match(pattern) {
		t.Fatal("different schemes must never match")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	e, _ := eid.Parse("dtn://node7/app")
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var back eid.EID
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(e) {
		t.Fatalf("round trip mismatch: %q vs %q", back, e)
	}
}

func TestParseRejectsMissingScheme(t *testing.T) {
	if _, err := eid.Parse("no-scheme-here"); err == nil {
		t.Fatal("expected error for missing scheme")
	}
}

func TestValidateRejectsZeroValue(t *testing.T) {
	var z eid.EID
	if err := z.Validate(); err == nil {
		t.Fatal("expected zero-value EID to fail validation")
	}
}
