// Package cos provides common low-level types and utilities shared across
// the dtnd packages.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"unsafe"

	"github.com/NVIDIA/aistore/cmn/atomic"
	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

const (
	// alphabet for generating short IDs, similar to shortid.DEFAULT_ABC
	// NOTE: len(uuidABC) > 0x3f - see GenTie()
	uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

	letterRunes    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	letterIdxBits  = 6
	letterIdxMask  = 1<<letterIdxBits - 1
	lenLetterRunes = len(letterRunes)

	MLCG32 = 2659330067 // seed for xxhash.Checksum64S, arbitrary odd constant
)

const (
	LenShortID  = 9 // short-ID length, per https://github.com/teris-io/shortid#id-length
	lenNodeID   = 8 // min length, via cryptographic rand
	lenPeerHash = 13

	tooLongID = 32
)

const (
	mayOnlyContain = "may only contain letters, numbers, dashes (-), underscores (_)"
	OnlyNice       = "must be less than 32 characters and " + mayOnlyContain
	OnlyPlus       = mayOnlyContain + ", and dots (.)"
)

var (
	sid  *shortid.Shortid
	rtie atomic.Uint32
)

func InitShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, seed)
}

//
// session / contact tokens
//

// GenUUID returns a fresh short, URL-safe token. Used for API-adapter
// session identifiers (§4.9) and opportunistic contact IDs (§4.4).
func GenUUID() (uuid string) {
	var h, t string
	uuid = sid.MustGenerate()
	if !isAlpha(uuid[0]) {
		tie := int(rtie.Add(1))
		h = string(rune('A' + tie%26))
	}
	c := uuid[len(uuid)-1]
	if c == '-' || c == '_' {
		tie := int(rtie.Add(1))
		t = string(rune('a' + tie%26))
	}
	return h + uuid + t
}

// GenBEID is a "best-effort ID": independently and locally derive a
// globally-unique-enough identifier from a numeric seed (e.g. a hash),
// with no coordination. Used where GenUUID's randomness source isn't
// available (fake-clock tests) or a value needs to be reproducible from
// its seed.
func GenBEID(val uint64, l int) string {
	b := make([]byte, l)
	for i := range l {
		idx := int(val & letterIdxMask)
		if idx >= lenLetterRunes {
			idx -= lenLetterRunes
		}
		b[i] = letterRunes[idx]
		val >>= letterIdxBits
	}
	return string(b)
}

func IsValidUUID(uuid string) bool {
	return len(uuid) >= LenShortID && IsAlphaNice(uuid)
}

//
// Node ID
//

func GenNodeID() string { return CryptoRandS(lenNodeID) }

func ValidateNodeID(id string) error {
	if len(id) < lenNodeID {
		return fmt.Errorf("node ID %q is too short", id)
	}
	if !IsAlphaNice(id) {
		return fmt.Errorf("node ID %q is invalid: "+OnlyNice, id)
	}
	return nil
}

// HashPeerID derives a stable, short identifier from a discovered peer's
// platform name (e.g. a Kubernetes Service/Endpoints name) that is safe to
// use as a link name: a base-36 xxhash digest without a leading digit,
// padded to lenPeerHash characters when shorter.
func HashPeerID(name string) (id string) {
	digest := xxhash.Checksum64S(UnsafeB(name), MLCG32)
	id = strconv.FormatUint(digest, 36)
	if id[0] >= '0' && id[0] <= '9' {
		id = id[1:]
	}
	if l := lenPeerHash - len(id); l > 0 {
		return GenBEID(digest, l) + id
	}
	return id
}

// GenTestingNodeID generates a short deterministic-suffix node ID for test
// fixtures (multi-node simulations in package tests).
func GenTestingNodeID(suffix string) string {
	l := max(lenNodeID-len(suffix), 3)
	return CryptoRandS(l) + suffix
}

//
// utility functions
//

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// letters and numbers w/ '-' and '_' permitted with limitations (see OnlyNice const)
func IsAlphaNice(s string) bool {
	l := len(s)
	if l > tooLongID {
		return false
	}
	for i := range l {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') {
			continue
		}
		if c != '-' && c != '_' {
			return false
		}
		if i == 0 || i == l-1 {
			return false
		}
	}
	return true
}

// alpha-numeric++ including letters, numbers, dashes (-), and underscores (_)
// period (.) is allowed except for '..' (OnlyPlus const)
func CheckAlphaPlus(s, tag string) error {
	const tooLongName = 64
	l := len(s)
	if l > tooLongName {
		return fmt.Errorf("%s is too long: %d > %d(max length)", tag, l, tooLongName)
	}
	for i := range l {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		if c != '.' {
			return errors.New(tag + " is invalid: " + OnlyPlus)
		}
		if i < l-1 && s[i+1] == '.' {
			return errors.New(tag + " is invalid: " + OnlyPlus)
		}
	}
	return nil
}

// GenTie is a 3-letter tie breaker (fast, lock-free).
func GenTie() string {
	tie := rtie.Add(1)
	b0 := uuidABC[tie&0x3f]
	b1 := uuidABC[-tie&0x3f]
	b2 := uuidABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}

// CryptoRandS returns a cryptographically-random alphanumeric string of
// length l.
func CryptoRandS(l int) string {
	b := make([]byte, l)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively unrecoverable (broken entropy
		// source); fall back to the rtie counter rather than panic.
		for i := range b {
			b[i] = byte(rtie.Add(1))
		}
	}
	out := make([]byte, l)
	for i, c := range b {
		out[i] = letterRunes[int(c)&letterIdxMask%lenLetterRunes]
	}
	return string(out)
}

// UnsafeB/UnsafeS avoid a copy when hashing strings/byte-slices that are
// not retained past the call.
func UnsafeB(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func UnsafeS(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}
