// Package bpcodec implements the bundle protocol wire codec: SDNV integers,
// primary/extension/payload block framing, status-report encoding, and
// proactive fragmentation/reassembly (§4.1). It has no third-party
// dependencies: the wire format is the interop contract between nodes, so
// it must be byte-exact and is not a place to delegate to a library whose
// framing choices we do not control.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package bpcodec

import "errors"

// ErrSDNVShort is returned by DecodeSDNV when the buffer ends before a
// continuation-terminated encoding is found.
var ErrSDNVShort = errors.New("bpcodec: truncated SDNV")

// ErrSDNVOverflow is returned when a SDNV would not fit in a uint64.
var ErrSDNVOverflow = errors.New("bpcodec: SDNV overflows uint64")

// EncodeSDNV appends the self-delimiting numeric encoding of v to dst: the
// high bit of each byte marks continuation, the low 7 bits carry value,
// most-significant byte first.
func EncodeSDNV(dst []byte, v uint64) []byte {
	var buf [10]byte
	i := len(buf)
	i--
	buf[i] = byte(v & 0x7f)
	v >>= 7
	for v > 0 {
		i--
		buf[i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	return append(dst, buf[i:]...)
}

// SDNVLen returns the encoded length of v without allocating.
func SDNVLen(v uint64) int {
	n := 1
	for v >>= 7; v > 0; v >>= 7 {
		n++
	}
	return n
}

// DecodeSDNV decodes the SDNV at the start of b, returning the value and
// the number of bytes consumed.
func DecodeSDNV(b []byte) (v uint64, consumed int, err error) {
	for i := 0; i < len(b); i++ {
		if i == 9 && b[i]&0x80 != 0 {
			return 0, 0, ErrSDNVOverflow
		}
		if v>>57 != 0 {
			return 0, 0, ErrSDNVOverflow
		}
		v = (v << 7) | uint64(b[i]&0x7f)
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrSDNVShort
}
