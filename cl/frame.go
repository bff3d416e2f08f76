// Package cl implements the connection-oriented convergence-layer
// framework shared by every stream transport driver: contact header
// exchange, block framing, cumulative acks, keepalives, backpressure and
// reactive fragmentation (§4.5). Concrete drivers (tcpcl, httpcl) supply
// only the dial/accept and the underlying io.ReadWriteCloser.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package cl

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/NVIDIA/aistore/bpcodec"
)

// FrameType is the one-byte type tag leading every frame (§4.5 "Message
// framing").
type FrameType byte

const (
	StartBundle FrameType = iota + 1
	DataBlock
	AckBlock
	Keepalive
	Shutdown
)

// ContactHeaderMagic identifies a dtn peer at connection establishment.
const ContactHeaderMagic = "dtn!"

const contactHeaderVersion byte = 1

// ContactHeaderFlags.
const (
	FlagBlockAckEnabled uint8 = 1 << iota
	FlagReactiveFragEnabled
)

// ContactHeader is the fixed header exchanged immediately after the socket
// is established (§4.5 "Contact header").
type ContactHeader struct {
	Version          byte
	Flags            uint8
	KeepaliveSeconds uint16
}

var ErrBadMagic = errors.New("cl: bad contact header magic")

// WriteContactHeader writes the fixed contact header to w.
func WriteContactHeader(w io.Writer, h ContactHeader) error {
	var buf [4 + 1 + 1 + 2]byte
	copy(buf[0:4], ContactHeaderMagic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], h.KeepaliveSeconds)
	_, err := w.Write(buf[:])
	return err
}

// ReadContactHeader reads and validates the fixed contact header from r.
func ReadContactHeader(r io.Reader) (ContactHeader, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ContactHeader{}, err
	}
	if string(buf[0:4]) != ContactHeaderMagic {
		return ContactHeader{}, ErrBadMagic
	}
	return ContactHeader{
		Version:          buf[4],
		Flags:            buf[5],
		KeepaliveSeconds: binary.BigEndian.Uint16(buf[6:8]),
	}, nil
}

// WriteFrame writes a type tag and the frame body: nothing for KEEPALIVE
// and SHUTDOWN; for START_BUNDLE and ACK_BLOCK the body as given (one
// SDNV value: total length or cumulative ack offset); for DATA_BLOCK an
// SDNV length prefix followed by the body bytes.
func WriteFrame(w io.Writer, typ FrameType, body []byte) error {
	if _, err := w.Write([]byte{byte(typ)}); err != nil {
		return err
	}
	switch typ {
	case Keepalive, Shutdown:
		return nil
	case StartBundle, AckBlock:
		_, err := w.Write(body)
		return err
	default:
		if _, err := w.Write(bpcodec.EncodeSDNV(nil, uint64(len(body)))); err != nil {
			return err
		}
		_, err := w.Write(body)
		return err
	}
}

// ReadFrameType reads just the one-byte type tag.
func ReadFrameType(r io.Reader) (FrameType, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return FrameType(b[0]), nil
}

// ReadSDNV reads one SDNV integer byte-by-byte from r (frame lengths and
// ack offsets are not pre-sized, so they are read incrementally rather
// than decoded from a pre-read buffer as bpcodec.DecodeSDNV expects).
func ReadSDNV(r io.Reader) (uint64, error) {
	var v uint64
	var b [1]byte
	for i := 0; ; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		v = (v << 7) | uint64(b[0]&0x7f)
		if b[0]&0x80 == 0 {
			return v, nil
		}
		if i == 9 {
			return 0, errors.New("cl: SDNV overflow")
		}
	}
}

// ReadBody reads exactly n bytes.
func ReadBody(r io.Reader, n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
