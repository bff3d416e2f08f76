// Wire framing for the loopback API session (§4.9, §6 "API wire
// surface"): a one-time handshake, then length-prefixed request/response
// messages, each a 4-byte type code + 4-byte length + payload.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package apisrv

import (
	"encoding/binary"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// SessionMagic identifies a well-formed handshake; Version is the wire
// protocol version this package speaks.
const (
	SessionMagic uint32 = 0x44544e31 // "DTN1"
	Version      uint32 = 1
)

// MaxMessageLen bounds a single request/response payload (§5 resource
// limits apply at the wire layer too, to bound ESIZE rejections cleanly).
const MaxMessageLen = 16 << 20

// MsgType enumerates the call types (§4.9) plus the handshake and the
// generic response.
type MsgType uint32

const (
	MsgOpen MsgType = iota + 1
	MsgClose
	MsgLocalEID
	MsgRegister
	MsgUnregister
	MsgFindRegistration
	MsgBind
	MsgSend
	MsgRecv
	MsgBeginPoll
	MsgCancelPoll
	MsgParamSet
	MsgParamGet
	MsgParamDump
	MsgResponse
)

// Handshake is the session-establishment message: a session_magic/version
// pair plus an optional bearer token (§4.9 expansion, gated by
// require_auth).
type Handshake struct {
	Magic   uint32
	Version uint32
	Token   string
}

func WriteHandshake(w io.Writer, h Handshake) error {
	body, err := jsoniter.Marshal(h)
	if err != nil {
		return fmt.Errorf("apisrv: marshal handshake: %w", err)
	}
	return writeFrame(w, uint32(0), body)
}

func ReadHandshake(r io.Reader) (Handshake, error) {
	var h Handshake
	_, body, err := readFrame(r)
	if err != nil {
		return h, err
	}
	if err := jsoniter.Unmarshal(body, &h); err != nil {
		return h, fmt.Errorf("apisrv: unmarshal handshake: %w", err)
	}
	if h.Magic != SessionMagic {
		return h, fmt.Errorf("apisrv: bad session magic %#x", h.Magic)
	}
	return h, nil
}

// WriteMessage/ReadMessage carry one request or response: type code,
// length, JSON payload.
func WriteMessage(w io.Writer, typ MsgType, v any) error {
	body, err := jsoniter.Marshal(v)
	if err != nil {
		return fmt.Errorf("apisrv: marshal message: %w", err)
	}
	return writeFrame(w, uint32(typ), body)
}

func ReadMessage(r io.Reader) (MsgType, []byte, error) {
	typ, body, err := readFrame(r)
	return MsgType(typ), body, err
}

func writeFrame(w io.Writer, typ uint32, body []byte) error {
	if len(body) > MaxMessageLen {
		return fmt.Errorf("apisrv: message of %d bytes exceeds %d", len(body), MaxMessageLen)
	}
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], typ)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func readFrame(r io.Reader) (typ uint32, body []byte, err error) {
	var hdr [8]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	typ = binary.BigEndian.Uint32(hdr[0:4])
	length := binary.BigEndian.Uint32(hdr[4:8])
	if length > MaxMessageLen {
		return 0, nil, fmt.Errorf("apisrv: declared length %d exceeds %d", length, MaxMessageLen)
	}
	body = make([]byte, length)
	if _, err = io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return typ, body, nil
}

// Response is the generic envelope every call's reply is wrapped in; Data
// carries the call-specific JSON payload (empty on error).
type Response struct {
	Code Code
	Data []byte
}
