// Package apisrv is the API Adapter.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package apisrv_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/NVIDIA/aistore/apisrv"
)

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := apisrv.Handshake{Magic: apisrv.SessionMagic, Version: apisrv.Version, Token: "tok"}
	if err := apisrv.WriteHandshake(&buf, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := apisrv.ReadHandshake(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestReadHandshakeBadMagic(t *testing.T) {
	var buf bytes.Buffer
	apisrv.WriteHandshake(&buf, apisrv.Handshake{Magic: 0xdeadbeef, Version: apisrv.Version})
	if _, err := apisrv.ReadHandshake(&buf); err == nil {
		t.Fatal("expected an error for a bad session magic")
	}
}

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	type payload struct{ X int }
	if err := apisrv.WriteMessage(&buf, apisrv.MsgRegister, payload{X: 7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	typ, body, err := apisrv.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != apisrv.MsgRegister {
		t.Fatalf("expected MsgRegister, got %v", typ)
	}
	var got payload
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.X != 7 {
		t.Fatalf("expected X=7, got %d", got.X)
	}
}
