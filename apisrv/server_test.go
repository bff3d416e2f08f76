// Package apisrv is the API Adapter.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package apisrv_test

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/NVIDIA/aistore/apisrv"
	"github.com/NVIDIA/aistore/config"
	"github.com/NVIDIA/aistore/daemon"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/hk"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T) (*apisrv.Server, net.Conn) {
	t.Helper()
	h := hk.New()
	go h.Run()
	h.WaitStarted()
	t.Cleanup(h.Stop)

	local, _ := eid.Parse("dtn://node1/")
	ctx := daemon.NewContext(local, nil, h, config.Defaults())
	m := daemon.NewMetrics(prometheus.NewRegistry())
	d := daemon.New(ctx, m)
	go d.Run()

	auth := apisrv.NewAuthenticator([]byte("test-secret"), false)
	srv := apisrv.New(d, auth)
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func doHandshake(t *testing.T, conn net.Conn) {
	t.Helper()
	if err := apisrv.WriteHandshake(conn, apisrv.Handshake{Magic: apisrv.SessionMagic, Version: apisrv.Version}); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	if _, err := apisrv.ReadHandshake(conn); err != nil {
		t.Fatalf("read handshake ack: %v", err)
	}
}

func call(t *testing.T, conn net.Conn, typ apisrv.MsgType, req, resp any) apisrv.Code {
	t.Helper()
	if err := apisrv.WriteMessage(conn, typ, req); err != nil {
		t.Fatalf("write message: %v", err)
	}
	rtyp, body, err := apisrv.ReadMessage(conn)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if rtyp != apisrv.MsgResponse {
		t.Fatalf("expected MsgResponse, got %v", rtyp)
	}
	var r apisrv.Response
	if err := json.Unmarshal(body, &r); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if r.Code == apisrv.SUCCESS && resp != nil && len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, resp); err != nil {
			t.Fatalf("unmarshal response data: %v", err)
		}
	}
	return r.Code
}

func TestSessionLifecycleOverTheWire(t *testing.T) {
	_, conn := newTestServer(t)
	doHandshake(t, conn)

	var openResp apisrv.OpenResp
	if code := call(t, conn, apisrv.MsgOpen, nil, &openResp); code != apisrv.SUCCESS {
		t.Fatalf("open: code %v", code)
	}
	if openResp.SessionID == "" {
		t.Fatal("expected a non-empty session id")
	}

	if code := call(t, conn, apisrv.MsgClose, apisrv.CloseReq{SessionID: openResp.SessionID}, nil); code != apisrv.SUCCESS {
		t.Fatalf("close: code %v", code)
	}
}

func TestRegisterBindRecvOverTheWire(t *testing.T) {
	_, conn := newTestServer(t)
	doHandshake(t, conn)

	var openResp apisrv.OpenResp
	call(t, conn, apisrv.MsgOpen, nil, &openResp)

	var regResp apisrv.RegisterResp
	code := call(t, conn, apisrv.MsgRegister, apisrv.RegisterReq{
		SessionID: openResp.SessionID, Pattern: "dtn://node1/*", Action: 1,
	}, &regResp)
	if code != apisrv.SUCCESS {
		t.Fatalf("register: code %v", code)
	}

	if code := call(t, conn, apisrv.MsgBind, apisrv.BindReq{SessionID: openResp.SessionID, RegID: regResp.RegID}, nil); code != apisrv.SUCCESS {
		t.Fatalf("bind: code %v", code)
	}

	var recvResp apisrv.RecvResp
	code = call(t, conn, apisrv.MsgRecv, apisrv.RecvReq{SessionID: openResp.SessionID, TimeoutMS: 0}, &recvResp)
	if code != apisrv.ENOTFOUND {
		t.Fatalf("expected ENOTFOUND for an empty recv, got %v", code)
	}
}

func TestSendToUnroutableDestinationOverTheWire(t *testing.T) {
	_, conn := newTestServer(t)
	doHandshake(t, conn)

	var openResp apisrv.OpenResp
	call(t, conn, apisrv.MsgOpen, nil, &openResp)

	code := call(t, conn, apisrv.MsgSend, apisrv.SendReq{
		SessionID: openResp.SessionID, Dest: "dtn://nowhere/x", Payload: []byte("hi"),
	}, nil)
	if code != apisrv.EINVAL {
		t.Fatalf("expected EINVAL for an unroutable destination, got %v", code)
	}
}

func TestParamSetGetDumpOverTheWire(t *testing.T) {
	_, conn := newTestServer(t)
	doHandshake(t, conn)

	code := call(t, conn, apisrv.MsgParamSet, apisrv.ParamSetReq{Key: "busy_queue_depth", Value: "128"}, nil)
	if code != apisrv.SUCCESS {
		t.Fatalf("param set: code %v", code)
	}

	var getResp apisrv.ParamGetResp
	code = call(t, conn, apisrv.MsgParamGet, apisrv.ParamGetReq{Key: "busy_queue_depth"}, &getResp)
	if code != apisrv.SUCCESS {
		t.Fatalf("param get: code %v", code)
	}
	if getResp.Value != "128" {
		t.Fatalf("expected busy_queue_depth=128 after set, got %s", getResp.Value)
	}

	var dumpResp apisrv.ParamDumpResp
	code = call(t, conn, apisrv.MsgParamDump, nil, &dumpResp)
	if code != apisrv.SUCCESS {
		t.Fatalf("param dump: code %v", code)
	}
	if dumpResp.Values["busy_queue_depth"] != "128" {
		t.Fatalf("expected dump to reflect the prior set, got %s", dumpResp.Values["busy_queue_depth"])
	}
}

func TestParamSetRejectsUnknownKeyOverTheWire(t *testing.T) {
	_, conn := newTestServer(t)
	doHandshake(t, conn)

	code := call(t, conn, apisrv.MsgParamSet, apisrv.ParamSetReq{Key: "not_a_tunable", Value: "1"}, nil)
	if code != apisrv.EINVAL {
		t.Fatalf("expected EINVAL for an unknown tunable, got %v", code)
	}
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	h := hk.New()
	go h.Run()
	h.WaitStarted()
	defer h.Stop()
	local, _ := eid.Parse("dtn://node1/")
	ctx := daemon.NewContext(local, nil, h, config.Defaults())
	m := daemon.NewMetrics(prometheus.NewRegistry())
	d := daemon.New(ctx, m)
	go d.Run()

	auth := apisrv.NewAuthenticator([]byte("secret"), true)
	srv := apisrv.New(d, auth)
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve()
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	apisrv.WriteHandshake(conn, apisrv.Handshake{Magic: apisrv.SessionMagic, Version: apisrv.Version})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := apisrv.ReadHandshake(conn); err != nil {
		t.Fatalf("expected a handshake ack even on auth failure, got: %v", err)
	}
	if _, _, err := apisrv.ReadMessage(conn); err == nil {
		t.Fatal("expected the connection to be closed after a failed auth handshake")
	}
}
