// Server: accepts loopback connections, frames sessions, and turns each
// request into a daemon.Event pushed via PostSync (§4.9).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package apisrv

import (
	"net"
	"time"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/cmn/nlog"
	"github.com/NVIDIA/aistore/daemon"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/reg"
	jsoniter "github.com/json-iterator/go"
)

func actionFromWire(v uint8) reg.FailureAction { return reg.FailureAction(v) }

// Server is the API Adapter's loopback listener.
type Server struct {
	d        *daemon.Daemon
	auth     *Authenticator
	listener net.Listener
}

func New(d *daemon.Daemon, auth *Authenticator) *Server {
	return &Server{d: d, auth: auth}
}

func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until the listener closes, one goroutine per
// session (§5 "CL worker threads" applies the same one-goroutine-per-
// connection shape to API sessions).
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	hs, err := ReadHandshake(conn)
	if err != nil {
		nlog.Warningf("apisrv: handshake: %v", err)
		return
	}
	if hs.Version != Version {
		nlog.Warningf("apisrv: unsupported client version %d", hs.Version)
		return
	}
	if err := s.auth.Verify(hs.Token); err != nil {
		nlog.Warningf("apisrv: auth: %v", err)
		WriteHandshake(conn, Handshake{Magic: SessionMagic, Version: Version})
		return
	}
	if err := WriteHandshake(conn, Handshake{Magic: SessionMagic, Version: Version}); err != nil {
		return
	}

	for {
		typ, body, err := ReadMessage(conn)
		if err != nil {
			return // connection closed or malformed frame; session over
		}
		resp := s.dispatch(typ, body)
		if err := WriteMessage(conn, MsgResponse, resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(typ MsgType, body []byte) Response {
	switch typ {
	case MsgOpen:
		return s.callOpen()
	case MsgClose:
		return s.callClose(body)
	case MsgLocalEID:
		return s.callLocalEID(body)
	case MsgRegister:
		return s.callRegister(body)
	case MsgUnregister:
		return s.callUnregister(body)
	case MsgFindRegistration:
		return s.callFindRegistration(body)
	case MsgBind:
		return s.callBind(body)
	case MsgSend:
		return s.callSend(body)
	case MsgRecv:
		return s.callRecv(body)
	case MsgBeginPoll:
		return s.callBeginPoll(body)
	case MsgCancelPoll:
		return s.callCancelPoll(body)
	case MsgParamSet:
		return s.callParamSet(body)
	case MsgParamGet:
		return s.callParamGet(body)
	case MsgParamDump:
		return s.callParamDump()
	default:
		return errResponse(EINVAL)
	}
}

func errResponse(c Code) Response { return Response{Code: c} }

func jsonResponse(v any) Response {
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return errResponse(ECODEC)
	}
	return Response{Code: SUCCESS, Data: data}
}

func decode(body []byte, v any) bool {
	return jsoniter.Unmarshal(body, v) == nil
}

type OpenResp struct{ SessionID string }

func (s *Server) callOpen() Response {
	res, err := s.d.PostSync(&daemon.Event{Kind: daemon.EvOpen})
	if err != nil {
		return errResponse(codeFor(err))
	}
	return jsonResponse(OpenResp{SessionID: res.(string)})
}

type CloseReq struct{ SessionID string }

func (s *Server) callClose(body []byte) Response {
	var req CloseReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	s.d.PostSync(&daemon.Event{Kind: daemon.EvClose, SessionID: req.SessionID})
	return Response{Code: SUCCESS}
}

type LocalEIDReq struct {
	SessionID string
	Tag       string
}
type LocalEIDResp struct{ EID string }

func (s *Server) callLocalEID(body []byte) Response {
	var req LocalEIDReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	res, err := s.d.PostSync(&daemon.Event{Kind: daemon.EvLocalEID, SessionID: req.SessionID, Tag: req.Tag})
	if err != nil {
		return errResponse(codeFor(err))
	}
	return jsonResponse(LocalEIDResp{EID: res.(eid.EID).String()})
}

type RegisterReq struct {
	SessionID string
	Pattern   string
	Action    uint8
}
type RegisterResp struct{ RegID uint32 }

func (s *Server) callRegister(body []byte) Response {
	var req RegisterReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	pattern, err := eid.Parse(req.Pattern)
	if err != nil {
		return errResponse(EINVAL)
	}
	res, derr := s.d.PostSync(&daemon.Event{Kind: daemon.EvRegister, SessionID: req.SessionID, Pattern: pattern, Action: actionFromWire(req.Action)})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	return jsonResponse(RegisterResp{RegID: res.(uint32)})
}

type UnregisterReq struct {
	SessionID string
	RegID     uint32
}

func (s *Server) callUnregister(body []byte) Response {
	var req UnregisterReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	_, derr := s.d.PostSync(&daemon.Event{Kind: daemon.EvUnregister, SessionID: req.SessionID, RegID: req.RegID})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	return Response{Code: SUCCESS}
}

type FindRegistrationReq struct {
	SessionID string
	EID       string
}
type FindRegistrationResp struct{ RegID uint32 }

func (s *Server) callFindRegistration(body []byte) Response {
	var req FindRegistrationReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	e, err := eid.Parse(req.EID)
	if err != nil {
		return errResponse(EINVAL)
	}
	res, derr := s.d.PostSync(&daemon.Event{Kind: daemon.EvFindRegistration, SessionID: req.SessionID, Pattern: e})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	return jsonResponse(FindRegistrationResp{RegID: res.(uint32)})
}

type BindReq struct {
	SessionID string
	RegID     uint32
}

func (s *Server) callBind(body []byte) Response {
	var req BindReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	_, derr := s.d.PostSync(&daemon.Event{Kind: daemon.EvBind, SessionID: req.SessionID, RegID: req.RegID})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	return Response{Code: SUCCESS}
}

type SendReq struct {
	SessionID string
	Dest      string
	Payload   []byte
	Opts      uint16
	Lifetime  uint64
	Priority  uint8
}
type SendResp struct{ LocalID uint64 }

func (s *Server) callSend(body []byte) Response {
	var req SendReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	dest, err := eid.Parse(req.Dest)
	if err != nil {
		return errResponse(EINVAL)
	}
	b := &bundle.Bundle{
		Dest:     dest,
		Opts:     bundle.DeliveryOpts(req.Opts),
		Lifetime: req.Lifetime,
		Priority: bundle.Priority(req.Priority),
	}
	res, derr := s.d.PostSync(&daemon.Event{Kind: daemon.EvSend, SessionID: req.SessionID, BundleSpec: b, Payload: req.Payload})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	return jsonResponse(SendResp{LocalID: res.(uint64)})
}

type RecvReq struct {
	SessionID string
	TimeoutMS int64
}
type RecvResp struct {
	Source  string
	Dest    string
	Payload []byte
}

func (s *Server) callRecv(body []byte) Response {
	var req RecvReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	res, derr := s.d.PostSync(&daemon.Event{
		Kind:      daemon.EvRecv,
		SessionID: req.SessionID,
		Timeout:   time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	b := res.(*bundle.Bundle)
	return jsonResponse(RecvResp{Source: b.Source.String(), Dest: b.Dest.String(), Payload: b.Payload.Mem})
}

func (s *Server) callBeginPoll(body []byte) Response {
	var req RecvReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	res, derr := s.d.PostSync(&daemon.Event{
		Kind:      daemon.EvBeginPoll,
		SessionID: req.SessionID,
		Timeout:   time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	b := res.(*bundle.Bundle)
	return jsonResponse(RecvResp{Source: b.Source.String(), Dest: b.Dest.String(), Payload: b.Payload.Mem})
}

type CancelPollReq struct{ SessionID string }

func (s *Server) callCancelPoll(body []byte) Response {
	var req CancelPollReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	s.d.PostSync(&daemon.Event{Kind: daemon.EvCancelPoll, SessionID: req.SessionID})
	return Response{Code: SUCCESS}
}

type ParamSetReq struct {
	Key   string
	Value string
}

func (s *Server) callParamSet(body []byte) Response {
	var req ParamSetReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	_, derr := s.d.PostSync(&daemon.Event{Kind: daemon.EvParamSet, Key: req.Key, Value: req.Value})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	return Response{Code: SUCCESS}
}

type ParamGetReq struct{ Key string }
type ParamGetResp struct{ Value string }

func (s *Server) callParamGet(body []byte) Response {
	var req ParamGetReq
	if !decode(body, &req) {
		return errResponse(ECODEC)
	}
	res, derr := s.d.PostSync(&daemon.Event{Kind: daemon.EvParamGet, Key: req.Key})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	return jsonResponse(ParamGetResp{Value: res.(string)})
}

type ParamDumpResp struct{ Values map[string]string }

func (s *Server) callParamDump() Response {
	res, derr := s.d.PostSync(&daemon.Event{Kind: daemon.EvParamDump})
	if derr != nil {
		return errResponse(codeFor(derr))
	}
	return jsonResponse(ParamDumpResp{Values: res.(map[string]string)})
}
