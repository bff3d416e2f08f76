// Client is the loopback API adapter's counterpart for an out-of-process
// caller: dtnadm speaks only this wire protocol, never daemon state
// directly (§6 expansion, "a companion admin CLI talks to it only through
// the API adapter's loopback protocol").
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package apisrv

import (
	"fmt"
	"net"
	"time"
)

// Client holds one open loopback connection and the session it
// negotiated with Open, if any.
type Client struct {
	conn      net.Conn
	SessionID string
}

// Dial connects to addr and performs the session handshake, presenting
// token (empty if the daemon was not started with require_auth).
func Dial(addr, token string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("apisrv: dial %s: %w", addr, err)
	}
	if err := WriteHandshake(conn, Handshake{Magic: SessionMagic, Version: Version, Token: token}); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ReadHandshake(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apisrv: handshake rejected: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// call sends one request and decodes its response's Data into out (if
// non-nil), translating a non-SUCCESS Code into a Go error.
func (c *Client) call(typ MsgType, req, out any) error {
	if err := WriteMessage(c.conn, typ, req); err != nil {
		return err
	}
	respType, body, err := ReadMessage(c.conn)
	if err != nil {
		return fmt.Errorf("apisrv: read response: %w", err)
	}
	if respType != MsgResponse {
		return fmt.Errorf("apisrv: unexpected message type %d", respType)
	}
	var resp Response
	if !decode(body, &resp) {
		return fmt.Errorf("apisrv: malformed response envelope")
	}
	if resp.Code != SUCCESS {
		return fmt.Errorf("apisrv: call failed: code %d", resp.Code)
	}
	if out != nil && len(resp.Data) > 0 {
		if !decode(resp.Data, out) {
			return fmt.Errorf("apisrv: malformed response payload")
		}
	}
	return nil
}

// Open begins a session, recording the returned SessionID for subsequent
// calls made through this Client.
func (c *Client) Open() (string, error) {
	var resp OpenResp
	if err := c.call(MsgOpen, struct{}{}, &resp); err != nil {
		return "", err
	}
	c.SessionID = resp.SessionID
	return resp.SessionID, nil
}

func (c *Client) CloseSession() error {
	return c.call(MsgClose, CloseReq{SessionID: c.SessionID}, nil)
}

func (c *Client) LocalEID(tag string) (string, error) {
	var resp LocalEIDResp
	err := c.call(MsgLocalEID, LocalEIDReq{SessionID: c.SessionID, Tag: tag}, &resp)
	return resp.EID, err
}

func (c *Client) Register(pattern string, action uint8) (uint32, error) {
	var resp RegisterResp
	err := c.call(MsgRegister, RegisterReq{SessionID: c.SessionID, Pattern: pattern, Action: action}, &resp)
	return resp.RegID, err
}

func (c *Client) Unregister(regID uint32) error {
	return c.call(MsgUnregister, UnregisterReq{SessionID: c.SessionID, RegID: regID}, nil)
}

func (c *Client) FindRegistration(eid string) (uint32, error) {
	var resp FindRegistrationResp
	err := c.call(MsgFindRegistration, FindRegistrationReq{SessionID: c.SessionID, EID: eid}, &resp)
	return resp.RegID, err
}

func (c *Client) Bind(regID uint32) error {
	return c.call(MsgBind, BindReq{SessionID: c.SessionID, RegID: regID}, nil)
}

// Send submits one bundle for forwarding, returning the router's local
// assigned ID.
func (c *Client) Send(dest string, payload []byte, opts uint16, lifetime uint64, priority uint8) (uint64, error) {
	var resp SendResp
	req := SendReq{SessionID: c.SessionID, Dest: dest, Payload: payload, Opts: opts, Lifetime: lifetime, Priority: priority}
	err := c.call(MsgSend, req, &resp)
	return resp.LocalID, err
}

func (c *Client) Recv(timeout time.Duration) (RecvResp, error) {
	var resp RecvResp
	err := c.call(MsgRecv, RecvReq{SessionID: c.SessionID, TimeoutMS: timeout.Milliseconds()}, &resp)
	return resp, err
}

func (c *Client) BeginPoll(timeout time.Duration) (RecvResp, error) {
	var resp RecvResp
	err := c.call(MsgBeginPoll, RecvReq{SessionID: c.SessionID, TimeoutMS: timeout.Milliseconds()}, &resp)
	return resp, err
}

func (c *Client) CancelPoll() error {
	return c.call(MsgCancelPoll, CancelPollReq{SessionID: c.SessionID}, nil)
}

func (c *Client) ParamSet(key, value string) error {
	return c.call(MsgParamSet, ParamSetReq{Key: key, Value: value}, nil)
}

func (c *Client) ParamGet(key string) (string, error) {
	var resp ParamGetResp
	err := c.call(MsgParamGet, ParamGetReq{Key: key}, &resp)
	return resp.Value, err
}

func (c *Client) ParamDump() (map[string]string, error) {
	var resp ParamDumpResp
	err := c.call(MsgParamDump, struct{}{}, &resp)
	return resp.Values, err
}
