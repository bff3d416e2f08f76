// Package apisrv is the API Adapter: a loopback, length-prefixed
// request/response server whose calls map 1:1 onto daemon events (§4.9).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package apisrv

import "github.com/NVIDIA/aistore/daemon"

// Code is the numeric result code returned on the wire (§6).
type Code uint32

const (
	SUCCESS Code = iota
	EINVAL
	ECODEC
	ECOMM
	ECONNECT
	ETIMEOUT
	ESIZE
	ENOTFOUND
	EINTERNAL
	EINPOLL
	EBUSY
)

// codeFor maps a daemon.Error's Kind onto the wire code set (§6, §7).
func codeFor(err *daemon.Error) Code {
	if err == nil {
		return SUCCESS
	}
	switch err.Kind {
	case daemon.ParseError:
		return ECODEC
	case daemon.StoreError:
		return EINTERNAL
	case daemon.NetIOError:
		return ECOMM
	case daemon.ProtocolError:
		return ECODEC
	case daemon.ResourceExhausted:
		return ESIZE
	case daemon.PolicyReject:
		return EINVAL
	case daemon.NotFound:
		return ENOTFOUND
	case daemon.AlreadyExists:
		return EINVAL
	case daemon.InPoll:
		return EINPOLL
	default:
		return EINTERNAL
	}
}
