// Package daemon implements the single authoritative mutator: the event
// queue, the large tagged-union dispatcher, and the DaemonContext that
// owns every global table (§4.8, §5 "One authoritative mutator").
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package daemon

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the error kinds named in §7.
type Kind uint8

const (
	ParseError Kind = iota
	StoreError
	NetIOError
	ProtocolError
	ResourceExhausted
	PolicyReject
	NotFound
	AlreadyExists

	// InPoll is not one of §7's error kinds; it exists only to give the
	// wire-level EINPOLL code (§6) a distinct daemon.Kind to map from,
	// since a session in POLL state is an API-adapter session-protocol
	// condition, not a bundle-policy or store/codec failure.
	InPoll
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	case StoreError:
		return "StoreError"
	case NetIOError:
		return "NetIOError"
	case ProtocolError:
		return "ProtocolError"
	case ResourceExhausted:
		return "ResourceExhausted"
	case PolicyReject:
		return "PolicyReject"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case InPoll:
		return "InPoll"
	default:
		return "UnknownError"
	}
}

// Error is the single result type every handler and API call returns
// (§9 "Exceptions / panics / error returns"): a Kind the daemon can switch
// on, wrapping a cause preserved for logs via github.com/pkg/errors.
type Error struct {
	Kind  Kind
	cause error
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

func Wrap(kind Kind, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(cause, kind.String())}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Cause() error { return errors.Cause(e.cause) }
func (e *Error) Unwrap() error { return e.cause }
