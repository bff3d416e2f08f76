// Package config holds the daemon's runtime tunables (§6 "param set"):
// payload/CL buffer thresholds, custody retry factor, auth gating, and the
// archival/discovery toggles, loaded from a config file at startup and
// mutable afterward through a single RWMutex-guarded table.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/NVIDIA/aistore/cmn/cos"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Tunables is read far more often than it is written (every CL connection
// consults SendbufLen/RecvbufLen/KeepaliveInterval on each I/O op), so
// access goes through a RWMutex rather than the daemon's single-mutator
// event queue — the same reasoning link.Link uses its own mutex instead of
// routing every queue-depth check through the dispatcher.
type Tunables struct {
	mtx sync.RWMutex

	PayloadMemThreshold    int64
	ProactiveFragThreshold int64
	EarlyDeletion          bool

	SendbufLen          int64
	RecvbufLen          int64
	KeepaliveInterval   time.Duration
	IdleCloseTime       time.Duration
	BusyQueueDepth      int
	BlockLength         int64
	ReactiveFragEnabled bool
	DataTimeout         time.Duration

	CustodyRetryFactor int
	RequireAuth        bool
	ArchiveCompress    bool
}

// Defaults returns the tunables a freshly started daemon runs with absent
// an overriding config file, chosen to match §4 component defaults already
// hard-coded elsewhere (link.DefaultParams's BusyQueueDepth=64,
// IdleCloseTime=2m; custody.NewSubsystem's retryFactor=4).
func Defaults() *Tunables {
	return &Tunables{
		PayloadMemThreshold:    16 << 20,
		ProactiveFragThreshold: 64 << 20,
		EarlyDeletion:          false,
		SendbufLen:             64 << 10,
		RecvbufLen:             64 << 10,
		KeepaliveInterval:      30 * time.Second,
		IdleCloseTime:          2 * time.Minute,
		BusyQueueDepth:         64,
		BlockLength:            1 << 20,
		ReactiveFragEnabled:    true,
		DataTimeout:            30 * time.Second,
		CustodyRetryFactor:     4,
		RequireAuth:            false,
		ArchiveCompress:        false,
	}
}

// fileTunables mirrors Tunables for JSON loading; every tunable is exposed
// and optional (a nil pointer, or "" for the size and duration strings) so
// a partial file leaves the rest at Defaults().
type fileTunables struct {
	PayloadMemThreshold    string `json:"payload_mem_threshold"`
	ProactiveFragThreshold string `json:"proactive_frag_threshold"`
	EarlyDeletion          *bool  `json:"early_deletion"`
	SendbufLen             string `json:"sendbuf_len"`
	RecvbufLen             string `json:"recvbuf_len"`
	KeepaliveInterval      string `json:"keepalive_interval"`
	IdleCloseTime          string `json:"idle_close_time"`
	BusyQueueDepth         *int   `json:"busy_queue_depth"`
	BlockLength            string `json:"block_length"`
	ReactiveFragEnabled    *bool  `json:"reactive_frag_enabled"`
	DataTimeout            string `json:"data_timeout"`
	CustodyRetryFactor     *int   `json:"custody_retry_factor"`
	RequireAuth            *bool  `json:"require_auth"`
	ArchiveCompress        *bool  `json:"archive_compress"`
}

// Load reads a JSON config file and applies it over Defaults(); a missing
// file is not an error (the daemon runs on defaults), matching the
// teacher's own tolerance for an absent override config
// (cmn/fname.OverrideConfig is explicitly optional).
func Load(data []byte) (*Tunables, error) {
	t := Defaults()
	if len(data) == 0 {
		return t, nil
	}
	var ft fileTunables
	if err := jsoniter.Unmarshal(data, &ft); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	if ft.PayloadMemThreshold != "" {
		if err := t.Set("payload_mem_threshold", ft.PayloadMemThreshold); err != nil {
			return nil, err
		}
	}
	if ft.ProactiveFragThreshold != "" {
		if err := t.Set("proactive_frag_threshold", ft.ProactiveFragThreshold); err != nil {
			return nil, err
		}
	}
	if ft.SendbufLen != "" {
		if err := t.Set("sendbuf_len", ft.SendbufLen); err != nil {
			return nil, err
		}
	}
	if ft.RecvbufLen != "" {
		if err := t.Set("recvbuf_len", ft.RecvbufLen); err != nil {
			return nil, err
		}
	}
	if ft.KeepaliveInterval != "" {
		if err := t.Set("keepalive_interval", ft.KeepaliveInterval); err != nil {
			return nil, err
		}
	}
	if ft.IdleCloseTime != "" {
		if err := t.Set("idle_close_time", ft.IdleCloseTime); err != nil {
			return nil, err
		}
	}
	if ft.BlockLength != "" {
		if err := t.Set("block_length", ft.BlockLength); err != nil {
			return nil, err
		}
	}
	if ft.DataTimeout != "" {
		if err := t.Set("data_timeout", ft.DataTimeout); err != nil {
			return nil, err
		}
	}
	if ft.EarlyDeletion != nil {
		t.EarlyDeletion = *ft.EarlyDeletion
	}
	if ft.BusyQueueDepth != nil {
		t.BusyQueueDepth = *ft.BusyQueueDepth
	}
	if ft.ReactiveFragEnabled != nil {
		t.ReactiveFragEnabled = *ft.ReactiveFragEnabled
	}
	if ft.CustodyRetryFactor != nil {
		t.CustodyRetryFactor = *ft.CustodyRetryFactor
	}
	if ft.RequireAuth != nil {
		t.RequireAuth = *ft.RequireAuth
	}
	if ft.ArchiveCompress != nil {
		t.ArchiveCompress = *ft.ArchiveCompress
	}
	return t, nil
}

// Set applies a single `param set <key> <value>` command (§6).
func (t *Tunables) Set(key, value string) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	switch key {
	case "payload_mem_threshold":
		n, err := cos.ParseSize(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.PayloadMemThreshold = n
	case "proactive_frag_threshold":
		n, err := cos.ParseSize(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.ProactiveFragThreshold = n
	case "sendbuf_len":
		n, err := cos.ParseSize(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.SendbufLen = n
	case "recvbuf_len":
		n, err := cos.ParseSize(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.RecvbufLen = n
	case "block_length":
		n, err := cos.ParseSize(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.BlockLength = n
	case "keepalive_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.KeepaliveInterval = d
	case "idle_close_time":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.IdleCloseTime = d
	case "data_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.DataTimeout = d
	case "busy_queue_depth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.BusyQueueDepth = n
	case "custody_retry_factor":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.CustodyRetryFactor = n
	case "early_deletion":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.EarlyDeletion = b
	case "reactive_frag_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.ReactiveFragEnabled = b
	case "require_auth":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.RequireAuth = b
	case "archive_compress":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "param set %s", key)
		}
		t.ArchiveCompress = b
	default:
		return fmt.Errorf("config: unknown tunable %q", key)
	}
	return nil
}

// Get returns a single tunable's current value as a string, for `param
// get`/status dumps.
func (t *Tunables) Get(key string) (string, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	switch key {
	case "payload_mem_threshold":
		return strconv.FormatInt(t.PayloadMemThreshold, 10), nil
	case "proactive_frag_threshold":
		return strconv.FormatInt(t.ProactiveFragThreshold, 10), nil
	case "sendbuf_len":
		return strconv.FormatInt(t.SendbufLen, 10), nil
	case "recvbuf_len":
		return strconv.FormatInt(t.RecvbufLen, 10), nil
	case "block_length":
		return strconv.FormatInt(t.BlockLength, 10), nil
	case "keepalive_interval":
		return t.KeepaliveInterval.String(), nil
	case "idle_close_time":
		return t.IdleCloseTime.String(), nil
	case "data_timeout":
		return t.DataTimeout.String(), nil
	case "busy_queue_depth":
		return strconv.Itoa(t.BusyQueueDepth), nil
	case "custody_retry_factor":
		return strconv.Itoa(t.CustodyRetryFactor), nil
	case "early_deletion":
		return strconv.FormatBool(t.EarlyDeletion), nil
	case "reactive_frag_enabled":
		return strconv.FormatBool(t.ReactiveFragEnabled), nil
	case "require_auth":
		return strconv.FormatBool(t.RequireAuth), nil
	case "archive_compress":
		return strconv.FormatBool(t.ArchiveCompress), nil
	default:
		return "", fmt.Errorf("config: unknown tunable %q", key)
	}
}

// Dump returns every tunable as a key/value map, for the `param dump`
// status surface.
func (t *Tunables) Dump() map[string]string {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	return map[string]string{
		"payload_mem_threshold":    strconv.FormatInt(t.PayloadMemThreshold, 10),
		"proactive_frag_threshold": strconv.FormatInt(t.ProactiveFragThreshold, 10),
		"early_deletion":           strconv.FormatBool(t.EarlyDeletion),
		"sendbuf_len":              strconv.FormatInt(t.SendbufLen, 10),
		"recvbuf_len":              strconv.FormatInt(t.RecvbufLen, 10),
		"keepalive_interval":       t.KeepaliveInterval.String(),
		"idle_close_time":          t.IdleCloseTime.String(),
		"busy_queue_depth":         strconv.Itoa(t.BusyQueueDepth),
		"block_length":             strconv.FormatInt(t.BlockLength, 10),
		"reactive_frag_enabled":    strconv.FormatBool(t.ReactiveFragEnabled),
		"data_timeout":             t.DataTimeout.String(),
		"custody_retry_factor":     strconv.Itoa(t.CustodyRetryFactor),
		"require_auth":             strconv.FormatBool(t.RequireAuth),
		"archive_compress":         strconv.FormatBool(t.ArchiveCompress),
	}
}
