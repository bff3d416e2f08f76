// Package archive implements payload archival (§4.10): on bundle free, the
// payload bytes and a summary of its status-report trail are uploaded to a
// pluggable backend chosen by the destination EID's bucket pattern.
// Grounded on cmn/archive/write.go's pluggable-Writer-selected-by-format
// shape, adapted from archive-format selection to storage-backend
// selection.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/cmn/nlog"
	"github.com/NVIDIA/aistore/eid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v3"
)

// Backend is the pluggable upload surface every archival driver implements
// (§4.10: s3, azblob, gcs, hdfs).
type Backend interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
	Name() string
}

// Policy configures archival for bundles destined to a matching EID
// pattern: which backend to use and whether to lz4-compress the payload
// before upload, whatever its size (`archive_compress`, §4.10/§6).
type Policy struct {
	Pattern  eid.EID
	Backend  string
	Compress bool
}

// Record is the metadata blob uploaded alongside the payload bytes: the
// bundle's identity plus the status-report events observed before it was
// freed.
type Record struct {
	LocalID   uint64
	Source    string
	Dest      string
	Created   bundle.Timestamp
	Length    int64
	Trail     []bundle.StatusReport `json:"Trail,omitempty"`
	ArchivedAt int64
}

type pending struct {
	key    string
	policy Policy
	data   []byte
	record Record
}

// Manager holds the archival policy table and the registered backend
// drivers, and retries failed uploads on Tidy (§4.10 "retried on the next
// tidy sweep, never blocks bundle deletion past one retry window").
type Manager struct {
	mtx      sync.Mutex
	policies []Policy
	backends map[string]Backend

	pendingMtx sync.Mutex
	failed     []pending
}

func NewManager() *Manager {
	return &Manager{backends: make(map[string]Backend)}
}

// Register adds a backend driver under the name Policy.Backend values
// reference (`s3`, `azblob`, `gcs`, `hdfs`).
func (m *Manager) Register(b Backend) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.backends[b.Name()] = b
}

// SetPolicy configures archival for bundles whose destination matches
// pattern (`archive set <bucket-pattern> <backend> [params]`, §6).
func (m *Manager) SetPolicy(p Policy) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for i, existing := range m.policies {
		if existing.Pattern.Equal(p.Pattern) {
			m.policies[i] = p
			return
		}
	}
	m.policies = append(m.policies, p)
}

// DelPolicy removes the policy for pattern (`archive del`, §6).
func (m *Manager) DelPolicy(pattern eid.EID) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for i, p := range m.policies {
		if p.Pattern.Equal(pattern) {
			m.policies = append(m.policies[:i], m.policies[i+1:]...)
			return true
		}
	}
	return false
}

// policyFor returns the first configured policy whose pattern matches
// dest, insertion order, mirroring router.Table's own linear-scan match
// style.
func (m *Manager) policyFor(dest eid.EID) (Policy, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, p := range m.policies {
		if dest.Match(p.Pattern) {
			return p, true
		}
	}
	return Policy{}, false
}

// Archive uploads b's payload plus trail to the backend configured for
// b.Dest, if any; it is a no-op when no policy matches. Upload happens
// fire-and-forget relative to bundle lifecycle (§4.10): the caller is never
// blocked, and a failed upload is logged and queued for Tidy to retry.
func (m *Manager) Archive(b *bundle.Bundle, trail []bundle.StatusReport) {
	policy, ok := m.policyFor(b.Dest)
	if !ok {
		return
	}
	m.mtx.Lock()
	backend, ok := m.backends[policy.Backend]
	m.mtx.Unlock()
	if !ok {
		nlog.Warningf("archive: no backend registered for %q", policy.Backend)
		return
	}

	rec := Record{
		LocalID: b.LocalID,
		Source:  b.Source.String(),
		Dest:    b.Dest.String(),
		Created: b.ID.Timestamp,
		Length:  b.Payload.Length,
		Trail:   trail,
	}
	data := b.Payload.Mem
	key := recordKey(b)

	go m.upload(backend, policy, key, data, rec)
}

func recordKey(b *bundle.Bundle) string {
	return b.Dest.String() + "/" + b.ID.Source.String() + "-" +
		strconv.FormatUint(b.ID.Timestamp.Seconds, 10) + "-" +
		strconv.FormatUint(b.ID.Timestamp.Sequence, 10)
}

func (m *Manager) upload(backend Backend, policy Policy, key string, data []byte, rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rec.ArchivedAt = time.Now().Unix()

	payload, err := maybeCompress(data, policy.Compress)
	if err != nil {
		nlog.Errorf("archive: compress %s: %v", key, err)
		m.queueRetry(key, policy, data, rec)
		return
	}
	if err := backend.Upload(ctx, key+".payload", bytes.NewReader(payload), int64(len(payload))); err != nil {
		nlog.Errorf("archive: upload payload %s: %v", key, err)
		m.queueRetry(key, policy, data, rec)
		return
	}
	meta, err := jsoniter.Marshal(rec)
	if err != nil {
		nlog.Errorf("archive: marshal record %s: %v", key, err)
		return
	}
	if err := backend.Upload(ctx, key+".meta.json", bytes.NewReader(meta), int64(len(meta))); err != nil {
		nlog.Errorf("archive: upload metadata %s: %v", key, err)
		m.queueRetry(key, policy, data, rec)
	}
}

func (m *Manager) queueRetry(key string, policy Policy, data []byte, rec Record) {
	m.pendingMtx.Lock()
	defer m.pendingMtx.Unlock()
	m.failed = append(m.failed, pending{key: key, policy: policy, data: data, record: rec})
}

// Tidy retries every queued failed upload once; entries that fail again
// stay queued for the next sweep (§4.10 "retried on the next tidy sweep").
func (m *Manager) Tidy() {
	m.pendingMtx.Lock()
	batch := m.failed
	m.failed = nil
	m.pendingMtx.Unlock()

	for _, p := range batch {
		m.mtx.Lock()
		backend, ok := m.backends[p.policy.Backend]
		m.mtx.Unlock()
		if !ok {
			continue
		}
		m.upload(backend, p.policy, p.key, p.data, p.record)
	}
}

// maybeCompress lz4-compresses data when requested (`archive_compress`,
// §4.10), grounded on cmn/archive/write.go's lz4Writer use of
// github.com/pierrec/lz4/v3.
func maybeCompress(data []byte, compress bool) ([]byte, error) {
	if !compress {
		return data, nil
	}
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
