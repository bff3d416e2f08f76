// Package prob implements a fully-featured dynamic probabilistic filter:
// a cuckoo filter that can grow by adding backing filters as it fills,
// used wherever an exact set is too expensive to keep but an occasional
// false positive is acceptable (it must always be paired with an
// authoritative check on a positive).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package prob

import (
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

const (
	defaultCapacity = 1 << 16 // entries per backing filter before growing
)

// Filter is a growable, thread-safe cuckoo filter. The registration table
// (§4.3 expansion) keeps one Filter for the whole table to short-circuit the
// "have we already delivered this bundle" check ahead of the
// authoritative durable-store lookup (Idempotent-delivery law, §8).
type Filter struct {
	mtx      sync.RWMutex
	filters  []*cuckoo.Filter
	capacity uint
	count    uint
}

func NewFilter(capacity uint) *Filter {
	if capacity == 0 {
		capacity = defaultCapacity
	}
	return &Filter{
		filters:  []*cuckoo.Filter{cuckoo.NewFilter(capacity)},
		capacity: capacity,
	}
}

// Lookup reports whether key may already be a member. False positives are
// possible; false negatives are not.
func (f *Filter) Lookup(key []byte) bool {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	for _, cf := range f.filters {
		if cf.Lookup(key) {
			return true
		}
	}
	return false
}

// Insert adds key to the filter, growing with a fresh backing filter once
// the newest one nears capacity (cuckoo filters reject inserts past a
// load factor rather than silently degrading).
func (f *Filter) Insert(key []byte) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	last := f.filters[len(f.filters)-1]
	if !last.Insert(key) {
		last = cuckoo.NewFilter(f.capacity)
		last.Insert(key)
		f.filters = append(f.filters, last)
	}
	f.count++
}

// Delete removes key if present in any backing filter.
func (f *Filter) Delete(key []byte) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	for _, cf := range f.filters {
		if cf.Delete(key) {
			return true
		}
	}
	return false
}

func (f *Filter) Count() uint {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	return f.count
}

// Reset drops all backing filters, starting fresh at the original capacity.
func (f *Filter) Reset() {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.filters = []*cuckoo.Filter{cuckoo.NewFilter(f.capacity)}
	f.count = 0
}
