// Package atomic provides typed wrappers over sync/atomic so call sites
// read as method calls on a value rather than package-level functions
// taking a pointer.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package atomic

import "sync/atomic"

type Uint32 struct{ v atomic.Uint32 }

func (u *Uint32) Load() uint32        { return u.v.Load() }
func (u *Uint32) Store(val uint32)    { u.v.Store(val) }
func (u *Uint32) Add(delta uint32) uint32 { return u.v.Add(delta) }
func (u *Uint32) CAS(old, n uint32) bool  { return u.v.CompareAndSwap(old, n) }

type Uint64 struct{ v atomic.Uint64 }

func (u *Uint64) Load() uint64        { return u.v.Load() }
func (u *Uint64) Store(val uint64)    { u.v.Store(val) }
func (u *Uint64) Add(delta uint64) uint64 { return u.v.Add(delta) }
func (u *Uint64) CAS(old, n uint64) bool  { return u.v.CompareAndSwap(old, n) }

type Int64 struct{ v atomic.Int64 }

func (i *Int64) Load() int64        { return i.v.Load() }
func (i *Int64) Store(val int64)    { i.v.Store(val) }
func (i *Int64) Add(delta int64) int64 { return i.v.Add(delta) }

type Bool struct{ v atomic.Bool }

func (b *Bool) Load() bool     { return b.v.Load() }
func (b *Bool) Store(val bool) { b.v.Store(val) }
func (b *Bool) CAS(old, n bool) bool { return b.v.CompareAndSwap(old, n) }
