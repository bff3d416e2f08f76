// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package hk_test

import (
	"sync/atomic"
	"time"

	"github.com/NVIDIA/aistore/hk"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("HK", func() {
	It("fires a registered callback after its interval", func() {
		var fired int32
		hk.DefaultHK.Reg("once", func() time.Duration {
			atomic.StoreInt32(&fired, 1)
			return hk.UnregInterval
		}, 10*time.Millisecond)

		Eventually(func() int32 { return atomic.LoadInt32(&fired) }, time.Second, 5*time.Millisecond).Should(Equal(int32(1)))
	})

	It("reschedules when the callback returns a positive interval", func() {
		var count int32
		hk.DefaultHK.Reg("repeating", func() time.Duration {
			atomic.AddInt32(&count, 1)
			return 5 * time.Millisecond
		}, 5*time.Millisecond)

		Eventually(func() int32 { return atomic.LoadInt32(&count) }, time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 3))
		hk.DefaultHK.Unreg("repeating")
	})

	It("stops firing once unregistered", func() {
		var count int32
		hk.DefaultHK.Reg("cancellable", func() time.Duration {
			atomic.AddInt32(&count, 1)
			return 5 * time.Millisecond
		}, 5*time.Millisecond)

		Eventually(func() int32 { return atomic.LoadInt32(&count) }, time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 1))
		hk.DefaultHK.Unreg("cancellable")
		snapshot := atomic.LoadInt32(&count)
		time.Sleep(50 * time.Millisecond)
		Expect(atomic.LoadInt32(&count)).To(BeNumerically("<=", snapshot+1))
	})
})
