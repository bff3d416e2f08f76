// Package prob implements a fully-featured dynamic probabilistic filter.
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package prob_test

import (
	"github.com/NVIDIA/aistore/cmn/prob"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Filter", func() {
	It("reports membership after insert, never a false negative", func() {
		f := prob.NewFilter(1024)
		key := []byte("dtn://x/app|12345|7|0|1024")
		Expect(f.Lookup(key)).To(BeFalse())
		f.Insert(key)
		Expect(f.Lookup(key)).To(BeTrue())
	})

	It("forgets a deleted key", func() {
		f := prob.NewFilter(1024)
		key := []byte("dup-key")
		f.Insert(key)
		Expect(f.Delete(key)).To(BeTrue())
		Expect(f.Lookup(key)).To(BeFalse())
	})

	It("grows past one backing filter's capacity without rejecting inserts", func() {
		f := prob.NewFilter(64)
		for i := range 500 {
			f.Insert([]byte{byte(i), byte(i >> 8)})
		}
		Expect(f.Count()).To(BeEquivalentTo(500))
	})
})
