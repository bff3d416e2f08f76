// Package cos provides common low-level types and utilities shared across
// the dtnd packages.
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package cos_test

import (
	"github.com/NVIDIA/aistore/cmn/cos"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("session and node identifiers", func() {
	BeforeEach(func() {
		cos.InitShortID(1)
	})

	It("generates alphanumeric-nice session tokens", func() {
		uuid := cos.GenUUID()
		Expect(cos.IsValidUUID(uuid)).To(BeTrue())
	})

	It("derives the same peer hash for the same input", func() {
		a := cos.HashPeerID("peer-node-7")
		b := cos.HashPeerID("peer-node-7")
		Expect(a).To(Equal(b))
		Expect(a).NotTo(Equal(cos.HashPeerID("peer-node-8")))
	})

	It("validates node IDs", func() {
		Expect(cos.ValidateNodeID("abcdefgh")).To(Succeed())
		Expect(cos.ValidateNodeID("ab")).To(HaveOccurred())
	})

	It("rejects alpha-plus strings with consecutive dots", func() {
		Expect(cos.CheckAlphaPlus("dtn..relay", "link name")).To(HaveOccurred())
		Expect(cos.CheckAlphaPlus("dtn.relay-1", "link name")).To(Succeed())
	})
})
