/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package k8sdisc

import (
	"context"
	"testing"
	"time"

	"github.com/NVIDIA/aistore/config"
	"github.com/NVIDIA/aistore/daemon"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/hk"
	"github.com/prometheus/client_golang/prometheus"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
)

func newTestDaemon(t *testing.T) (*daemon.Daemon, *daemon.DaemonContext) {
	t.Helper()
	h := hk.New()
	go h.Run()
	h.WaitStarted()
	t.Cleanup(h.Stop)

	local, err := eid.Parse("dtn://node1/")
	if err != nil {
		t.Fatalf("parse local eid: %v", err)
	}
	ctx := daemon.NewContext(local, nil, h, config.Defaults())
	d := daemon.New(ctx, daemon.NewMetrics(prometheus.NewRegistry()))
	go d.Run()
	return d, ctx
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestConfigIntervalDefaultsWhenUnset(t *testing.T) {
	var c Config
	if c.interval() != 30*time.Second {
		t.Fatalf("expected a 30s default, got %v", c.interval())
	}
	c.Interval = 5 * time.Second
	if c.interval() != 5*time.Second {
		t.Fatalf("expected the configured interval to be honored, got %v", c.interval())
	}
}

func TestPeerSSPPrefersTargetRefName(t *testing.T) {
	addr := corev1.EndpointAddress{IP: "10.0.0.1", TargetRef: &corev1.ObjectReference{Name: "peer-pod-0"}}
	if got := peerSSP("svc", addr); got != "peer-pod-0" {
		t.Fatalf("expected TargetRef name to win, got %q", got)
	}
}

func TestPeerSSPFallsBackToEndpointNameAndIP(t *testing.T) {
	addr := corev1.EndpointAddress{IP: "10.0.0.2"}
	if got := peerSSP("svc", addr); got != "svc/10.0.0.2" {
		t.Fatalf("expected a name/ip fallback, got %q", got)
	}
}

func TestPressureRatioReportsOkFalseForZeroCapacity(t *testing.T) {
	usage := resource.MustParse("1Gi")
	capacity := resource.MustParse("0")
	if _, ok := pressureRatio(&usage, &capacity); ok {
		t.Fatal("expected ok=false for zero capacity")
	}
}

func TestPressureRatioComputesFraction(t *testing.T) {
	usage := resource.MustParse("512Mi")
	capacity := resource.MustParse("2Gi")
	ratio, ok := pressureRatio(&usage, &capacity)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if ratio < 0.24 || ratio > 0.26 {
		t.Fatalf("expected ~0.25, got %v", ratio)
	}
}

func TestDiscoverPeersPostsDiscoveryPeerForEachEndpointAddress(t *testing.T) {
	d, ctx := newTestDaemon(t)
	eps := &corev1.Endpoints{
		ObjectMeta: metav1.ObjectMeta{Name: "relay", Namespace: "dtn"},
		Subsets: []corev1.EndpointSubset{{
			Addresses: []corev1.EndpointAddress{
				{IP: "10.0.0.5", TargetRef: &corev1.ObjectReference{Name: "relay-0"}},
			},
		}},
	}
	client := fake.NewSimpleClientset(eps)
	metricsClient := metricsfake.NewSimpleClientset()
	w := NewWithClients(Config{Namespace: "dtn", CLName: "tcpcl", EIDScheme: "dtn", Port: 4556}, d, client, metricsClient)

	if err := w.discoverPeers(context.Background()); err != nil {
		t.Fatalf("discoverPeers: %v", err)
	}

	waitFor(t, func() bool {
		l, ok := ctx.Links.Get("k8s-relay-10.0.0.5")
		return ok && l.NextHop == "10.0.0.5:4556"
	})
}

func TestReportNodePressureSkipsNodesWithoutMatchingMetrics(t *testing.T) {
	d, _ := newTestDaemon(t)
	// No Node objects registered, so the one NodeMetrics entry below has no
	// matching capacity and reportNodePressure must skip it rather than
	// panic on a missing map entry.
	metricsClient := metricsfake.NewSimpleClientset(&metricsv1beta1.NodeMetrics{
		ObjectMeta: metav1.ObjectMeta{Name: "node-without-capacity"},
		Usage:      corev1.ResourceList{corev1.ResourceMemory: resource.MustParse("1Gi")},
	})
	client := fake.NewSimpleClientset()
	w := NewWithClients(Config{}, d, client, metricsClient)

	if err := w.reportNodePressure(context.Background()); err != nil {
		t.Fatalf("reportNodePressure: %v", err)
	}
}
