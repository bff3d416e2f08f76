// Package k8sdisc implements Kubernetes-based peer discovery (§4.11): an
// optional driver that lists Endpoints for a configured Service label
// selector in-cluster and feeds each discovered peer address to the daemon
// as an OPPORTUNISTIC link candidate, the same way a convergence layer
// would admit an unsolicited inbound connection (§4.4). It supplements,
// never replaces, static `link add`/`route add` configuration.
//
// Initialization follows the in-cluster-or-bail pattern of
// cmn/k8s.Init: outside a cluster New returns ErrNotInCluster and no
// watcher is built; the daemon runs on without discovery.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package k8sdisc

import (
	"context"
	"fmt"
	"time"

	"github.com/NVIDIA/aistore/cmn/nlog"
	"github.com/NVIDIA/aistore/daemon"
	"github.com/NVIDIA/aistore/eid"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	metricsclientset "k8s.io/metrics/pkg/client/clientset/versioned"
)

// ErrNotInCluster is returned by New when the process is not running
// inside a Kubernetes pod; callers should treat it as "discovery disabled",
// not a fatal error, matching cmn/k8s.Init's "non-Kubernetes deployment"
// tolerance.
var ErrNotInCluster = errors.New("k8sdisc: not running inside a Kubernetes cluster")

// Config selects the Endpoints watched for peer discovery and the
// parameters used to admit a discovered peer as a link (§6 "discovery set
// k8s <namespace> <label-selector>").
type Config struct {
	Namespace     string
	LabelSelector string
	CLName        string        // convergence layer admitted peers dial through, e.g. "tcpcl"
	EIDScheme     string        // scheme used to build a peer's EID from its pod/service name
	Port          int           // port appended to a discovered endpoint address
	Interval      time.Duration // poll period; k8s Endpoints has no long-poll watch here, so this is a simple re-list loop
}

func (c Config) interval() time.Duration {
	if c.Interval <= 0 {
		return 30 * time.Second
	}
	return c.Interval
}

// Watcher periodically lists Endpoints matching Config.LabelSelector and
// posts an EvDiscoveryPeer for every address it finds (the daemon ignores
// one whose link name it already knows), plus
// node resource pressure sampled from the metrics API (§4.11 expansion).
type Watcher struct {
	cfg     Config
	client  kubernetes.Interface
	metrics metricsclientset.Interface
	d       *daemon.Daemon

	stop chan struct{}
	done chan struct{}
}

// New builds a Watcher from the in-cluster service account, returning
// ErrNotInCluster if the process is not running inside Kubernetes.
func New(cfg Config, d *daemon.Daemon) (*Watcher, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, ErrNotInCluster
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, errors.Wrap(err, "k8sdisc: build clientset")
	}
	metrics, err := metricsclientset.NewForConfig(restCfg)
	if err != nil {
		return nil, errors.Wrap(err, "k8sdisc: build metrics clientset")
	}
	return newWatcher(cfg, d, client, metrics), nil
}

// NewWithClients builds a Watcher against caller-supplied clientsets,
// bypassing in-cluster discovery; used by tests and by callers that build
// their own kubeconfig-based clients outside a pod.
func NewWithClients(cfg Config, d *daemon.Daemon, client kubernetes.Interface, metrics metricsclientset.Interface) *Watcher {
	return newWatcher(cfg, d, client, metrics)
}

func newWatcher(cfg Config, d *daemon.Daemon, client kubernetes.Interface, metrics metricsclientset.Interface) *Watcher {
	return &Watcher{cfg: cfg, d: d, client: client, metrics: metrics, stop: make(chan struct{}), done: make(chan struct{})}
}

// Run polls until Stop is called. Intended to run on its own goroutine,
// started once from cmd/dtnd after the daemon is up.
func (w *Watcher) Run() {
	defer close(w.done)
	ticker := time.NewTicker(w.cfg.interval())
	defer ticker.Stop()

	w.tick()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

// Stop blocks until the current tick (if any) finishes and the poll loop
// exits.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.discoverPeers(ctx); err != nil {
		nlog.Warningf("k8sdisc: discovery tick failed: %v", err)
	}
	if err := w.reportNodePressure(ctx); err != nil {
		nlog.Warningf("k8sdisc: node pressure tick failed: %v", err)
	}
}

func (w *Watcher) discoverPeers(ctx context.Context) error {
	eps, err := w.client.CoreV1().Endpoints(w.cfg.Namespace).List(ctx, metav1.ListOptions{LabelSelector: w.cfg.LabelSelector})
	if err != nil {
		return errors.Wrap(err, "list endpoints")
	}
	for i := range eps.Items {
		w.admitEndpoint(&eps.Items[i])
	}
	return nil
}

func (w *Watcher) admitEndpoint(ep *corev1.Endpoints) {
	for _, subset := range ep.Subsets {
		for _, addr := range subset.Addresses {
			peer, err := eid.New(w.cfg.EIDScheme, peerSSP(ep.Name, addr))
			if err != nil {
				nlog.Warningf("k8sdisc: skipping endpoint %s/%s: %v", ep.Namespace, ep.Name, err)
				continue
			}
			linkName := "k8s-" + ep.Name + "-" + addr.IP
			nexthop := fmt.Sprintf("%s:%d", addr.IP, w.cfg.Port)
			w.d.Post(&daemon.Event{
				Kind:     daemon.EvDiscoveryPeer,
				LinkName: linkName,
				Value:    nexthop,
				Key:      w.cfg.CLName,
				Pattern:  peer,
			})
		}
	}
}

func peerSSP(name string, addr corev1.EndpointAddress) string {
	if addr.TargetRef != nil && addr.TargetRef.Name != "" {
		return addr.TargetRef.Name
	}
	return name + "/" + addr.IP
}

// reportNodePressure samples every Node's memory and (approximated)
// ephemeral-storage usage ratio and forwards it to the daemon's ambient
// metrics (§4.8 expansion), reusing the same client-go REST config/auth
// plumbing discovery already built (§4.11).
func (w *Watcher) reportNodePressure(ctx context.Context) error {
	nodeMetrics, err := w.metrics.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return errors.Wrap(err, "list node metrics")
	}
	nodes, err := w.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return errors.Wrap(err, "list nodes")
	}
	capacity := make(map[string]corev1.ResourceList, len(nodes.Items))
	for i := range nodes.Items {
		capacity[nodes.Items[i].Name] = nodes.Items[i].Status.Capacity
	}
	for _, nm := range nodeMetrics.Items {
		nodeCap, ok := capacity[nm.Name]
		if !ok {
			continue
		}
		if ratio, ok := pressureRatio(nm.Usage.Memory(), nodeCap.Memory()); ok {
			w.d.ReportNodePressure("memory", ratio)
		}
		if ratio, ok := pressureRatio(nm.Usage.StorageEphemeral(), nodeCap.StorageEphemeral()); ok {
			w.d.ReportNodePressure("disk", ratio)
		}
	}
	return nil
}
