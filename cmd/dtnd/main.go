// Command dtnd is the DTN router daemon (§2 "Architecture", §6 "Starting
// a node"): it loads the bootstrap config, opens the durable store, builds
// the DaemonContext, starts the single dispatcher goroutine, the loopback
// API adapter and the convergence-layer engine, registers the per-link
// connect ticks, archival tidy sweep and disk-throughput sampler on one
// hk.HK housekeeping registry, and runs the optional Kubernetes discovery
// watcher on its own goroutine. Grounded on cmd/authn/main.go's
// flag-parse-then-load-config-then-install-signal-handler shape.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NVIDIA/aistore/apisrv"
	"github.com/NVIDIA/aistore/cl"
	"github.com/NVIDIA/aistore/cl/httpcl"
	"github.com/NVIDIA/aistore/cl/tcpcl"
	"github.com/NVIDIA/aistore/cmn/nlog"
	"github.com/NVIDIA/aistore/daemon"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/hk"
	"github.com/NVIDIA/aistore/k8sdisc"
	"github.com/NVIDIA/aistore/link"
	"github.com/NVIDIA/aistore/router"
	"github.com/NVIDIA/aistore/stats"
	"github.com/NVIDIA/aistore/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var configDir string

func init() {
	flag.StringVar(&configDir, "config", "", "directory holding dtn_local.json and .dtn.conf")
}

func main() {
	flag.Parse()
	if configDir == "" {
		configDir = os.Getenv("DTND_CONF_DIR")
	}
	if configDir == "" {
		nlog.Errorln("dtnd: missing configuration directory: pass -config or set DTND_CONF_DIR")
		os.Exit(1)
	}

	lc, err := loadLocalConfig(configDir)
	if err != nil {
		nlog.Errorln(err)
		os.Exit(1)
	}
	tunables, err := loadTunables(configDir)
	if err != nil {
		nlog.Errorln(err)
		os.Exit(1)
	}
	if lc.RequireAuth {
		if err := tunables.Set("require_auth", "true"); err != nil {
			nlog.Errorf("dtnd: %v", err)
			os.Exit(1)
		}
	}

	localEID, err := eid.Parse(lc.NodeEID)
	if err != nil {
		nlog.Errorf("dtnd: invalid node_eid %q: %v", lc.NodeEID, err)
		os.Exit(1)
	}

	st, err := store.Open(store.Config{DBDir: lc.DBDir, PayloadDir: lc.PayloadDir})
	if err != nil {
		nlog.Errorf("dtnd: open store: %v", err)
		os.Exit(1)
	}

	h := hk.New()
	go h.Run()
	h.WaitStarted()

	dctx := daemon.NewContext(localEID, st, h, tunables)

	archiveCtx, cancelArchive := context.WithTimeout(context.Background(), 30*time.Second)
	dctx.Archive, err = buildArchiveManager(archiveCtx, lc.ArchiveBackends, localEID.Scheme())
	cancelArchive()
	if err != nil {
		nlog.Errorf("dtnd: archive setup: %v", err)
		os.Exit(1)
	}

	drivers := map[string]cl.ConvergenceLayer{}
	tcpDrv, err := tcpcl.Listen(lc.TCPCLAddr)
	if err != nil {
		nlog.Errorf("dtnd: tcpcl listen %s: %v", lc.TCPCLAddr, err)
		os.Exit(1)
	}
	drivers[tcpcl.Name] = tcpDrv
	httpDrv := httpcl.New()
	if err := httpDrv.Listen(""); err == nil {
		drivers[httpDrv.Name()] = httpDrv
	}

	reg := prometheus.NewRegistry()
	metrics := daemon.NewMetrics(reg)
	d := daemon.New(dctx, metrics)

	eng := newEngine(d, dctx, drivers)
	if err := configureLinks(dctx, lc.Links, localEID.Scheme()); err != nil {
		nlog.Errorf("dtnd: configuring links: %v", err)
		os.Exit(1)
	}
	for _, l := range dctx.Links.All() {
		h.Reg("connect-"+l.Name, eng.ensureConnected(l), 2*time.Second)
	}
	for name, drv := range drivers {
		go eng.acceptLoop(name, localEID.Scheme(), drv)
	}

	d.CloseContact = func(linkName string) error {
		l, ok := dctx.Links.Get(linkName)
		if !ok {
			return nil
		}
		return l.Close()
	}

	go d.Run()

	auth := apisrv.NewAuthenticator([]byte(lc.AuthSecret), tunables.RequireAuth)
	srv := apisrv.New(d, auth)
	if err := srv.Listen(lc.APIAddr); err != nil {
		nlog.Errorf("dtnd: api listen %s: %v", lc.APIAddr, err)
		os.Exit(1)
	}
	go func() {
		if err := srv.Serve(); err != nil {
			nlog.Warningf("dtnd: api server stopped: %v", err)
		}
	}()

	h.Reg("archive-tidy", func() time.Duration {
		dctx.Archive.Tidy()
		return time.Minute
	}, time.Minute)

	sampler := stats.NewDiskSampler(d.ReportDiskThroughput)
	h.Reg("disk-sample", func() time.Duration {
		sampler.Sample()
		return 30 * time.Second
	}, 30*time.Second)

	var watcher *k8sdisc.Watcher
	if lc.K8sDiscovery != nil && lc.K8sDiscovery.Namespace != "" {
		watcher, err = k8sdisc.New(k8sdisc.Config{
			Namespace:     lc.K8sDiscovery.Namespace,
			LabelSelector: lc.K8sDiscovery.LabelSelector,
			CLName:        tcpcl.Name,
			EIDScheme:     localEID.Scheme(),
			Port:          lc.K8sDiscovery.Port,
		}, d)
		if err != nil {
			nlog.Warningf("dtnd: kubernetes discovery disabled: %v", err)
		} else {
			go watcher.Run()
		}
	}

	var metricsSrv *http.Server
	if lc.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: lc.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				nlog.Warningf("dtnd: metrics server stopped: %v", err)
			}
		}()
	}

	nlog.Infof("dtnd: node %s listening api=%s tcpcl=%s", localEID, lc.APIAddr, tcpDrv.Addr())
	waitForSignal()
	nlog.Infoln("dtnd: shutting down")

	if watcher != nil {
		watcher.Stop()
	}
	if metricsSrv != nil {
		_ = metricsSrv.Close()
	}
	_ = srv.Close()
	for _, drv := range drivers {
		_ = drv.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.Shutdown(shutdownCtx); err != nil {
		nlog.Errorf("dtnd: shutdown: %v", err)
	}
	h.Stop()
}

// configureLinks populates the link table and static routes from the
// bootstrap file before the dispatcher goroutine starts, the same
// before-Run direct-mutation pattern daemon's own tests use to seed a
// DaemonContext (§6 "link add"/"route add" with no admin session needed
// at startup).
func configureLinks(dctx *daemon.DaemonContext, cfgs []linkConfig, localScheme string) error {
	for _, lc := range cfgs {
		typ, err := parseLinkType(lc.Type)
		if err != nil {
			return fmt.Errorf("link %q: %w", lc.Name, err)
		}
		pattern, err := eid.Parse(lc.Pattern)
		if err != nil {
			pattern, err = eid.New(localScheme, lc.Pattern)
			if err != nil {
				return fmt.Errorf("link %q: pattern %q: %w", lc.Name, lc.Pattern, err)
			}
		}
		l := link.New(lc.Name, typ, lc.NextHop, lc.CL, link.DefaultParams())
		if err := l.SetAvailable(); err != nil {
			return fmt.Errorf("link %q: %w", lc.Name, err)
		}
		if err := dctx.Links.Add(l); err != nil {
			return fmt.Errorf("link %q: %w", lc.Name, err)
		}
		dctx.Routes.Add(router.Route{Pattern: pattern, LinkName: lc.Name, Action: router.Forward})
	}
	return nil
}

func parseLinkType(s string) (link.Type, error) {
	switch s {
	case "", "alwayson":
		return link.ALWAYSON, nil
	case "ondemand":
		return link.ONDEMAND, nil
	case "opportunistic":
		return link.OPPORTUNISTIC, nil
	case "scheduled":
		return link.SCHEDULED, nil
	default:
		return 0, fmt.Errorf("unknown link type %q", s)
	}
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
