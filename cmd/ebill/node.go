package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/bitcredit/ebill/api"
	"github.com/bitcredit/ebill/billservice"
	"github.com/bitcredit/ebill/config"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/eventbus"
	"github.com/bitcredit/ebill/eventbus/httptransport"
	"github.com/bitcredit/ebill/oracle"
	"github.com/bitcredit/ebill/store"
	"github.com/bitcredit/ebill/store/leveldb"
	"github.com/bitcredit/ebill/store/memory"
	"github.com/bitcredit/ebill/store/sqlite"
	"github.com/bitcredit/ebill/telemetry"
)

// logger is this command's only logging seam, mirroring the
// package-level *slog.Logger SPEC_FULL.md's ambient stack calls for
// where solo.go itself would have reached for log15's package-level
// `log`.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func runNode(c *cli.Context) error {
	telemetry.Init("ebill")

	nodeCfg := config.Node{
		DataDir:             c.String(dataDirFlag.Name),
		Backend:             config.Backend(c.String(backendFlag.Name)),
		ListenAddr:          c.String(listenAddrFlag.Name),
		MaintenanceInterval: c.Duration(maintenanceIntervalFlag.Name),
		NTPServer:           c.String(ntpServerFlag.Name),
	}

	if nodeCfg.NTPServer != "" {
		if drift, err := config.CheckClockDrift(nodeCfg.NTPServer); err != nil {
			logger.Warn("ntp drift check failed", "server", nodeCfg.NTPServer, "error", err)
		} else {
			logger.Info("ntp drift check", "server", nodeCfg.NTPServer, "offset", drift)
		}
	}

	nodeKeys, err := config.LoadOrCreateNodeKeys(nodeCfg.DataDir)
	if err != nil {
		return err
	}
	logger.Info("node identity", "node_id", nodeKeys.NodeID())

	peers, err := parsePeers(c.StringSlice(peerFlag.Name))
	if err != nil {
		return err
	}

	stores, closeStores, err := openStores(nodeCfg)
	if err != nil {
		return err
	}
	defer closeStores()

	transport := httptransport.New(peers)
	bus := eventbus.New(
		nodeKeys,
		stores.chains,
		stores.keys,
		stores.identities,
		stores.contacts,
		eventbus.NewMemoryProcessedStore(),
		stores.notificationInbox,
		transport,
	)

	service, err := billservice.New(
		stores.chains,
		stores.keys,
		stores.paid,
		stores.cache,
		stores.identities,
		stores.notificationStore,
		oracle.NeverPaid{},
		bus,
	)
	if err != nil {
		return err
	}

	actor := billservice.Actor{PersonalKeys: nodeKeys}
	handler := api.New(service, actor, stores.notificationInbox, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runMaintenanceLoop(ctx, service, nodeCfg.MaintenanceInterval)
	}()

	server := &http.Server{Addr: nodeCfg.ListenAddr, Handler: handler}
	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("serving api", "addr", nodeCfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig)
	case err := <-serveErrCh:
		if err != nil {
			logger.Error("api server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown", "error", err)
	}

	cancel()
	wg.Wait()
	return nil
}

// runMaintenanceLoop ticks BillService's CheckBills*/timeout sweeps on
// interval until ctx is done. This is the stand-in for solo.go's
// Run(ctx)/loop(ctx) shape (co.Goes itself was never pulled into this
// module, so a sync.WaitGroup plus context.Context substitutes for it
// here).
func runMaintenanceLoop(ctx context.Context, service *billservice.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping maintenance sweep")
			return
		case <-ticker.C:
			sweepOnce(ctx, service)
		}
	}
}

func sweepOnce(ctx context.Context, service *billservice.Service) {
	if err := service.CheckBillsPayment(ctx); err != nil {
		logger.Error("check bills payment", "error", err)
	}
	if err := service.CheckBillsOfferToSellPayment(ctx); err != nil {
		logger.Error("check offer to sell payment", "error", err)
	}
	if err := service.CheckBillsInRecoursePayment(ctx); err != nil {
		logger.Error("check recourse payment", "error", err)
	}
	if err := service.CheckBillsTimeouts(ctx, time.Now().Unix()); err != nil {
		logger.Error("check bill timeouts", "error", err)
	}
}

func parsePeers(raw []string) (map[crypto.NodeID]string, error) {
	peers := make(map[crypto.NodeID]string, len(raw))
	for _, entry := range raw {
		nodeID, addr, ok := strings.Cut(entry, "=")
		if !ok || nodeID == "" || addr == "" {
			return nil, fmt.Errorf("invalid --peer %q, want node_id=http://host:port", entry)
		}
		peers[crypto.NodeID(nodeID)] = addr
	}
	return peers, nil
}

// nodeStores bundles every store seam BillService/EventBus need,
// whichever backend produced them. notificationStore dedupes the
// one-shot maintenance-sweep notices BillService sends
// (store.NotificationStore); notificationInbox is the separate
// user-visible feed EventBus.Ingest appends to and api/notifications
// long-polls (eventbus.NotificationInbox) — the two track different
// things and have never had a shared implementation.
type nodeStores struct {
	chains            store.ChainStore
	keys              store.KeysStore
	paid              store.PaidStore
	cache             store.CacheStore
	identities        store.IdentityStore
	contacts          store.ContactStore
	notificationStore store.NotificationStore
	notificationInbox *eventbus.MemoryNotificationInbox
}

func openStores(cfg config.Node) (*nodeStores, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return openMemoryStores(), func() {}, nil
	case config.BackendDisk:
		return openDiskStores(cfg)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func openMemoryStores() *nodeStores {
	return &nodeStores{
		chains:            memory.NewChainStore(),
		keys:              memory.NewKeysStore(),
		paid:              memory.NewPaidStore(),
		cache:             memory.NewCacheStore(),
		identities:        memory.NewIdentityStore(),
		contacts:          memory.NewContactStore(),
		notificationStore: memory.NewNotificationStore(),
		notificationInbox: eventbus.NewMemoryNotificationInbox(),
	}
}

func openDiskStores(cfg config.Node) (*nodeStores, func(), error) {
	sq, err := sqlite.Open(cfg.SqlitePath())
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite store: %w", err)
	}
	lv, err := leveldb.Open(cfg.LeveldbPath())
	if err != nil {
		sq.Close()
		return nil, nil, fmt.Errorf("open leveldb store: %w", err)
	}

	closeAll := func() {
		sq.Close()
		lv.Close()
	}
	return &nodeStores{
		chains:            sq.ChainStore(),
		keys:              sq.KeysStore(),
		paid:              sq.PaidStore(),
		cache:             sq.CacheStore(),
		identities:        lv.IdentityStore(),
		contacts:          sq.ContactStore(),
		notificationStore: lv.NotificationStore(),
		notificationInbox: eventbus.NewMemoryNotificationInbox(),
	}, closeAll, nil
}
