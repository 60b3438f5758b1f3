// Command node starts a Bazaar chain node.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bazaarchain/bazaar/archive"
	"github.com/bazaarchain/bazaar/config"
	"github.com/bazaarchain/bazaar/consensus"
	"github.com/bazaarchain/bazaar/core"
	"github.com/bazaarchain/bazaar/crypto/certgen"
	"github.com/bazaarchain/bazaar/events"
	"github.com/bazaarchain/bazaar/indexer"
	"github.com/bazaarchain/bazaar/metrics"
	"github.com/bazaarchain/bazaar/network"
	"github.com/bazaarchain/bazaar/rpc"
	"github.com/bazaarchain/bazaar/storage"
	"github.com/bazaarchain/bazaar/vm"
	"github.com/bazaarchain/bazaar/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/bazaarchain/bazaar/vm/modules/admin"
	_ "github.com/bazaarchain/bazaar/vm/modules/asset"
	_ "github.com/bazaarchain/bazaar/vm/modules/economy"
	_ "github.com/bazaarchain/bazaar/vm/modules/market"
	_ "github.com/bazaarchain/bazaar/vm/modules/offer"
	_ "github.com/bazaarchain/bazaar/vm/modules/treasury"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// Read keystore password from environment (not CLI flags, they leak via ps).
	password := os.Getenv("BAZAAR_PASSWORD")
	if password == "" {
		slog.Warn("BAZAAR_PASSWORD not set, keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			fatal("generate key", err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			fatal("save key", err)
		}
		fmt.Printf("Generated key. Public key (validator): %s\n", w.PubKey())
		fmt.Printf("Account address: %s\n", w.Address())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		cfgForCerts, err := loadConfig(*cfgPath)
		if err != nil {
			fatal("config", err)
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			fatal("gencerts", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fatal("config", err)
	}

	// ---- load validator key ----
	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		fatal("load key", err)
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		fatal("mkdir data dir", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		fatal("open db", err)
	}
	defer db.Close()

	blockStore := storage.NewLevelBlockStore(db)

	// ---- initialise state ----
	state := storage.NewStateDB(db)

	// ---- initialise blockchain ----
	bc := core.NewBlockchain(blockStore)
	if err := bc.Init(); err != nil {
		fatal("blockchain init", err)
	}

	// ---- genesis block (if fresh chain) ----
	if bc.Tip() == nil {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			fatal("genesis", err)
		}
		if err := bc.AddBlock(genesisBlock); err != nil {
			fatal("add genesis", err)
		}
		slog.Info("genesis block committed", "hash", genesisBlock.Hash,
			"admin", cfg.Genesis.Market.Admin)
	}

	// ---- events ----
	emitter := events.NewEmitter()

	// ---- indexer ----
	idx := indexer.New(db, emitter)

	// ---- event archive ----
	arch, err := archive.Open(cfg.DataDir + "/events.db")
	if err != nil {
		fatal("open archive", err)
	}
	defer arch.Close()
	arch.Attach(emitter)

	// ---- metrics ----
	m := metrics.New()
	m.Attach(emitter)
	if cfg.MetricsPort > 0 {
		metricsSrv := metrics.NewServer(cfg.MetricsPort, m)
		if err := metricsSrv.Start(); err != nil {
			fatal("metrics start", err)
		}
		defer metricsSrv.Stop()
		slog.Info("metrics listening", "port", cfg.MetricsPort)
	}

	// ---- mempool ----
	mempool := core.NewMempool()

	// ---- VM executor ----
	exec := vm.NewExecutor(state, emitter)

	// ---- consensus ----
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey)

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		fatal("tls", err)
	}
	if tlsCfg != nil {
		slog.Info("mTLS enabled for P2P")
	}

	// ---- network ----
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, p2pAddr, mempool, tlsCfg)
	syncer := network.NewSyncer(node, bc, poa, exec, state)
	if err := node.Start(); err != nil {
		fatal("p2p start", err)
	}
	defer node.Stop()
	slog.Info("p2p listening", "addr", p2pAddr)

	// ---- connect to seed peers ----
	for _, sp := range cfg.SeedPeers {
		if err := node.AddPeer(sp.ID, sp.Addr); err != nil {
			slog.Warn("seed peer", "id", sp.ID, "addr", sp.Addr, "err", err)
			continue
		}
		// Trigger initial block sync with the newly connected peer.
		if peer := node.Peer(sp.ID); peer != nil {
			syncer.SyncWithPeer(peer)
		}
		slog.Info("connected to seed peer", "id", sp.ID, "addr", sp.Addr)
	}

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rps := cfg.RPCRateLimit
	if rps == 0 {
		rps = 50
	}
	rpcHandler := rpc.NewHandler(bc, mempool, state, idx, cfg.Genesis.ChainID)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken, rps)
	if err := rpcServer.Start(); err != nil {
		fatal("rpc start", err)
	}
	defer rpcServer.Stop()
	slog.Info("rpc listening", "addr", rpcAddr, "auth", cfg.RPCAuthToken != "")

	// ---- consensus loop ----
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poa.Run(2*time.Second, done)
	}()
	slog.Info("consensus running", "validator", privKey.Public().Hex())

	// ---- mempool gauge ----
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.SetMempoolSize(mempool.Size())
			}
		}
	}()

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	// Stop consensus first so no new blocks are written, then the deferred
	// calls unwind in LIFO order: rpc, p2p, archive, db.
	close(done)
	wg.Wait()
	slog.Info("shutdown complete")
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("config file not found, using defaults", "path", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
