// Command pagechaind runs a node: the chain engine, the gossip
// network, the command channel, and, optionally, a miner.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dagchain/pagechain/chain"
	"github.com/dagchain/pagechain/cmdchannel"
	"github.com/dagchain/pagechain/config"
	"github.com/dagchain/pagechain/internal/logs"
	"github.com/dagchain/pagechain/internal/panics"
	"github.com/dagchain/pagechain/logger"
	"github.com/dagchain/pagechain/miner"
	"github.com/dagchain/pagechain/network"
	"github.com/dagchain/pagechain/store"
)

var log, _ = logger.Get(logger.SubsystemTags.NODE)
var spawn = panics.GoroutineWrapperFunc(log)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.InitLogRotators(
		filepath.Join(cfg.DataDir, "logs", "pagechaind.log"),
		filepath.Join(cfg.DataDir, "logs", "pagechaind_err.log"),
	)
	defer logger.Close()
	logger.SetLogLevels(levelFromString(cfg.LogLevel))

	blockStore, err := chain.NewFileBlockStore(filepath.Join(cfg.DataDir, "blockchain"))
	if err != nil {
		return err
	}
	c := chain.New(blockStore)
	if err := c.ReplayFromStore(time.Now()); err != nil {
		return err
	}

	payloadStore, err := store.New(filepath.Join(cfg.DataDir, "data"))
	if err != nil {
		return err
	}

	netMgr := network.NewManager(c, payloadStore, listenPort(cfg.ListenAddr))
	for _, addr := range cfg.ConnectPeers {
		netMgr.AddKnownAddress(addr)
	}
	if err := netMgr.Listen(cfg.ListenAddr); err != nil {
		return err
	}
	netMgr.Start()
	defer netMgr.Stop()

	cmdSrv := cmdchannel.NewServer(c, payloadStore, netMgr, netMgr)
	if err := cmdSrv.Listen(cfg.CmdChannelAddr); err != nil {
		return err
	}
	defer cmdSrv.Stop()

	log.Infof("pagechaind listening: p2p=%s cmd=%s", cfg.ListenAddr, cfg.CmdChannelAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Mine {
		m := miner.New(c, netMgr, cfg.RewardAddress)
		spawn("miner", func() { m.Run(ctx) })
		log.Infof("mining to %s", cfg.RewardAddress)
	}

	waitForShutdown()
	return nil
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("received %s, shutting down", sig)
}

func levelFromString(s string) logs.Level {
	switch s {
	case "trace":
		return logs.LevelTrace
	case "debug":
		return logs.LevelDebug
	case "warn":
		return logs.LevelWarn
	case "error":
		return logs.LevelError
	case "critical":
		return logs.LevelCritical
	case "off":
		return logs.LevelOff
	default:
		return logs.LevelInfo
	}
}

// listenPort extracts the port pagechaind advertises to peers during
// the handshake from its configured P2P bind address.
func listenPort(bindAddr string) uint16 {
	_, portStr, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return uint16(port)
}
