// Package config parses the node's runtime configuration: CLI flags,
// an optional TOML file, and the defaults a fresh node starts from.
package config

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/crypto"
)

const (
	defaultListenPort     = 9977
	defaultCmdChannelPort = 9988
	defaultLogFilename    = "pagechaind.log"
	defaultErrLogFilename = "pagechaind_err.log"
	defaultDataDirName    = "pagechaind"
)

// Config is the node's resolved runtime configuration.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to a TOML config file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store blocks and page payloads"`

	ListenAddr     string `long:"listen" description:"P2P gossip listen address"`
	CmdChannelAddr string `long:"cmdlisten" description:"Command channel listen address"`

	ConnectPeers []string `long:"connect" description:"Address of a peer to connect to at startup (may be repeated)"`

	Mine      bool   `long:"mine" description:"Mine blocks against the local chain"`
	RewardHex string `long:"rewardaddress" description:"Address (hex) to credit mined block rewards to, required with --mine"`

	LogLevel string `long:"loglevel" description:"Logging level: trace, debug, info, warn, error, critical"`

	RewardAddress crypto.Address
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+defaultDataDirName)
	}
	return filepath.Join(home, "."+defaultDataDirName)
}

func defaults() *Config {
	return &Config{
		DataDir:        defaultDataDir(),
		ListenAddr:     "0.0.0.0:9977",
		CmdChannelAddr: "0.0.0.0:9988",
		LogLevel:       "info",
	}
}

// Load parses CLI flags, layers an optional TOML file over the
// defaults, and validates the result. Flags take precedence over the
// file; the file takes precedence over defaults.
func Load() (*Config, error) {
	cfg := defaults()

	preParse := &Config{}
	parser := flags.NewParser(preParse, flags.PrintErrors|flags.IgnoreUnknown|flags.HelpFlag)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	if preParse.ConfigFile != "" {
		if _, err := toml.DecodeFile(preParse.ConfigFile, cfg); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", preParse.ConfigFile)
		}
	}

	parser = flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if cfg.Mine {
		if cfg.RewardHex == "" {
			return nil, errors.New("--rewardaddress is required with --mine")
		}
		addr, err := parseAddressHex(cfg.RewardHex)
		if err != nil {
			return nil, errors.Wrap(err, "parsing --rewardaddress")
		}
		cfg.RewardAddress = addr
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, errors.Wrapf(err, "creating data directory %s", cfg.DataDir)
	}

	return cfg, nil
}

func parseAddressHex(s string) (crypto.Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return crypto.Address{}, errors.Wrap(err, "decoding hex address")
	}
	return crypto.HashFromBytes(b)
}
