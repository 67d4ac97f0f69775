package network

import (
	"time"

	"github.com/dagchain/pagechain/internal/panics"
	"github.com/dagchain/pagechain/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.NETW)

var spawn = panics.GoroutineWrapperFunc(log)

// connectTimeout bounds an outbound dial attempt.
const connectTimeout = 1 * time.Second

// discoveryInterval is how often the manager sweeps known addresses and
// pings established peers.
const discoveryInterval = 1 * time.Second

// maxKnownAddresses bounds the known-address set accepted from peers.
const maxKnownAddresses = 4096
