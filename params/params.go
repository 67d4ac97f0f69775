// Package params holds the network-wide constants, shared by the
// validator and chain engine so the retarget schedule and block reward
// can't drift out of sync between them.
package params

import "time"

// BlockTime is the target average interval between blocks.
const BlockTime = 10 * time.Second

// BlockSampleSize is the number of blocks in a retarget window.
const BlockSampleSize = 100

// GenesisReward is the constant block subsidy paid to a block's miner.
// There is no halving schedule.
const GenesisReward = 10
