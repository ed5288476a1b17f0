// Package model defines the values that flow through one APR computation.
package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SecondsPerYear converts a per-second emission rate into a yearly one.
const SecondsPerYear = 60 * 60 * 24 * 365

// RepartitionScale is the denominator of the dialuting and non-dialuting repartitions.
const RepartitionScale = 1000

// PoolRecord holds the per-pool values read from MasterPlatypusV3 and the pool's LP token,
// already converted to decimal amounts.
type PoolRecord struct {
	PoolID  int            `json:"pool_id"`
	LPToken common.Address `json:"lp_token"`

	// AdjustedAllocPoint is the pool's share weight of emissions (18 decimals on chain).
	AdjustedAllocPoint float64 `json:"adjusted_alloc_point"`

	// SumOfFactors is the sum of all boost factors of the pool (12 decimals on chain).
	SumOfFactors float64 `json:"sum_of_factors"`

	// TotalLpSupply is the LP balance held by the master contract (6 decimals on chain).
	TotalLpSupply float64 `json:"total_lp_supply"`

	// UserAmount and UserFactor describe the yyPTP position in the pool.
	UserAmount float64 `json:"user_amount"`
	UserFactor float64 `json:"user_factor"`
}

// Snapshot is the protocol-wide state read at a single block before the per-pool fan-out.
type Snapshot struct {
	Block                   uint64  `json:"block"`
	PtpPerSec               float64 `json:"ptp_per_sec"`
	PtpPerYear              float64 `json:"ptp_per_year"`
	TotalAdjustedAllocPoint float64 `json:"total_adjusted_alloc_point"`
	PoolCount               int     `json:"pool_count"`
	DialutingRepartition    int64   `json:"dialuting_repartition"`
	NonDialutingRepartition int64   `json:"non_dialuting_repartition"`
}

// PoolEarnings is the PTP a single pool pays the yyPTP position per year.
type PoolEarnings struct {
	PoolID  int            `json:"pool_id"`
	LPToken common.Address `json:"lp_token"`
	Base    float64        `json:"base_ptp_per_year"`
	Boosted float64        `json:"boosted_ptp_per_year"`
}

// Total returns base plus boosted earnings.
func (e PoolEarnings) Total() float64 {
	return e.Base + e.Boosted
}

// SkippedPool names a pool left out of the sum and why.
type SkippedPool struct {
	PoolID int    `json:"pool_id"`
	Reason string `json:"reason"`
}

// Result is the outcome of one APR computation. Every figure was read at Block.
type Result struct {
	Block uint64 `json:"block"`

	TotalPTPEarnedPerYear   float64 `json:"total_ptp_earned_per_year"`
	StakerEarnedPerYear     float64 `json:"staker_ptp_earned_per_year"`
	StakedAmount            float64 `json:"yyptp_staked"`
	Reserve0                float64 `json:"reserve0"`
	Reserve1                float64 `json:"reserve1"`
	ConversionRatio         float64 `json:"conversion_ratio"`
	StakedAmountInBaseToken float64 `json:"yyptp_staked_in_ptp"`

	// APRNominal assumes one yyPTP is worth one PTP. APRDiscounted prices yyPTP at the pair ratio.
	// Both are fractions, 0.15 means 15%.
	APRNominal    float64 `json:"apr_nominal"`
	APRDiscounted float64 `json:"apr_discounted"`

	Pools       []PoolEarnings `json:"pools"`
	Skipped     []SkippedPool  `json:"skipped,omitempty"`
	CollectedAt int64          `json:"collected_at"`
}

// NominalPercent returns APRNominal in percent.
func (r Result) NominalPercent() float64 {
	return 100 * r.APRNominal
}

// DiscountedPercent returns APRDiscounted in percent.
func (r Result) DiscountedPercent() float64 {
	return 100 * r.APRDiscounted
}

// Age returns how long ago the result was collected.
func (r Result) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(r.CollectedAt, 0))
}
