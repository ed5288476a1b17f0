package aggregate

import (
	"errors"
	"fmt"
	"math"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/model"
)

// ErrNoStake is returned when there is no yyPTP staked to spread the rewards over.
var ErrNoStake = errors.New("no yyPTP staked")

// PoolEarnings computes the base and boosted PTP per year that a pool pays the yyPTP position.
//
// A pool without allocation earns nothing. A component whose denominator is zero also earns
// nothing instead of producing NaN or Inf.
func PoolEarnings(snap model.Snapshot, rec model.PoolRecord) model.PoolEarnings {
	out := model.PoolEarnings{PoolID: rec.PoolID, LPToken: rec.LPToken}
	if rec.AdjustedAllocPoint == 0 {
		return out
	}

	emitted := snap.PtpPerYear * rec.AdjustedAllocPoint
	dial := float64(snap.DialutingRepartition) / model.RepartitionScale
	nonDial := float64(snap.NonDialutingRepartition) / model.RepartitionScale

	if d := snap.TotalAdjustedAllocPoint * rec.TotalLpSupply; d != 0 {
		out.Base = emitted * dial * rec.UserAmount / d
	}
	if d := snap.TotalAdjustedAllocPoint * rec.SumOfFactors; d != 0 {
		out.Boosted = emitted * nonDial * rec.UserFactor / d
	}
	return out
}

// TotalEarned sums base and boosted earnings over all pools.
func TotalEarned(earnings []model.PoolEarnings) float64 {
	var total float64
	for _, e := range earnings {
		total += e.Total()
	}
	return total
}

// ConversionRatio prices yyPTP in PTP from the pair reserves, capped at par since yyPTP can
// always be minted 1:1. It returns 1 and false when reserve1 is not positive.
func ConversionRatio(reserve0, reserve1 float64) (float64, bool) {
	if reserve1 <= 0 {
		return 1, false
	}
	return math.Min(1, reserve0/reserve1), true
}

// ComputeAPR returns the nominal APR, assuming one yyPTP is worth one PTP, and the discounted
// APR, which values the stake at ratio.
func ComputeAPR(stakerEarnedPerYear, staked, ratio float64) (nominal, discounted float64, err error) {
	if staked <= 0 {
		return 0, 0, ErrNoStake
	}
	if ratio <= 0 {
		return 0, 0, fmt.Errorf("conversion ratio must be positive, got %v", ratio)
	}
	nominal = stakerEarnedPerYear / staked
	discounted = stakerEarnedPerYear / (staked * ratio)
	return nominal, discounted, nil
}
