// Package aggregate reads the Platypus and yyPTP contracts at one block and turns their state
// into the yyPTP staking APR.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/chain"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/codec"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/contracts"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/decimals"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/metrics"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/model"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/otel"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/validation"
)

// On-chain decimal places of the values read.
const (
	ptpDecimals        = 18
	allocPointDecimals = 18
	lpDecimals         = 6
	factorDecimals     = 12
	yyPTPDecimals      = 18
	reserveDecimals    = 18
)

const (
	defaultWorkers     = 8
	defaultRewardShare = 0.15
	defaultMaxPools    = 1000
)

// Caller reads contract state pinned to a block. *chain.Caller satisfies it.
type Caller interface {
	LatestBlock(ctx context.Context) (chain.Block, error)
	Call(ctx context.Context, contract codec.Contract, method string, block chain.Block, args ...interface{}) (interface{}, error)
}

// Options configures an Aggregator.
type Options struct {
	Contracts contracts.Set

	// RewardShare is the fraction of the PTP earned by yyPTP deposits that goes to stakers.
	RewardShare float64

	// Workers bounds how many pools are fetched at once.
	Workers int

	// MaxPools caps the poolLength the aggregator accepts before reading pools.
	MaxPools int

	// Strict aborts the run when any pool cannot be read instead of skipping it.
	Strict bool

	Validation validation.ValidationOptions
}

// Aggregator computes the yyPTP APR.
type Aggregator struct {
	caller  Caller
	opts    Options
	logger  *logrus.Logger
	metrics *metrics.Collector
}

// New creates an Aggregator. logger and m may be nil.
func New(caller Caller, opts Options, logger *logrus.Logger, m *metrics.Collector) *Aggregator {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MaxPools <= 0 {
		opts.MaxPools = defaultMaxPools
	}
	if opts.RewardShare == 0 {
		opts.RewardShare = defaultRewardShare
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Aggregator{caller: caller, opts: opts, logger: logger, metrics: m}
}

// Run performs one full computation. Every contract read of the run uses the same block.
func (a *Aggregator) Run(ctx context.Context) (model.Result, error) {
	start := time.Now()
	ctx, span := otel.Start(ctx, "aggregate.Run")
	defer span.End()

	result, err := a.run(ctx)
	if err != nil {
		otel.RecordError(ctx, err)
		a.metrics.RunFailed(time.Since(start))
		return model.Result{}, err
	}

	span.SetAttributes(
		attribute.Int64("block", int64(result.Block)),
		attribute.Int("pools.skipped", len(result.Skipped)),
	)
	a.metrics.RunSucceeded(time.Since(start), result.Block, result.NominalPercent(), result.DiscountedPercent(), len(result.Skipped))
	return result, nil
}

func (a *Aggregator) run(ctx context.Context) (model.Result, error) {
	snap, err := a.Prerequisites(ctx)
	if err != nil {
		return model.Result{}, err
	}
	block := chain.Block(snap.Block)

	records, skipped, err := a.CollectPools(ctx, snap)
	if err != nil {
		return model.Result{}, err
	}

	earnings := make([]model.PoolEarnings, 0, len(records))
	for _, rec := range records {
		earnings = append(earnings, PoolEarnings(snap, rec))
	}
	total := TotalEarned(earnings)
	a.logger.Infof("Total PTP earned per year = %v PTP", total)

	stakerEarned := a.opts.RewardShare * total
	a.logger.Infof("PTP rewards to yyPTP stakers per year = %v PTP", stakerEarned)

	c := a.opts.Contracts

	a.logger.Info("Getting amount of yyPTP staked...")
	staked, err := a.callDecimal(ctx, c.Staking, contracts.MethodInternalBalance, block, yyPTPDecimals)
	if err != nil {
		return model.Result{}, fmt.Errorf("read internalBalance: %w", err)
	}
	a.logger.Infof("yyPTP staked = %v", staked)

	a.logger.Info("Getting reserve info for PTP-yyPTP...")
	reserve0, reserve1, err := a.reserves(ctx, block)
	if err != nil {
		return model.Result{}, fmt.Errorf("read getReserves: %w", err)
	}
	a.logger.Infof("PTP-yyPTP pair currently has %.2f... PTP and %.2f... yyPTP", reserve0, reserve1)

	ratio, ok := ConversionRatio(reserve0, reserve1)
	if !ok {
		a.logger.WithFields(logrus.Fields{
			"reserve0": reserve0,
			"reserve1": reserve1,
		}).Warn("Pair has no yyPTP reserve, assuming 1:1 ratio")
	}
	a.logger.Infof("PTP to yyPTP ratio = %v", ratio)

	nominal, discounted, err := ComputeAPR(stakerEarned, staked, ratio)
	if err != nil {
		return model.Result{}, err
	}

	result := model.Result{
		Block:                   snap.Block,
		TotalPTPEarnedPerYear:   total,
		StakerEarnedPerYear:     stakerEarned,
		StakedAmount:            staked,
		Reserve0:                reserve0,
		Reserve1:                reserve1,
		ConversionRatio:         ratio,
		StakedAmountInBaseToken: staked * ratio,
		APRNominal:              nominal,
		APRDiscounted:           discounted,
		Pools:                   earnings,
		Skipped:                 skipped,
		CollectedAt:             time.Now().Unix(),
	}

	if err := validation.CheckResult(result, a.opts.Validation); err != nil {
		return model.Result{}, err
	}
	return result, nil
}

// Prerequisites reads the head block and the protocol-wide values at that block.
func (a *Aggregator) Prerequisites(ctx context.Context) (model.Snapshot, error) {
	c := a.opts.Contracts

	a.logger.Info("Getting latest blockNumber...")
	block, err := a.caller.LatestBlock(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read latest block: %w", err)
	}
	a.logger.Infof("Latest block has been retrieved, number = %d, hexValue = %s", uint64(block), block.String())

	snap := model.Snapshot{Block: uint64(block)}

	a.logger.Info("Getting the ptpPerSec for MasterPlatypusV3 contract...")
	snap.PtpPerSec, err = a.callDecimal(ctx, c.Master, contracts.MethodPtpPerSec, block, ptpDecimals)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read ptpPerSec: %w", err)
	}
	snap.PtpPerYear = snap.PtpPerSec * model.SecondsPerYear
	a.logger.Infof("ptpPerSec = %v PTP", snap.PtpPerSec)

	a.logger.Info("Getting the totalAdjustedAllocPoint for MasterPlatypusV3 contract...")
	snap.TotalAdjustedAllocPoint, err = a.callDecimal(ctx, c.Master, contracts.MethodTotalAdjustedAllocPoint, block, allocPointDecimals)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read totalAdjustedAllocPoint: %w", err)
	}
	a.logger.Infof("totalAdjustedAllocPoint = %v", snap.TotalAdjustedAllocPoint)

	a.logger.Info("Getting the poolLength for MasterPlatypusV3 contract...")
	poolLength, err := a.callInt(ctx, c.Master, contracts.MethodPoolLength, block)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read poolLength: %w", err)
	}
	if poolLength > int64(a.opts.MaxPools) {
		return model.Snapshot{}, fmt.Errorf("read poolLength: %d pools exceeds limit of %d", poolLength, a.opts.MaxPools)
	}
	snap.PoolCount = int(poolLength)
	a.logger.Infof("poolLength = %d", snap.PoolCount)

	a.logger.Info("Getting the dialutingRepartition and nonDialutingRepartition for MasterPlatypusV3 contract...")
	snap.DialutingRepartition, err = a.callInt(ctx, c.Master, contracts.MethodDialutingRepartition, block)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read dialutingRepartition: %w", err)
	}
	snap.NonDialutingRepartition, err = a.callInt(ctx, c.Master, contracts.MethodNonDialutingRepartition, block)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read nonDialutingRepartition: %w", err)
	}
	a.logger.Infof("dialutingRepartition = %d, nonDialutingRepartition = %d", snap.DialutingRepartition, snap.NonDialutingRepartition)

	return snap, nil
}

// CollectPools reads every pool at the snapshot block on a bounded worker pool.
//
// Pools that cannot be read or fail validation are returned as skipped, unless the
// aggregator is strict, in which case the first failure aborts the collection.
func (a *Aggregator) CollectPools(ctx context.Context, snap model.Snapshot) ([]model.PoolRecord, []model.SkippedPool, error) {
	if snap.PoolCount <= 0 {
		return nil, nil, nil
	}
	if snap.PoolCount > a.opts.MaxPools {
		return nil, nil, fmt.Errorf("pool count %d exceeds limit of %d", snap.PoolCount, a.opts.MaxPools)
	}
	block := chain.Block(snap.Block)

	a.logger.Infof("Getting the poolInfo and userInfo for MasterPlatypusV3 contract for our %d pools...", snap.PoolCount)

	records := make([]model.PoolRecord, snap.PoolCount)
	failures := make([]error, snap.PoolCount)

	pool := pond.NewPool(a.opts.Workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i := 0; i < snap.PoolCount; i++ {
		poolID := i
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			rec, err := a.FetchPool(groupCtx, block, poolID)
			if err != nil {
				failures[poolID] = err
				if a.opts.Strict {
					return fmt.Errorf("pool %d: %w", poolID, err)
				}
				return nil
			}
			records[poolID] = rec
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if errors.Is(err, pond.ErrGroupStopped) && ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	fetched := make([]model.PoolRecord, 0, snap.PoolCount)
	var skipped []model.SkippedPool
	for poolID, err := range failures {
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"pool":  poolID,
				"block": snap.Block,
				"error": err,
			}).Warn("Skipping pool that could not be read")
			skipped = append(skipped, model.SkippedPool{PoolID: poolID, Reason: err.Error()})
			continue
		}
		fetched = append(fetched, records[poolID])
	}

	valid, rejected := validation.FilterPoolRecords(fetched, a.opts.Validation)
	if len(rejected) > 0 {
		if a.opts.Strict {
			return nil, nil, fmt.Errorf("pool %d: %s", rejected[0].PoolID, rejected[0].Reason)
		}
		for _, s := range rejected {
			a.logger.WithFields(logrus.Fields{
				"pool":   s.PoolID,
				"reason": s.Reason,
			}).Warn("Skipping pool with invalid values")
		}
		skipped = append(skipped, rejected...)
	}

	return valid, skipped, nil
}

// FetchPool reads poolInfo, the LP balance of the master contract and the yyPTP position
// of one pool.
func (a *Aggregator) FetchPool(ctx context.Context, block chain.Block, poolID int) (model.PoolRecord, error) {
	c := a.opts.Contracts
	id := big.NewInt(int64(poolID))
	rec := model.PoolRecord{PoolID: poolID}

	info, err := a.callTuple(ctx, c.Master, contracts.MethodPoolInfo, block, id)
	if err != nil {
		return model.PoolRecord{}, err
	}
	if rec.LPToken, err = info.Address("lpToken"); err != nil {
		return model.PoolRecord{}, err
	}
	if rec.AdjustedAllocPoint, err = tupleDecimal(info, "adjustedAllocPoint", allocPointDecimals); err != nil {
		return model.PoolRecord{}, err
	}
	if rec.SumOfFactors, err = tupleDecimal(info, "sumOfFactors", factorDecimals); err != nil {
		return model.PoolRecord{}, err
	}

	rec.TotalLpSupply, err = a.callDecimal(ctx, c.LPToken.At(rec.LPToken), contracts.MethodBalanceOf, block, lpDecimals, c.Master.Address)
	if err != nil {
		return model.PoolRecord{}, err
	}

	user, err := a.callTuple(ctx, c.Master, contracts.MethodUserInfo, block, id, c.YyPTP)
	if err != nil {
		return model.PoolRecord{}, err
	}
	if rec.UserAmount, err = tupleDecimal(user, "amount", lpDecimals); err != nil {
		return model.PoolRecord{}, err
	}
	if rec.UserFactor, err = tupleDecimal(user, "factor", factorDecimals); err != nil {
		return model.PoolRecord{}, err
	}

	a.logger.WithFields(logrus.Fields{
		"pool":     poolID,
		"lp_token": rec.LPToken.Hex(),
		"alloc":    rec.AdjustedAllocPoint,
	}).Debug("Pool fetched")

	return rec, nil
}

func (a *Aggregator) reserves(ctx context.Context, block chain.Block) (float64, float64, error) {
	t, err := a.callTuple(ctx, a.opts.Contracts.Pair, contracts.MethodGetReserves, block)
	if err != nil {
		return 0, 0, err
	}
	r0, err := tupleDecimal(t, "_reserve0", reserveDecimals)
	if err != nil {
		return 0, 0, err
	}
	r1, err := tupleDecimal(t, "_reserve1", reserveDecimals)
	if err != nil {
		return 0, 0, err
	}
	return r0, r1, nil
}

func (a *Aggregator) callDecimal(ctx context.Context, contract codec.Contract, method string, block chain.Block, places int, args ...interface{}) (float64, error) {
	v, err := a.caller.Call(ctx, contract, method, block, args...)
	if err != nil {
		return 0, err
	}
	n, err := codec.AsBigInt(v)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", contract.Name, method, err)
	}
	return decimals.FromBig(n, places)
}

func (a *Aggregator) callInt(ctx context.Context, contract codec.Contract, method string, block chain.Block) (int64, error) {
	v, err := a.caller.Call(ctx, contract, method, block)
	if err != nil {
		return 0, err
	}
	n, err := codec.AsBigInt(v)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", contract.Name, method, err)
	}
	if !n.IsInt64() || n.Sign() < 0 {
		return 0, fmt.Errorf("%s.%s: value %s out of range", contract.Name, method, n)
	}
	return n.Int64(), nil
}

func (a *Aggregator) callTuple(ctx context.Context, contract codec.Contract, method string, block chain.Block, args ...interface{}) (codec.Tuple, error) {
	v, err := a.caller.Call(ctx, contract, method, block, args...)
	if err != nil {
		return codec.Tuple{}, err
	}
	t, ok := v.(codec.Tuple)
	if !ok {
		return codec.Tuple{}, fmt.Errorf("%s.%s: expected tuple, got %T", contract.Name, method, v)
	}
	return t, nil
}

func tupleDecimal(t codec.Tuple, field string, places int) (float64, error) {
	n, err := t.BigInt(field)
	if err != nil {
		return 0, err
	}
	return decimals.FromBig(n, places)
}
