// Package contracts binds the Platypus and yyPTP contract interfaces to their deployed addresses.
package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/codec"
)

// Method names used by the APR computation.
const (
	MethodPtpPerSec               = "ptpPerSec"
	MethodTotalAdjustedAllocPoint = "totalAdjustedAllocPoint"
	MethodPoolLength              = "poolLength"
	MethodDialutingRepartition    = "dialutingRepartition"
	MethodNonDialutingRepartition = "nonDialutingRepartition"
	MethodPoolInfo                = "poolInfo"
	MethodUserInfo                = "userInfo"
	MethodBalanceOf               = "balanceOf"
	MethodGetReserves             = "getReserves"
	MethodInternalBalance         = "internalBalance"
)

// Addresses locates the deployed contracts.
type Addresses struct {
	YyPTP        common.Address
	YyPTPStaking common.Address
	Pair         common.Address
	Master       common.Address
}

// Set holds every contract the computation reads from.
type Set struct {
	// YyPTP is the account whose deposits in MasterPlatypusV3 earn the rewards.
	YyPTP   common.Address
	Master  codec.Contract
	Staking codec.Contract
	Pair    codec.Contract
	// LPToken has no address of its own; bind it per pool with At.
	LPToken codec.Contract
}

// Load parses the contract interfaces and binds them to addrs.
func Load(addrs Addresses) (Set, error) {
	master, err := codec.NewContract("MasterPlatypusV3", addrs.Master, masterPlatypusV3ABIJSON)
	if err != nil {
		return Set{}, err
	}
	staking, err := codec.NewContract("yyPTPStaking", addrs.YyPTPStaking, stakingABIJSON)
	if err != nil {
		return Set{}, err
	}
	pair, err := codec.NewContract("PTP-yyPTP", addrs.Pair, lpTokenABIJSON)
	if err != nil {
		return Set{}, err
	}
	lp, err := codec.NewContract("LPToken", common.Address{}, lpTokenABIJSON)
	if err != nil {
		return Set{}, err
	}

	return Set{
		YyPTP:   addrs.YyPTP,
		Master:  master,
		Staking: staking,
		Pair:    pair,
		LPToken: lp,
	}, nil
}

// ParseAddress validates a hex address from configuration.
func ParseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	return common.HexToAddress(value), nil
}
