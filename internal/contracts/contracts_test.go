package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addrs = Addresses{
	YyPTP:        common.HexToAddress("0x40089e90156fc6f994cc0ec86dbe84634a1c156f"),
	YyPTPStaking: common.HexToAddress("0x9bc36cc686800be1905bf7e10578ee6fbdd6f27a"),
	Pair:         common.HexToAddress("0x7a8ae10536d6920aa609d12775ffe6d73376668f"),
	Master:       common.HexToAddress("0x68c5f4374228beedfa078e77b5ed93c28a2f713e"),
}

func outputNames(m abi.Method) []string {
	names := make([]string, 0, len(m.Outputs))
	for _, out := range m.Outputs {
		names = append(names, out.Name)
	}
	return names
}

func TestLoad_BindsAddresses(t *testing.T) {
	set, err := Load(addrs)
	require.NoError(t, err)

	assert.Equal(t, addrs.YyPTP, set.YyPTP)
	assert.Equal(t, addrs.Master, set.Master.Address)
	assert.Equal(t, addrs.YyPTPStaking, set.Staking.Address)
	assert.Equal(t, addrs.Pair, set.Pair.Address)
	assert.Equal(t, common.Address{}, set.LPToken.Address)

	assert.Equal(t, "MasterPlatypusV3", set.Master.Name)
	assert.Equal(t, "yyPTPStaking", set.Staking.Name)
	assert.Equal(t, "PTP-yyPTP", set.Pair.Name)
	assert.Equal(t, "LPToken", set.LPToken.Name)
}

func TestLoad_Methods(t *testing.T) {
	set, err := Load(addrs)
	require.NoError(t, err)

	tests := []struct {
		contract string
		abi      abi.ABI
		methods  []string
	}{
		{
			contract: "master",
			abi:      set.Master.ABI,
			methods: []string{
				MethodPtpPerSec, MethodTotalAdjustedAllocPoint, MethodPoolLength,
				MethodDialutingRepartition, MethodNonDialutingRepartition, MethodPoolInfo, MethodUserInfo,
			},
		},
		{contract: "staking", abi: set.Staking.ABI, methods: []string{MethodInternalBalance}},
		{contract: "pair", abi: set.Pair.ABI, methods: []string{MethodBalanceOf, MethodGetReserves}},
		{contract: "lp token", abi: set.LPToken.ABI, methods: []string{MethodBalanceOf, MethodGetReserves}},
	}

	for _, tt := range tests {
		t.Run(tt.contract, func(t *testing.T) {
			assert.Len(t, tt.abi.Methods, len(tt.methods))
			for _, name := range tt.methods {
				_, ok := tt.abi.Methods[name]
				assert.True(t, ok, name)
			}
		})
	}
}

func TestLoad_TupleOutputs(t *testing.T) {
	set, err := Load(addrs)
	require.NoError(t, err)

	assert.Subset(t, outputNames(set.Master.ABI.Methods[MethodPoolInfo]), []string{"lpToken", "sumOfFactors", "adjustedAllocPoint"})
	assert.Equal(t, []string{"amount", "rewardDebt", "factor"}, outputNames(set.Master.ABI.Methods[MethodUserInfo]))
	assert.Equal(t, []string{"_reserve0", "_reserve1", "_blockTimestampLast"}, outputNames(set.Pair.ABI.Methods[MethodGetReserves]))

	userInfo := set.Master.ABI.Methods[MethodUserInfo]
	require.Len(t, userInfo.Inputs, 2)
	assert.Equal(t, abi.AddressTy, userInfo.Inputs[1].Type.T)
}

func TestLoad_Selectors(t *testing.T) {
	set, err := Load(addrs)
	require.NoError(t, err)

	assert.Equal(t, "0x70a08231", hexutil.Encode(set.Pair.ABI.Methods[MethodBalanceOf].ID))
	assert.Equal(t, "0x0902f1ac", hexutil.Encode(set.Pair.ABI.Methods[MethodGetReserves].ID))
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    common.Address
		wantErr bool
	}{
		{name: "checksummed", value: "0x68c5f4374228BEEdFa078e77b5ed93C28a2f713E", want: addrs.Master},
		{name: "lower case", value: "0x68c5f4374228beedfa078e77b5ed93c28a2f713e", want: addrs.Master},
		{name: "without prefix", value: "68c5f4374228beedfa078e77b5ed93c28a2f713e", want: addrs.Master},
		{name: "too short", value: "0x1234", wantErr: true},
		{name: "not hex", value: "0xzzc5f4374228beedfa078e77b5ed93c28a2f713e", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress("master-address", tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "master-address")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
