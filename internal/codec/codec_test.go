package codec

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testABI = `[
  {"inputs": [], "name": "poolLength", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "", "type": "uint256"}, {"name": "", "type": "address"}], "name": "userInfo", "outputs": [
    {"name": "amount", "type": "uint256"},
    {"name": "rewardDebt", "type": "uint256"},
    {"name": "factor", "type": "uint256"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getReserves", "outputs": [
    {"name": "_reserve0", "type": "uint112"},
    {"name": "_reserve1", "type": "uint112"},
    {"name": "_blockTimestampLast", "type": "uint32"}
  ], "stateMutability": "view", "type": "function"}
]`

var account = common.HexToAddress("0x40089e90156fc6f994cc0ec86dbe84634a1c156f")

func testContract(t *testing.T) Contract {
	t.Helper()
	c, err := NewContract("test", common.HexToAddress("0x68c5f4374228beedfa078e77b5ed93c28a2f713e"), testABI)
	require.NoError(t, err)
	return c
}

func TestEncode(t *testing.T) {
	c := testContract(t)

	data, err := Encode(c, "userInfo", big.NewInt(3), account)
	require.NoError(t, err)
	assert.Len(t, data, 4+32+32)
	assert.Equal(t, c.ABI.Methods["userInfo"].ID, data[:4])

	data, err = Encode(c, "poolLength")
	require.NoError(t, err)
	assert.Len(t, data, 4)
}

func TestEncode_Errors(t *testing.T) {
	c := testContract(t)

	tests := []struct {
		name   string
		method string
		args   []interface{}
	}{
		{name: "unknown method", method: "missing"},
		{name: "too few arguments", method: "userInfo", args: []interface{}{big.NewInt(1)}},
		{name: "too many arguments", method: "poolLength", args: []interface{}{big.NewInt(1)}},
		{name: "wrong argument type", method: "balanceOf", args: []interface{}{"not an address"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(c, tt.method, tt.args...)
			var encErr *EncodingError
			require.True(t, errors.As(err, &encErr), "got %v", err)
			assert.Equal(t, tt.method, encErr.Method)
		})
	}
}

func TestDecode_ScalarUnwrap(t *testing.T) {
	c := testContract(t)

	data, err := c.ABI.Methods["poolLength"].Outputs.Pack(big.NewInt(27))
	require.NoError(t, err)

	got, err := Decode(c, "poolLength", data)
	require.NoError(t, err)

	n, err := AsBigInt(got)
	require.NoError(t, err)
	assert.Equal(t, int64(27), n.Int64())
}

func TestDecode_Tuple(t *testing.T) {
	c := testContract(t)

	data, err := c.ABI.Methods["getReserves"].Outputs.Pack(big.NewInt(500), big.NewInt(1000), uint32(1700000000))
	require.NoError(t, err)

	got, err := Decode(c, "getReserves", data)
	require.NoError(t, err)

	tuple, ok := got.(Tuple)
	require.True(t, ok, "expected Tuple, got %T", got)
	assert.Equal(t, 3, tuple.Len())

	r0, err := tuple.BigInt("_reserve0")
	require.NoError(t, err)
	assert.Equal(t, int64(500), r0.Int64())

	r1, err := AsBigInt(tuple.At(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), r1.Int64())

	ts, err := tuple.BigInt("_blockTimestampLast")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Int64())

	_, err = tuple.BigInt("missing")
	assert.Error(t, err)
	_, err = tuple.Address("_reserve0")
	assert.Error(t, err)
}

func TestDecode_Errors(t *testing.T) {
	c := testContract(t)

	tests := []struct {
		name   string
		method string
		data   []byte
	}{
		{name: "empty payload", method: "poolLength", data: nil},
		{name: "truncated payload", method: "userInfo", data: make([]byte, 40)},
		{name: "unknown method", method: "missing", data: make([]byte, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(c, tt.method, tt.data)
			var decErr *DecodingError
			require.True(t, errors.As(err, &decErr), "got %v", err)
		})
	}
}

func TestContractAt(t *testing.T) {
	c := testContract(t)
	other := common.HexToAddress("0x1111111111111111111111111111111111111111")

	bound := c.At(other)
	assert.Equal(t, other, bound.Address)
	assert.NotEqual(t, other, c.Address)
}
