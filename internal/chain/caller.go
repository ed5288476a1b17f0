// Package chain performs read-only contract calls pinned to a block.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/codec"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/otel"
)

// ErrEmptyResult is returned when an eth_call yields no data, usually because the target has no code.
var ErrEmptyResult = errors.New("chain: empty call result")

// Block is a block number as the node encodes it.
type Block = hexutil.Uint64

// Sender sends one JSON-RPC request. *rpc.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
}

// Caller issues eth_blockNumber and eth_call through a Sender.
type Caller struct {
	sender Sender
}

type callMsg struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// NewCaller returns a Caller that sends its requests through sender.
func NewCaller(sender Sender) *Caller {
	return &Caller{sender: sender}
}

// LatestBlock returns the current head block number.
func (c *Caller) LatestBlock(ctx context.Context) (Block, error) {
	raw, err := c.sender.Send(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	var block Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return 0, fmt.Errorf("parse block number %s: %w", string(raw), err)
	}
	return block, nil
}

// Call encodes method with args for contract, executes it at block and decodes the return data.
func (c *Caller) Call(ctx context.Context, contract codec.Contract, method string, block Block, args ...interface{}) (interface{}, error) {
	ctx, span := otel.Start(ctx, "chain.Call",
		attribute.String("contract", contract.Name),
		attribute.String("method", method),
		attribute.Int64("block", int64(block)),
	)
	defer span.End()

	data, err := codec.Encode(contract, method, args...)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, err
	}

	raw, err := c.sender.Send(ctx, "eth_call", callMsg{To: contract.Address, Data: data}, block)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, err
	}

	var out hexutil.Bytes
	if err := json.Unmarshal(raw, &out); err != nil {
		err = fmt.Errorf("parse %s.%s result: %w", contract.Name, method, err)
		otel.RecordError(ctx, err)
		return nil, err
	}
	if len(out) == 0 {
		err = fmt.Errorf("%s.%s at %s: %w", contract.Name, method, contract.Address.Hex(), ErrEmptyResult)
		otel.RecordError(ctx, err)
		return nil, err
	}

	value, err := codec.Decode(contract, method, out)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, err
	}
	return value, nil
}
