// Package codec encodes contract calls and decodes their return data against an ABI.
package codec

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract describes a deployed contract: where it lives and which functions it exposes.
type Contract struct {
	Name    string
	Address common.Address
	ABI     abi.ABI
}

// NewContract parses abiJSON and binds it to address.
func NewContract(name string, address common.Address, abiJSON string) (Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return Contract{}, fmt.Errorf("parse %s abi: %w", name, err)
	}
	return Contract{Name: name, Address: address, ABI: parsed}, nil
}

// At returns a copy of the contract bound to another address.
// Useful for contracts discovered at runtime that share one interface, such as LP tokens.
func (c Contract) At(address common.Address) Contract {
	c.Address = address
	return c
}

// EncodingError reports call data that could not be built from the given arguments.
type EncodingError struct {
	Contract string
	Method   string
	Err      error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s.%s: %v", e.Contract, e.Method, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports return data that does not match the method outputs.
type DecodingError struct {
	Contract string
	Method   string
	Err      error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode %s.%s: %v", e.Contract, e.Method, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// Encode packs the method selector and arguments into call data.
func Encode(c Contract, method string, args ...interface{}) ([]byte, error) {
	if _, ok := c.ABI.Methods[method]; !ok {
		return nil, &EncodingError{Contract: c.Name, Method: method, Err: fmt.Errorf("method not found")}
	}
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, &EncodingError{Contract: c.Name, Method: method, Err: err}
	}
	return data, nil
}

// Decode unpacks return data of method.
//
// A method with a single output yields that value directly; any other arity yields a Tuple.
func Decode(c Contract, method string, data []byte) (interface{}, error) {
	m, ok := c.ABI.Methods[method]
	if !ok {
		return nil, &DecodingError{Contract: c.Name, Method: method, Err: fmt.Errorf("method not found")}
	}
	if len(m.Outputs) > 0 && len(data) == 0 {
		return nil, &DecodingError{Contract: c.Name, Method: method, Err: fmt.Errorf("empty return data")}
	}

	values, err := m.Outputs.Unpack(data)
	if err != nil {
		return nil, &DecodingError{Contract: c.Name, Method: method, Err: err}
	}
	if len(values) != len(m.Outputs) {
		return nil, &DecodingError{
			Contract: c.Name,
			Method:   method,
			Err:      fmt.Errorf("got %d values, want %d", len(values), len(m.Outputs)),
		}
	}

	if len(values) == 1 {
		return values[0], nil
	}

	names := make([]string, len(m.Outputs))
	for i, out := range m.Outputs {
		names[i] = out.Name
	}
	return Tuple{names: names, values: values}, nil
}
