package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tuple holds the ordered, named outputs of a multi-value method.
type Tuple struct {
	names  []string
	values []interface{}
}

// Len returns the number of fields.
func (t Tuple) Len() int { return len(t.values) }

// At returns the i-th field.
func (t Tuple) At(i int) interface{} { return t.values[i] }

// Field returns the field called name.
func (t Tuple) Field(name string) (interface{}, error) {
	for i, n := range t.names {
		if n == name {
			return t.values[i], nil
		}
	}
	return nil, fmt.Errorf("field %q not found", name)
}

// BigInt returns the named field as an integer.
func (t Tuple) BigInt(name string) (*big.Int, error) {
	v, err := t.Field(name)
	if err != nil {
		return nil, err
	}
	out, err := AsBigInt(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Address returns the named field as an address.
func (t Tuple) Address(name string) (common.Address, error) {
	v, err := t.Field(name)
	if err != nil {
		return common.Address{}, err
	}
	out, err := AsAddress(v)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// AsBigInt converts any decoded integer to a fresh *big.Int.
func AsBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

// AsAddress converts a decoded address value.
func AsAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		if v == nil {
			return common.Address{}, fmt.Errorf("nil address")
		}
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}
