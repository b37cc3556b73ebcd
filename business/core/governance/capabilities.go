package governance

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Capability is the typed descriptor for one contract method.
type Capability struct {
	Name     string
	ReadOnly bool
	Payable  bool
	method   abi.Method
}

// Inputs returns the solidity types of the method arguments.
func (c Capability) Inputs() []string {
	return argTypes(c.method.Inputs)
}

// Outputs returns the solidity types of the method return values.
func (c Capability) Outputs() []string {
	return argTypes(c.method.Outputs)
}

// Signature returns the canonical method signature.
func (c Capability) Signature() string {
	return c.method.Sig
}

// Pack validates and coerces the arguments against the method inputs and
// returns the call data including the method selector.
func (c Capability) Pack(args ...any) ([]byte, error) {
	values, err := coerceArgs(c.Name, c.method.Inputs, args)
	if err != nil {
		return nil, err
	}

	data, err := c.method.Inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", c.Name, ErrArgumentType, err)
	}

	return append(append([]byte{}, c.method.ID...), data...), nil
}

// Unpack decodes return data into Go values.
func (c Capability) Unpack(data []byte) ([]any, error) {
	if len(c.method.Outputs) == 0 {
		return nil, nil
	}

	out, err := c.method.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%s: unpack: %w", c.Name, err)
	}

	return out, nil
}

// =============================================================================

// Capabilities is the set of methods a contract exposes.
type Capabilities struct {
	abi     abi.ABI
	methods map[string]Capability
}

// NewCapabilities parses the ABI and builds the capability set.
func NewCapabilities(abiJSON string) (*Capabilities, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	methods := make(map[string]Capability, len(parsed.Methods))
	for name, m := range parsed.Methods {
		methods[name] = Capability{
			Name:     name,
			ReadOnly: m.IsConstant(),
			Payable:  m.IsPayable(),
			method:   m,
		}
	}

	return &Capabilities{abi: parsed, methods: methods}, nil
}

// ABI returns the parsed ABI.
func (c *Capabilities) ABI() abi.ABI {
	return c.abi
}

// Lookup returns the capability for the method name.
func (c *Capabilities) Lookup(name string) (Capability, error) {
	cp, exists := c.methods[name]
	if !exists {
		return Capability{}, fmt.Errorf("%q: %w", name, ErrUnknownMethod)
	}
	return cp, nil
}

// Resolve returns the first of the names the contract implements.
func (c *Capabilities) Resolve(names ...string) (Capability, error) {
	for _, name := range names {
		if cp, exists := c.methods[name]; exists {
			return cp, nil
		}
	}
	return Capability{}, fmt.Errorf("%s: %w", strings.Join(names, "|"), ErrUnknownMethod)
}

// Has reports whether the method exists.
func (c *Capabilities) Has(name string) bool {
	_, exists := c.methods[name]
	return exists
}

// Names returns the method names in sorted order.
func (c *Capabilities) Names() []string {
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PackConstructor coerces and packs constructor arguments.
func (c *Capabilities) PackConstructor(args ...any) ([]byte, error) {
	values, err := coerceArgs("constructor", c.abi.Constructor.Inputs, args)
	if err != nil {
		return nil, err
	}

	data, err := c.abi.Constructor.Inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("constructor: %w: %w", ErrArgumentType, err)
	}

	return data, nil
}

// =============================================================================

func argTypes(args abi.Arguments) []string {
	types := make([]string, len(args))
	for i, arg := range args {
		types[i] = arg.Type.String()
	}
	return types
}

func coerceArgs(name string, inputs abi.Arguments, args []any) ([]any, error) {
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", name, ErrArgumentCount, len(args), len(inputs))
	}

	values := make([]any, len(args))
	for i, arg := range args {
		v, err := Coerce(inputs[i].Type, arg)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d (%s): %w", name, i, inputs[i].Type.String(), err)
		}
		values[i] = v
	}

	return values, nil
}

// Coerce converts a loosely typed value into the Go type the ABI packer
// expects for t.
func Coerce(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return toAddress(v)

	case abi.BoolTy:
		return toBool(v)

	case abi.StringTy:
		if s, ok := v.(string); ok {
			return s, nil
		}

	case abi.BytesTy:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			if b, ok := decodeHex(x); ok {
				return b, nil
			}
			return []byte(x), nil
		}

	case abi.FixedBytesTy:
		return toFixedBytes(t, v)

	case abi.IntTy, abi.UintTy:
		return toInteger(t, v)

	default:
		return v, nil
	}

	return nil, fmt.Errorf("%w: cannot use %T", ErrArgumentType, v)
}

func toAddress(v any) (common.Address, error) {
	switch x := v.(type) {
	case common.Address:
		return x, nil
	case *common.Address:
		if x != nil {
			return *x, nil
		}
	case string:
		if common.IsHexAddress(x) {
			return common.HexToAddress(x), nil
		}
		return common.Address{}, fmt.Errorf("%w: %q is not an address", ErrArgumentType, x)
	}

	return common.Address{}, fmt.Errorf("%w: cannot use %T as address", ErrArgumentType, v)
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err == nil {
			return b, nil
		}
	}

	return false, fmt.Errorf("%w: cannot use %T as bool", ErrArgumentType, v)
}

// toFixedBytes left aligns the value into a byte array of the type size.
// Strings are taken as hex when 0x prefixed, otherwise as text.
func toFixedBytes(t abi.Type, v any) (any, error) {
	var b []byte
	switch x := v.(type) {
	case []byte:
		b = x
	case common.Hash:
		b = x.Bytes()
	case [32]byte:
		b = x[:]
	case string:
		if d, ok := decodeHex(x); ok {
			b = d
		} else {
			b = []byte(x)
		}
	default:
		return nil, fmt.Errorf("%w: cannot use %T as %s", ErrArgumentType, v, t.String())
	}

	if len(b) > t.Size {
		return nil, fmt.Errorf("%w: %d bytes do not fit %s", ErrArgumentType, len(b), t.String())
	}

	arr := reflect.New(t.GetType()).Elem()
	reflect.Copy(arr, reflect.ValueOf(b))

	return arr.Interface(), nil
}

var bigType = reflect.TypeOf(&big.Int{})

func toInteger(t abi.Type, v any) (any, error) {
	n, err := toBig(v)
	if err != nil {
		return nil, err
	}

	unsigned := t.T == abi.UintTy
	switch {
	case unsigned && n.Sign() < 0:
		return nil, fmt.Errorf("%w: %s is negative for %s", ErrArgumentType, n, t.String())

	case unsigned && n.BitLen() > t.Size:
		return nil, fmt.Errorf("%w: %s overflows %s", ErrArgumentType, n, t.String())

	case !unsigned:
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%w: %s overflows %s", ErrArgumentType, n, t.String())
		}
	}

	target := t.GetType()
	if target == bigType {
		return n, nil
	}

	if unsigned {
		return reflect.ValueOf(n.Uint64()).Convert(target).Interface(), nil
	}
	return reflect.ValueOf(n.Int64()).Convert(target).Interface(), nil
}

func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrArgumentType)
		}
		return new(big.Int).Set(x), nil

	case string:
		s, base := x, 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s, base = s[2:], 16
		}
		n, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a number", ErrArgumentType, x)
		}
		return n, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}

	return nil, fmt.Errorf("%w: cannot use %T as integer", ErrArgumentType, v)
}

func decodeHex(s string) ([]byte, bool) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, false
	}

	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, false
	}
	return b, true
}
