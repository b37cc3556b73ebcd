// Package genesis maintains access to the genesis file and the pregenesis
// precompiler that bakes the initial whitelist into the governance contract.
package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ardanlabs/poagov/foundation/validate"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultPOAAddress is where nodes expect the governance contract when the
// genesis file does not say otherwise.
const DefaultPOAAddress = "0XABBAABBAABBAABBAABBAABBAABBAABBAABBAABBA"

// Person is a preauthorised member of the initial whitelist.
type Person struct {
	Address string `json:"address" validate:"required,account"`
	Moniker string `json:"moniker" validate:"required,max=32"`
}

// Contract describes a contract the precompiler should build into the
// genesis file.
type Contract struct {
	Address       string   `json:"address" validate:"required,account"`
	Balance       string   `json:"balance,omitempty"`
	Filename      string   `json:"filename" validate:"required"`
	ContractName  string   `json:"contractname" validate:"required"`
	Authorising   bool     `json:"authorising,omitempty"`
	PreAuthorised []Person `json:"preauthorised" validate:"dive"`
}

// Precompiler is the section of a pregenesis file listing the contracts
// to compile.
type Precompiler struct {
	Contracts []Contract `json:"contracts" validate:"required,dive"`
}

// Alloc is the initial state of an account.
type Alloc struct {
	Balance     string `json:"balance,omitempty"`
	Code        string `json:"code,omitempty"`
	Authorising bool   `json:"authorising,omitempty"`
}

// POA is the governance contract a node starts with.
type POA struct {
	Address   string   `json:"address"`
	ABI       string   `json:"abi"`
	Code      string   `json:"code"`
	Whitelist []Person `json:"whitelist,omitempty"`
}

// Genesis represents the genesis file. A pregenesis file has the same shape
// with a precompiler section and no poa section.
type Genesis struct {
	Alloc       map[string]Alloc `json:"alloc,omitempty"`
	POA         *POA             `json:"poa,omitempty"`
	Precompiler *Precompiler     `json:"precompiler,omitempty"`
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decode %s: %w", path, err)
	}

	if genesis.Precompiler != nil {
		if err := validate.Check(genesis.Precompiler); err != nil {
			return Genesis{}, fmt.Errorf("precompiler: %w", err)
		}
	}

	return genesis, nil
}

// Save writes the genesis file.
func Save(path string, genesis Genesis) error {
	data, err := json.MarshalIndent(genesis, "", "   ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// POAAddress returns the governance contract address from the genesis file
// or the default address.
func (g Genesis) POAAddress() common.Address {
	if g.POA != nil && g.POA.Address != "" {
		return common.HexToAddress(g.POA.Address)
	}
	return common.HexToAddress(DefaultPOAAddress)
}

// Balances returns the starting balance of every allocated account.
func (g Genesis) Balances() (map[common.Address]*big.Int, error) {
	balances := make(map[common.Address]*big.Int, len(g.Alloc))
	for addr, alloc := range g.Alloc {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("alloc: invalid address %q", addr)
		}

		balance, err := ParseBalance(alloc.Balance)
		if err != nil {
			return nil, fmt.Errorf("alloc %s: %w", addr, err)
		}

		balances[common.HexToAddress(addr)] = balance
	}

	return balances, nil
}

// ParseBalance accepts a decimal or 0x prefixed hex amount. An empty value
// is zero.
func ParseBalance(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid balance %q", s)
	}

	return v, nil
}

// TidyAddress formats an address the way genesis files key accounts:
// an upper case 0X prefix followed by upper case hex.
func TidyAddress(address string) string {
	address = strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	return "0X" + strings.ToUpper(address)
}
