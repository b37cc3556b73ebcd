package genesis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ardanlabs/poagov/foundation/solc"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoMarkers is returned when a contract template has no generated region.
var ErrNoMarkers = errors.New("generated genesis markers not found")

var markers = regexp.MustCompile(`//GENERATED GENESIS BEGIN[\s\S]*GENERATED GENESIS END`)

// EventHandler defines a function that is called when events
// occur while precompiling.
type EventHandler func(v string, args ...any)

// CompileFunc compiles a Solidity source file.
type CompileFunc func(ctx context.Context, path string) (solc.Artifacts, error)

// Precompile holds the settings for processing a pregenesis file.
type Precompile struct {
	SourceDir string
	OutputDir string
	Compile   CompileFunc
	EvHandler EventHandler
}

// Process builds every contract in the precompiler section and returns the
// genesis file with its poa section populated. The contract sources and
// artifacts are written to the output directory along with genesis.json.
// When several contracts are listed the last one compiled becomes the poa
// contract.
func (p Precompile) Process(ctx context.Context, pre Genesis) (Genesis, error) {
	ev := func(v string, args ...any) {
		if p.EvHandler != nil {
			p.EvHandler(v, args...)
		}
	}

	compile := p.Compile
	if compile == nil {
		compile = solc.Compile
	}

	out := Genesis{
		Alloc: make(map[string]Alloc),
	}
	for addr, alloc := range pre.Alloc {
		out.Alloc[TidyAddress(addr)] = alloc
	}

	if pre.Precompiler == nil || len(pre.Precompiler.Contracts) == 0 {
		ev("genesis: Process: nothing to precompile")
		return out, p.write(out)
	}

	for i, ctr := range pre.Precompiler.Contracts {
		addr := TidyAddress(ctr.Address)

		alloc := out.Alloc[addr]
		if ctr.Balance != "" {
			alloc.Balance = ctr.Balance
		}
		out.Alloc[addr] = alloc

		tmpl, err := os.ReadFile(filepath.Join(p.SourceDir, ctr.Filename))
		if err != nil {
			return Genesis{}, fmt.Errorf("contract %d: %w", i, err)
		}

		src, err := InjectHardCodings(string(tmpl), ctr.PreAuthorised)
		if err != nil {
			return Genesis{}, fmt.Errorf("contract %d: %s: %w", i, ctr.Filename, err)
		}

		srcPath := filepath.Join(p.OutputDir, fmt.Sprintf("contract%d.sol", i))
		if err := os.WriteFile(srcPath, []byte(src), 0644); err != nil {
			return Genesis{}, fmt.Errorf("contract %d: %w", i, err)
		}
		ev("genesis: Process: wrote %s", srcPath)

		arts, err := compile(ctx, srcPath)
		if err != nil {
			return Genesis{}, fmt.Errorf("contract %d: compile: %w", i, err)
		}

		art, err := arts.Lookup(ctr.ContractName)
		if err != nil {
			return Genesis{}, fmt.Errorf("contract %d: %w", i, err)
		}

		if err := solc.WriteArtifact(p.OutputDir, art); err != nil {
			return Genesis{}, fmt.Errorf("contract %d: %w", i, err)
		}

		if art.RuntimeCode == "" {
			ev("genesis: Process: contract %d: %s: runtime bytecode not found", i, ctr.ContractName)
			continue
		}

		out.POA = &POA{
			Address:   addr,
			ABI:       art.ABI,
			Code:      art.RuntimeCode,
			Whitelist: ctr.PreAuthorised,
		}
		ev("genesis: Process: contract %d: %s: poa at %s", i, ctr.ContractName, addr)
	}

	return out, p.write(out)
}

func (p Precompile) write(g Genesis) error {
	path := filepath.Join(p.OutputDir, "genesis.json")
	if err := Save(path, g); err != nil {
		return fmt.Errorf("write genesis: %w", err)
	}
	return nil
}

// =============================================================================

// GenerateHardCodings produces the Solidity block declaring the initial
// whitelist. Addresses are written in their EIP-55 checksum form.
func GenerateHardCodings(people []Person) string {
	var consts, adds, checks []string

	for i, person := range people {
		if person.Address == "" || person.Moniker == "" {
			continue
		}

		addr := common.HexToAddress(person.Address).Hex()
		consts = append(consts,
			fmt.Sprintf("    address constant initWhitelist%d = %s;", i, addr),
			fmt.Sprintf("    bytes32 constant initWhitelistMoniker%d = %q;", i, person.Moniker),
		)
		adds = append(adds, fmt.Sprintf("        addToWhitelist(initWhitelist%d, initWhitelistMoniker%d);", i, i))
		checks = append(checks, fmt.Sprintf("(initWhitelist%d == _address)", i))
	}

	cond := "false"
	if len(checks) > 0 {
		cond = strings.Join(checks, " || ")
	}

	var b strings.Builder
	b.WriteString("//GENERATED GENESIS BEGIN\n\n")
	for _, c := range consts {
		b.WriteString(c + "\n")
	}
	b.WriteString("\n    function processGenesisWhitelist() private\n    {\n")
	for _, a := range adds {
		b.WriteString(a + "\n")
	}
	b.WriteString("    }\n\n")
	b.WriteString("    function isGenesisWhitelisted(address _address) pure private returns (bool)\n    {\n")
	b.WriteString("        return (" + cond + ");\n")
	b.WriteString("    }\n\n")
	b.WriteString("    //GENERATED GENESIS END")

	return b.String()
}

// InjectHardCodings replaces the generated region of a contract template
// with the whitelist block for people.
func InjectHardCodings(src string, people []Person) (string, error) {
	if !markers.MatchString(src) {
		return "", ErrNoMarkers
	}

	code := GenerateHardCodings(people)
	return markers.ReplaceAllLiteralString(src, code), nil
}
