// Package solc compiles Solidity sources with the solc binary and loads the
// resulting contract artifacts.
package solc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrMissingArtifact is returned when a contract was not produced by the
// compiler or lacks its ABI or bytecode.
var ErrMissingArtifact = errors.New("missing contract artifact")

// Binary is the compiler executable looked up on the PATH.
var Binary = "solc"

// Artifact is the compiled form of a single contract.
type Artifact struct {
	Name        string
	ABI         string
	Bytecode    string
	RuntimeCode string
}

// Artifacts holds compiled contracts keyed by ":<ContractName>".
type Artifacts map[string]Artifact

// Lookup returns the artifact for the key. The key may be given with or
// without the leading colon.
func (a Artifacts) Lookup(key string) (Artifact, error) {
	if !strings.HasPrefix(key, ":") {
		key = ":" + key
	}

	art, exists := a[key]
	if !exists {
		return Artifact{}, fmt.Errorf("%s: %w", key, ErrMissingArtifact)
	}

	switch {
	case art.ABI == "":
		return Artifact{}, fmt.Errorf("%s: abi: %w", key, ErrMissingArtifact)
	case art.Bytecode == "" && art.RuntimeCode == "":
		return Artifact{}, fmt.Errorf("%s: bytecode: %w", key, ErrMissingArtifact)
	}

	return art, nil
}

// Names returns the keys of the compiled contracts.
func (a Artifacts) Names() []string {
	names := make([]string, 0, len(a))
	for k := range a {
		names = append(names, k)
	}
	return names
}

// =============================================================================

// Compile runs the compiler against the source file.
func Compile(ctx context.Context, path string) (Artifacts, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("contract source: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, Binary, "--combined-json", "abi,bin,bin-runtime", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", Binary, path, err, strings.TrimSpace(stderr.String()))
	}

	return ParseCombinedJSON(stdout.Bytes())
}

// ParseCombinedJSON decodes the --combined-json output of the compiler.
// Contract keys of the form "<path>:<Name>" are reduced to ":<Name>".
func ParseCombinedJSON(data []byte) (Artifacts, error) {
	var out struct {
		Contracts map[string]struct {
			ABI        json.RawMessage `json:"abi"`
			Bin        string          `json:"bin"`
			BinRuntime string          `json:"bin-runtime"`
		} `json:"contracts"`
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode compiler output: %w", err)
	}

	arts := make(Artifacts, len(out.Contracts))
	for key, c := range out.Contracts {
		name := key[strings.LastIndex(key, ":")+1:]

		abi, err := abiString(c.ABI)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}

		arts[":"+name] = Artifact{
			Name:        name,
			ABI:         abi,
			Bytecode:    c.Bin,
			RuntimeCode: c.BinRuntime,
		}
	}

	return arts, nil
}

// LoadArtifact reads the Name.abi and Name.bin-runtime files written by a
// previous compile into dir.
func LoadArtifact(dir string, name string) (Artifact, error) {
	abi, err := os.ReadFile(filepath.Join(dir, name+".abi"))
	if err != nil {
		return Artifact{}, fmt.Errorf("%s: abi: %w", name, errors.Join(ErrMissingArtifact, err))
	}

	code, err := os.ReadFile(filepath.Join(dir, name+".bin-runtime"))
	if err != nil {
		return Artifact{}, fmt.Errorf("%s: bytecode: %w", name, errors.Join(ErrMissingArtifact, err))
	}

	art := Artifact{
		Name:        name,
		ABI:         strings.TrimSpace(string(abi)),
		RuntimeCode: strings.TrimSpace(string(code)),
	}

	bin, err := os.ReadFile(filepath.Join(dir, name+".bin"))
	if err == nil {
		art.Bytecode = strings.TrimSpace(string(bin))
	}

	return art, nil
}

// WriteArtifact stores the artifact as Name.abi, Name.bin and
// Name.bin-runtime in dir.
func WriteArtifact(dir string, art Artifact) error {
	files := map[string]string{
		art.Name + ".abi":         art.ABI,
		art.Name + ".bin":         art.Bytecode,
		art.Name + ".bin-runtime": art.RuntimeCode,
	}

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	return nil
}

// abiString accepts both the legacy string encoded ABI and the JSON array
// emitted by newer compilers.
func abiString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode abi: %w", err)
		}
		return s, nil
	}

	return string(raw), nil
}
