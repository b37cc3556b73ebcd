package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardanlabs/poagov/app/tooling/genesis/commands"
	"github.com/ardanlabs/poagov/business/core/governance"
	"github.com/ardanlabs/poagov/foundation/genesis"
	"github.com/ardanlabs/poagov/foundation/solc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

const template = `pragma solidity ^0.4.24;

contract POA_Genesis {
    //GENERATED GENESIS BEGIN
    //GENERATED GENESIS END
}
`

const pregenesis = `{
  "alloc": {
    "0x1e1ed45e2c4a8e2df0e7e2fc5d0ef0d0c6e5a6c1": {"balance": "1000"}
  },
  "precompiler": {
    "contracts": [
      {
        "address": "0xabbaabbaabbaabbaabbaabbaabbaabbaabbaabba",
        "filename": "genesis.sol",
        "contractname": "POA_Genesis",
        "preauthorised": [
          {"address": "0x1e1ed45e2c4a8e2df0e7e2fc5d0ef0d0c6e5a6c1", "moniker": "Node0"}
        ]
      }
    ]
  }
}`

func fakeCompile(ctx context.Context, path string) (solc.Artifacts, error) {
	return solc.Artifacts{
		":POA_Genesis": {Name: "POA_Genesis", ABI: governance.DefaultABI, Bytecode: "6080", RuntimeCode: "6080"},
	}, nil
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================

func Test_Precompile(t *testing.T) {
	t.Log("Given the need to turn a pregenesis file into a genesis file.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen precompiling a single contract.", testID)
		{
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "pregenesis.json"), []byte(pregenesis), 0644); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write the pregenesis file: %s", failed, testID, err)
			}
			if err := os.WriteFile(filepath.Join(dir, "genesis.sol"), []byte(template), 0644); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write the template: %s", failed, testID, err)
			}
			outDir := filepath.Join(dir, "out")

			out, err := execute(commands.Precompile(zap.NewNop().Sugar(), fakeCompile),
				"--pregenesis", filepath.Join(dir, "pregenesis.json"),
				"--out", outDir,
			)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to precompile: %s", failed, testID, err)
			}
			if !strings.Contains(out, "whitelist[1]") {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, out)
				t.Fatalf("\t%s\tTest %d:\tShould report the whitelist.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to precompile.", success, testID)

			gen, err := genesis.Load(filepath.Join(outDir, "genesis.json"))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the genesis file: %s", failed, testID, err)
			}
			if gen.POA == nil || gen.POA.Code != "6080" {
				t.Fatalf("\t%s\tTest %d:\tShould write the poa section.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould write the poa section.", success, testID)

			src, err := os.ReadFile(filepath.Join(outDir, "contract0.sol"))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould write the generated contract: %s", failed, testID, err)
			}
			if !strings.Contains(string(src), "initWhitelist0") {
				t.Fatalf("\t%s\tTest %d:\tShould inject the whitelist.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould inject the whitelist.", success, testID)

			out, err = execute(commands.Balances(), "--genesis", filepath.Join(outDir, "genesis.json"))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to print balances: %s", failed, testID, err)
			}
			if !strings.Contains(out, "Balance: 1000") || !strings.Contains(out, "Members: 1") {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, out)
				t.Fatalf("\t%s\tTest %d:\tShould print the allocated balance.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould print the allocated balance.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the pregenesis file is missing.", testID)
		{
			_, err := execute(commands.Precompile(zap.NewNop().Sugar(), fakeCompile),
				"--pregenesis", filepath.Join(t.TempDir(), "missing.json"),
			)
			if err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail without a pregenesis file.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail without a pregenesis file.", success, testID)
		}
	}
}
