// Package commands contains the genesis tool commands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/poagov/foundation/genesis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Precompile returns the command that builds genesis.json from a
// pregenesis file.
func Precompile(log *zap.SugaredLogger, compile genesis.CompileFunc) *cobra.Command {
	var (
		pregenesis string
		sourceDir  string
		outputDir  string
	)

	cmd := cobra.Command{
		Use:   "precompile",
		Short: "Generate the whitelist contract and write genesis.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			pre, err := genesis.Load(pregenesis)
			if err != nil {
				return fmt.Errorf("loading pregenesis: %w", err)
			}

			if sourceDir == "" {
				sourceDir = filepath.Dir(pregenesis)
			}
			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return err
			}

			p := genesis.Precompile{
				SourceDir: sourceDir,
				OutputDir: outputDir,
				Compile:   compile,
				EvHandler: func(v string, args ...any) {
					log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
				},
			}

			gen, err := p.Process(cmd.Context(), pre)
			if err != nil {
				return fmt.Errorf("precompiling: %w", err)
			}

			path := filepath.Join(outputDir, "genesis.json")
			if gen.POA == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s written without a poa section\n", path)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s written: poa[%s] whitelist[%d]\n", path, gen.POA.Address, len(gen.POA.Whitelist))
			return nil
		},
	}

	cmd.Flags().StringVarP(&pregenesis, "pregenesis", "g", "zblock/pregenesis.json", "Path to the pregenesis file.")
	cmd.Flags().StringVarP(&sourceDir, "source", "s", "", "Directory holding the contract templates. Defaults to the pregenesis directory.")
	cmd.Flags().StringVarP(&outputDir, "out", "o", "zblock", "Directory for the generated contracts and genesis.json.")

	return &cmd
}
