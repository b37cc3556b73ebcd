// This program turns a pregenesis file into the genesis file a PoA network
// starts from.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/poagov/app/tooling/genesis/commands"
	"github.com/ardanlabs/poagov/foundation/logger"
	"github.com/ardanlabs/poagov/foundation/solc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("GENESIS")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cobra.Command{
		Use:          "genesis",
		Short:        "Build and inspect genesis files",
		Version:      build,
		SilenceUsage: true,
	}
	root.AddCommand(
		commands.Precompile(log, solc.Compile),
		commands.Balances(),
	)

	return root.ExecuteContext(ctx)
}
