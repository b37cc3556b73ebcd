// Package main runs the PoA governance demo scripts against a set of nodes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/poagov/app/tooling/poademo/scripts"
	"github.com/ardanlabs/poagov/business/core/registry"
	"github.com/ardanlabs/poagov/business/core/workflow"
	"github.com/ardanlabs/poagov/foundation/keystore"
	"github.com/ardanlabs/poagov/foundation/logger"
	"github.com/ardanlabs/poagov/foundation/validate"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("POADEMO")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

// settings holds the options that are checked before anything runs.
type settings struct {
	IPs      string `validate:"required"`
	Port     int    `validate:"gte=1,lte=65535"`
	Keystore string `validate:"required"`
	Pwd      string `validate:"required"`
	NodeNo   int    `validate:"gte=0"`
	Script   string `validate:"required,oneof=event genesis transfer"`
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Hosts     string        `conf:"default:127.0.0.1,flag:ips,help:node hosts separated by commas"`
		Port      int           `conf:"default:8080"`
		Keystore  string        `conf:"default:zblock/keystore"`
		Pwd       string        `conf:"default:zblock/pwd.txt,help:file holding the keystore password"`
		Contract  string        `conf:"default:zblock/poa_event2.sol"`
		Artifacts string        `conf:"help:directory of precompiled .abi and .bin-runtime files"`
		NodeNo    int           `conf:"default:0,flag:nodeno,help:zero based index of the node this driver runs as"`
		Script    string        `conf:"default:genesis,help:event or genesis or transfer"`
		Online    bool          `conf:"default:true,help:pause for enter between steps"`
		Sort      bool          `conf:"default:true,help:sort the hosts before numbering the nodes"`
		Color     bool          `conf:"default:true,help:colour the step output"`
		Timeout   time.Duration `conf:"default:30s,help:how long to wait for a receipt"`
		ChainID   int64         `conf:"default:1"`
		Continue  bool          `conf:"default:false,help:run the remaining steps after a failure"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "poa governance demo driver",
		},
	}

	const prefix = "POADEMO"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	check := settings{
		IPs:      cfg.Hosts,
		Port:     cfg.Port,
		Keystore: cfg.Keystore,
		Pwd:      cfg.Pwd,
		NodeNo:   cfg.NodeNo,
		Script:   cfg.Script,
	}
	if err := validate.Check(check); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}

	// =========================================================================
	// Nodes and Accounts

	hosts := registry.ParseHosts(cfg.Hosts, cfg.Sort)
	reg, err := registry.New(registry.Config{
		Hosts:     hosts,
		Port:      cfg.Port,
		ChainID:   cfg.ChainID,
		EvHandler: ev,
	})
	if err != nil {
		return err
	}

	if cfg.NodeNo >= reg.Len() {
		return fmt.Errorf("nodeno %d: %w", cfg.NodeNo, registry.ErrNodeIndex)
	}

	fmt.Println("Sorted IPs:        ", strings.Join(hosts, ","))
	fmt.Println("Node No:           ", cfg.NodeNo)
	fmt.Println("Keystore Path:     ", cfg.Keystore)
	fmt.Println("Password File Path:", cfg.Pwd)
	fmt.Println("Contract File Path:", cfg.Contract)

	password, err := keystore.ReadPassword(cfg.Pwd)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	self, err := reg.Node(cfg.NodeNo)
	if err != nil {
		return err
	}

	ks := keystore.New(cfg.Keystore)
	accounts, err := ks.Unlock(ctx, self.Client, password, ev)
	if err != nil {
		if len(accounts) == 0 {
			return fmt.Errorf("unlocking accounts: %w", err)
		}
		log.Infow("startup", "status", "accounts skipped", "ERROR", err)
	}

	for _, a := range accounts {
		fmt.Println("Decrypted:", a.Address.Hex())
	}

	reg = reg.Bind(accounts)
	if reg.Bound() < reg.Len() {
		log.Infow("startup", "status", "unbound nodes", "nodes", reg.Len(), "bound", reg.Bound())
	}

	// =========================================================================
	// Run Script

	script, err := scripts.Lookup(cfg.Script)
	if err != nil {
		return err
	}

	steps := script(scripts.Config{
		Out:          os.Stdout,
		ContractPath: cfg.Contract,
		ArtifactDir:  cfg.Artifacts,
		Timeout:      cfg.Timeout,
		EvHandler:    ev,
	})

	workflow.SetColors(cfg.Color)

	var pauser workflow.Pauser = workflow.NoPrompt{}
	if cfg.Online {
		pauser = workflow.NewPrompt(os.Stdin)
	}

	runner := workflow.New(workflow.Config{
		Out:             os.Stdout,
		Pauser:          pauser,
		ContinueOnError: cfg.Continue,
		EvHandler:       ev,
	})

	st := workflow.State{
		NodeNo:   cfg.NodeNo,
		Registry: reg,
	}

	st, err = runner.Execute(ctx, st, steps)
	if err != nil {
		return fmt.Errorf("traceid[%s]: %w", st.TraceID, err)
	}

	log.Infow("completed", "traceid", st.TraceID, "script", cfg.Script)

	return nil
}
