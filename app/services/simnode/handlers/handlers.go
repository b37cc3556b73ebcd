// Package handlers binds the simulated node routes.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/ardanlabs/poagov/app/services/simnode/handlers/debug/checkgrp"
	"github.com/ardanlabs/poagov/app/services/simnode/handlers/evmgrp"
	"github.com/ardanlabs/poagov/app/services/simnode/handlers/viewgrp"
	"github.com/ardanlabs/poagov/business/core/chain"
	"github.com/ardanlabs/poagov/business/web/mid"
	"github.com/ardanlabs/poagov/foundation/events"
	"github.com/ardanlabs/poagov/foundation/web"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	Chain    *chain.Chain
	Evts     *events.Events
}

// APIMux constructs a http.Handler with the EVM-Lite node routes.
func APIMux(cfg MuxConfig) http.Handler {
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Cors("*"),
		mid.Panics(),
	)

	// Accept CORS 'OPTIONS' preflight requests.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h, mid.Cors("*"))

	evm := evmgrp.Handlers{
		Log:   cfg.Log,
		Chain: cfg.Chain,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, "", "/account/:address", evm.Account)
	app.Handle(http.MethodGet, "", "/accounts", evm.Accounts)
	app.Handle(http.MethodPost, "", "/call", evm.Call)
	app.Handle(http.MethodPost, "", "/rawtx", evm.RawTx)
	app.Handle(http.MethodGet, "", "/tx/:hash", evm.Receipt)
	app.Handle(http.MethodGet, "", "/poa", evm.POA)
	app.Handle(http.MethodGet, "", "/info", evm.Info)
	app.Handle(http.MethodGet, "", "/genesis", evm.Genesis)
	app.Handle(http.MethodGet, "", "/block", evm.Block)
	app.Handle(http.MethodGet, "", "/events", evm.Events)

	app.Handle(http.MethodGet, "", "/", viewgrp.Index)

	return app
}

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service.
func DebugMux(build string, log *zap.SugaredLogger) http.Handler {
	mux := DebugStandardLibraryMux()

	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}
