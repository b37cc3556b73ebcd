// Package worker commits the pending transactions of the simulated chain
// into blocks.
package worker

import (
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/poagov/business/core/chain"
)

// DefaultCycle is the cadence blocks are committed at when no transaction
// signals an earlier commit.
const DefaultCycle = 2 * time.Second

// =============================================================================

// Worker manages the block committing workflow for the chain.
type Worker struct {
	chain       *chain.Chain
	wg          sync.WaitGroup
	cycle       time.Duration
	shut        chan struct{}
	startCommit chan bool
	evHandler   chain.EventHandler
}

// Run creates a worker, registers the worker with the chain, and starts up
// the background commit goroutine.
func Run(ch *chain.Chain, cycle time.Duration, evHandler chain.EventHandler) *Worker {
	if cycle <= 0 {
		cycle = DefaultCycle
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := Worker{
		chain:       ch,
		cycle:       cycle,
		shut:        make(chan struct{}),
		startCommit: make(chan bool, 1),
		evHandler:   ev,
	}

	// Register this worker with the chain.
	ch.Worker = &w

	w.wg.Add(1)
	hasStarted := make(chan bool)

	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.commitOperations()
	}()

	<-hasStarted

	return &w
}

// =============================================================================
// These methods implement the chain.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	if w.isShutdown() {
		return
	}

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalCommit starts a commit operation. If there is already a signal
// pending in the channel, just return since a commit will happen.
func (w *Worker) SignalCommit() {
	select {
	case w.startCommit <- true:
	default:
	}
	w.evHandler("worker: SignalCommit: commit signaled")
}

// =============================================================================

// commitOperations commits a block on every cycle and whenever a new
// transaction is signaled.
func (w *Worker) commitOperations() {
	w.evHandler("worker: commitOperations: G started")
	defer w.evHandler("worker: commitOperations: G completed")

	ticker := time.NewTicker(w.cycle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-w.startCommit:
		case <-w.shut:
			w.evHandler("worker: commitOperations: received shut signal")
			return
		}

		if !w.isShutdown() {
			w.runCommitOperation()
		}
	}
}

// runCommitOperation takes all the transactions from the mempool and
// commits a new block.
func (w *Worker) runCommitOperation() {
	if w.chain.MempoolLength() == 0 {
		return
	}

	block, err := w.chain.CommitBlock()
	if err != nil {
		if errors.Is(err, chain.ErrNoTransactions) {
			return
		}
		w.evHandler("worker: runCommitOperation: ERROR: %s", err)
		return
	}

	w.evHandler("worker: runCommitOperation: block[%d]: txs[%d]", block.Header.Number, len(block.TxHashes))
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
