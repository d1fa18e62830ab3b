// Package sched runs the periodic cache warmup for configured chart pairs.
package sched

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sigmapips/chart-capture/pkg/model"
)

// Refresher repopulates the cache entry for one chart request.
type Refresher interface {
	Refresh(ctx context.Context, req *model.ChartRequest) error
}

// Pair identifies one chart kept warm by the scheduler.
type Pair struct {
	Symbol    string `yaml:"symbol" json:"symbol"`
	Timeframe string `yaml:"timeframe" json:"timeframe"`
	Theme     string `yaml:"theme,omitempty" json:"theme,omitempty"`
}

// Warmer periodically refreshes configured chart pairs so interactive requests
// hit a warm cache instead of paying the full browser render cost.
type Warmer struct {
	refresher  Refresher
	cron       *cron.Cron
	pairs      []Pair
	workerPool chan struct{}
	baseCtx    context.Context
}

// NewWarmer creates a warmer for the given pairs. maxConcurrent bounds how
// many charts render at once; values below 1 are treated as 1 because the
// browser is the bottleneck.
func NewWarmer(refresher Refresher, pairs []Pair, maxConcurrent int) *Warmer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Warmer{
		refresher:  refresher,
		cron:       cron.New(),
		pairs:      pairs,
		workerPool: make(chan struct{}, maxConcurrent),
		baseCtx:    context.Background(),
	}
}

// SetContext sets the base context used for warmup captures.
func (w *Warmer) SetContext(ctx context.Context) {
	w.baseCtx = ctx
}

// Start registers the cron entry and starts the scheduler.
func (w *Warmer) Start(cronExpr string) error {
	entryID, err := w.cron.AddFunc(cronExpr, w.RunOnce)
	if err != nil {
		return err
	}
	w.cron.Start()
	log.Printf("[WARMUP] Scheduler started with cron expression '%s' (entry ID: %d, %d pair(s))",
		cronExpr, entryID, len(w.pairs))
	return nil
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (w *Warmer) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	log.Println("[WARMUP] Scheduler stopped")
}

// RunOnce refreshes every configured pair, bounded by the worker pool. It
// blocks until the full cycle completes.
func (w *Warmer) RunOnce() {
	if len(w.pairs) == 0 {
		return
	}

	started := time.Now()
	log.Printf("[WARMUP] Refreshing %d pair(s)", len(w.pairs))

	var wg sync.WaitGroup
	for _, pair := range w.pairs {
		wg.Add(1)
		go func(p Pair) {
			defer wg.Done()
			w.workerPool <- struct{}{}
			defer func() { <-w.workerPool }()

			req := &model.ChartRequest{Symbol: p.Symbol, Timeframe: p.Timeframe, Theme: p.Theme}
			if err := req.Validate(); err != nil {
				log.Printf("[WARMUP] ERROR: Skipping invalid pair %s/%s: %v", p.Symbol, p.Timeframe, err)
				return
			}
			if err := w.refresher.Refresh(w.baseCtx, req); err != nil {
				log.Printf("[WARMUP] ERROR: Failed to refresh %s/%s: %v", p.Symbol, p.Timeframe, err)
			}
		}(pair)
	}
	wg.Wait()

	log.Printf("[WARMUP] Cycle completed in %s", time.Since(started).Round(time.Millisecond))
}
