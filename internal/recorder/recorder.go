// Package recorder persists auction events and forwards them to the
// metrics and streaming layers. It is the production Observer wired into
// a Sale.
package recorder

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/observability"
	"token-auction-lab/internal/storage"
)

// Broadcaster pushes events to live subscribers.
type Broadcaster interface {
	Broadcast(ev domain.AuctionEvent)
}

// Options configures a Recorder. All sinks are optional; nil sinks are
// skipped.
type Options struct {
	Sales      storage.SaleStore
	Swaps      storage.SwapEventStore
	Rebalances storage.RebalanceStore
	Stream     Broadcaster
	Metrics    *observability.Metrics
	Logger     *log.Logger
	Timeout    time.Duration
}

// Recorder implements auction.Observer. Callbacks run synchronously
// inside sale operations, so sink failures are logged rather than
// propagated back into the auction.
type Recorder struct {
	sales      storage.SaleStore
	swaps      storage.SwapEventStore
	rebalances storage.RebalanceStore
	stream     Broadcaster
	metrics    *observability.Metrics
	logger     *log.Logger
	timeout    time.Duration
}

// New creates a Recorder.
func New(opts Options) *Recorder {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[recorder] ", log.LstdFlags)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Recorder{
		sales:      opts.Sales,
		swaps:      opts.Swaps,
		rebalances: opts.Rebalances,
		stream:     opts.Stream,
		metrics:    metrics,
		logger:     logger,
		timeout:    timeout,
	}
}

// OnSwap persists one settled swap and broadcasts it.
func (r *Recorder) OnSwap(rec *domain.SwapEventRecord) {
	r.metrics.SwapsSettled.Inc()

	if r.swaps != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.swaps.Insert(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Printf("persist swap %s/%d: %v", rec.SaleID, rec.Seq, err)
		}
	}

	if r.stream != nil {
		r.stream.Broadcast(domain.AuctionEvent{
			Type:      domain.EventSwap,
			SaleID:    rec.SaleID,
			Timestamp: rec.Timestamp,
			Swap:      rec,
		})
	}
}

// OnRebalance persists one epoch rollover, refreshes the accounting
// gauges and the sale's stored state, and broadcasts the rollover.
func (r *Recorder) OnRebalance(rec *domain.RebalanceRecord) {
	r.metrics.RebalancesTotal.Inc()
	r.metrics.CurrentEpoch.Set(float64(rec.Epoch))
	r.metrics.PlacedSlugs.Set(float64(len(rec.Slugs)))
	if sold, err := strconv.ParseFloat(rec.TotalTokensSold, 64); err == nil {
		r.metrics.TokensSold.Set(sold)
	}
	if proceeds, err := strconv.ParseFloat(rec.TotalProceeds, 64); err == nil {
		r.metrics.Proceeds.Set(proceeds)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if r.rebalances != nil {
		if err := r.rebalances.Insert(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Printf("persist rebalance %s/%d: %v", rec.SaleID, rec.Epoch, err)
		}
	}

	if r.sales != nil {
		if err := r.updateSale(ctx, rec); err != nil {
			r.logger.Printf("update sale %s: %v", rec.SaleID, err)
		}
	}

	if r.stream != nil {
		r.stream.Broadcast(domain.AuctionEvent{
			Type:      domain.EventRebalance,
			SaleID:    rec.SaleID,
			Timestamp: rec.Timestamp,
			Rebalance: rec,
		})
	}
}

// OnStatus records a lifecycle transition and broadcasts terminal ones.
func (r *Recorder) OnStatus(saleID string, status domain.Status) {
	r.metrics.StatusTransitions.WithLabelValues(string(status)).Inc()

	if r.sales != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		rec, err := r.sales.GetByID(ctx, saleID)
		if err != nil {
			r.logger.Printf("load sale %s: %v", saleID, err)
		} else {
			rec.Status = string(status)
			rec.UpdatedAt = time.Now().UnixMilli()
			if err := r.sales.UpdateState(ctx, rec); err != nil {
				r.logger.Printf("update sale %s status: %v", saleID, err)
			}
		}
	}

	if r.stream == nil {
		return
	}
	var eventType domain.EventType
	switch status {
	case domain.StatusEarlyExited:
		eventType = domain.EventEarlyExit
	case domain.StatusMatured:
		eventType = domain.EventMatured
	case domain.StatusMigrated:
		eventType = domain.EventMigrated
	default:
		return
	}
	r.stream.Broadcast(domain.AuctionEvent{
		Type:      eventType,
		SaleID:    saleID,
		Timestamp: time.Now().Unix(),
	})
}

// updateSale copies a rollover's running totals onto the stored sale row.
func (r *Recorder) updateSale(ctx context.Context, rec *domain.RebalanceRecord) error {
	sale, err := r.sales.GetByID(ctx, rec.SaleID)
	if err != nil {
		return err
	}
	sale.TotalTokensSold = rec.TotalTokensSold
	sale.TotalProceeds = rec.TotalProceeds
	sale.CurrentEpoch = rec.Epoch
	sale.UpdatedAt = time.Now().UnixMilli()
	return r.sales.UpdateState(ctx, sale)
}
