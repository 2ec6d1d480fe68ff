// Package schedule computes epoch indices and the expected cumulative
// amount sold at any point of a sale's timeline.
package schedule

import (
	"math/big"

	"token-auction-lab/internal/domain"
)

// SoldSchedule maps a timestamp to the cumulative amount the sale is
// expected to have sold by then. The linear schedule is the reference
// behavior; a closed-form curve can be plugged in without touching the
// scheduler.
type SoldSchedule interface {
	// ExpectedSold returns the cumulative expected amount at now,
	// clamped to [0, numTokensToSell].
	ExpectedSold(now int64) *big.Int
}

// LinearSchedule interpolates numTokensToSell linearly over the sale
// duration.
type LinearSchedule struct {
	start    int64
	duration int64
	tokens   *big.Int
}

// NewLinearSchedule builds the reference schedule from a sale config.
func NewLinearSchedule(cfg *domain.SaleConfig) *LinearSchedule {
	return &LinearSchedule{
		start:    cfg.StartingTime,
		duration: cfg.EndingTime - cfg.StartingTime,
		tokens:   new(big.Int).Set(cfg.NumTokensToSell),
	}
}

// ExpectedSold implements SoldSchedule.
func (l *LinearSchedule) ExpectedSold(now int64) *big.Int {
	elapsed := now - l.start
	if elapsed <= 0 {
		return big.NewInt(0)
	}
	if elapsed >= l.duration {
		return new(big.Int).Set(l.tokens)
	}

	expected := new(big.Int).Mul(l.tokens, big.NewInt(elapsed))
	return expected.Div(expected, big.NewInt(l.duration))
}

var _ SoldSchedule = (*LinearSchedule)(nil)

// Scheduler answers epoch queries for one sale. All methods are pure;
// calling them repeatedly with the same now yields the same result.
type Scheduler struct {
	cfg      *domain.SaleConfig
	schedule SoldSchedule
}

// NewScheduler creates a scheduler. A nil schedule selects the linear
// reference behavior.
func NewScheduler(cfg *domain.SaleConfig, schedule SoldSchedule) *Scheduler {
	if schedule == nil {
		schedule = NewLinearSchedule(cfg)
	}
	return &Scheduler{cfg: cfg, schedule: schedule}
}

// TotalEpochs returns the number of epochs in the schedule.
func (s *Scheduler) TotalEpochs() int64 {
	return s.cfg.TotalEpochs()
}

// CurrentEpoch returns the epoch index for now, clamped to
// [0, totalEpochs-1]. The second return is false before startingTime,
// where the index is undefined and all mutating callers must no-op.
func (s *Scheduler) CurrentEpoch(now int64) (int64, bool) {
	if now < s.cfg.StartingTime {
		return 0, false
	}
	index := (now - s.cfg.StartingTime) / s.cfg.EpochLength
	if max := s.TotalEpochs() - 1; index > max {
		index = max
	}
	return index, true
}

// EpochBounds returns the [start, end) time window of an epoch index.
func (s *Scheduler) EpochBounds(index int64) (int64, int64) {
	start := s.cfg.StartingTime + index*s.cfg.EpochLength
	return start, start + s.cfg.EpochLength
}

// ExpectedSold returns the cumulative expected amount sold at now.
func (s *Scheduler) ExpectedSold(now int64) *big.Int {
	return s.schedule.ExpectedSold(now)
}
