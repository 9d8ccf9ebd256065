package lottery

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
)

// FinalizeFunc settles a lottery. Duplicate triggers must come back as
// ErrAlreadyFinalized.
type FinalizeFunc func(lotteryID string) error

// Scheduler keeps one supervised countdown per open lottery and guarantees
// each eventually receives exactly one finalization trigger. Timers are
// never cancelled explicitly; a timer firing for a lottery that is already
// gone is a no-op.
type Scheduler struct {
	finalize FinalizeFunc
	log      *logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler(finalize FinalizeFunc, log *logger.Logger) *Scheduler {
	return &Scheduler{
		finalize: finalize,
		log:      log,
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
	}
}

// Schedule arms a one-shot countdown that fires at endTime. A deadline
// already in the past fires immediately.
func (sc *Scheduler) Schedule(lotteryID string, endTime time.Time) {
	delay := endTime.Sub(sc.now())
	if delay < 0 {
		delay = 0
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, exists := sc.timers[lotteryID]; exists {
		return
	}
	sc.timers[lotteryID] = time.AfterFunc(delay, func() { sc.fire(lotteryID) })
	sc.log.Info("SCHEDULER", fmt.Sprintf("Countdown armed for lottery %s, fires in %s", lotteryID, delay.Round(time.Second)))
}

func (sc *Scheduler) fire(lotteryID string) {
	sc.mu.Lock()
	delete(sc.timers, lotteryID)
	sc.mu.Unlock()

	if err := sc.finalize(lotteryID); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			// Settled by a force trigger or restart recovery before we fired.
			sc.log.Debug("SCHEDULER", fmt.Sprintf("Timer for lottery %s fired after settlement, ignoring", lotteryID))
			return
		}
		sc.log.Error("SCHEDULER", fmt.Sprintf("Finalization of lottery %s failed: %v", lotteryID, err))
	}
}

// Forget drops the tracked timer for a settled lottery. Purely resource
// hygiene; a fire after settlement is already harmless.
func (sc *Scheduler) Forget(lotteryID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if t, ok := sc.timers[lotteryID]; ok {
		t.Stop()
		delete(sc.timers, lotteryID)
	}
}

// Recover reconstructs countdowns from persisted deadlines. Lotteries whose
// deadline passed while the process was down are finalized right here,
// synchronously, so recovery completes before periodic maintenance or new
// requests touch them.
func (sc *Scheduler) Recover(active []models.Lottery) {
	for _, lot := range active {
		if !lot.EndTime.After(sc.now()) {
			sc.log.Info("SCHEDULER", fmt.Sprintf("Lottery %s expired while offline, finalizing now", lot.ID))
			if err := sc.finalize(lot.ID); err != nil && !errors.Is(err, ErrAlreadyFinalized) {
				sc.log.Error("SCHEDULER", fmt.Sprintf("Recovery finalization of lottery %s failed: %v", lot.ID, err))
			}
			continue
		}
		sc.Schedule(lot.ID, lot.EndTime)
	}
}

// Drain stops every tracked timer. Used on shutdown; persisted deadlines are
// rebuilt by Recover on the next start.
func (sc *Scheduler) Drain() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for id, t := range sc.timers {
		t.Stop()
		delete(sc.timers, id)
	}
}

// Pending reports how many countdowns are currently armed.
func (sc *Scheduler) Pending() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.timers)
}
