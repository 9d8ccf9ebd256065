package lottery

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
)

// Notifier is the notification/display gateway boundary. Deliveries are
// best-effort: a failed delivery never rolls back a committed state
// transition.
type Notifier interface {
	LotteryPosted(summary models.LotterySummary) error
	TicketsSold(lotteryID string, soldCount int) error
	LotteryFinalized(outcome models.Outcome) error
	TicketsPurchasedPrivate(buyerID, item string, codes []string) error
}

// Archiver retains immutable terminal records of settled lotteries.
type Archiver interface {
	Record(outcome models.Outcome, lot models.Lottery) error
}

// Service is the lottery lifecycle engine: creation, ticket sales,
// scheduling and exactly-once finalization.
type Service struct {
	Store   *Store
	Gateway Notifier
	Archive Archiver
	Logger  *logger.Logger

	scheduler *Scheduler
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(store *Store, gateway Notifier, archive Archiver, log *logger.Logger) *Service {
	s := &Service{
		Store:   store,
		Gateway: gateway,
		Archive: archive,
		Logger:  log,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.scheduler = NewScheduler(s.timerFinalize, log)
	return s
}

// WithRand swaps the draw source. Tests use a fixed seed here.
func (s *Service) WithRand(r *rand.Rand) *Service {
	s.rng = r
	return s
}

// ---------------- CREATION ----------------

// CreateLottery validates the request, persists the new lottery and arms its
// countdown. The public posting event goes out after the record is durable.
func (s *Service) CreateLottery(req models.CreateLotteryRequest, sellerID string) (models.Lottery, error) {
	if req.Item == "" {
		return models.Lottery{}, &ValidationError{Field: "item", Reason: "must not be empty"}
	}
	duration, err := ParseDuration(req.Duration)
	if err != nil {
		return models.Lottery{}, err
	}
	maxTickets := 0
	if req.MaxTickets != nil {
		if *req.MaxTickets < 1 {
			return models.Lottery{}, &ValidationError{Field: "max_tickets", Reason: "must be a positive number"}
		}
		maxTickets = *req.MaxTickets
	}

	created := s.now().UTC()
	lot := models.Lottery{
		ID:           uuid.NewString(),
		Item:         req.Item,
		SellerID:     sellerID,
		TicketPrice:  req.TicketPrice,
		MaxTickets:   maxTickets,
		ImageURL:     req.ImageURL,
		AuxChannelID: req.AuxChannelID,
		Tickets:      []models.Ticket{},
		State:        models.StateOpen,
		CreatedAt:    created,
		EndTime:      created.Add(duration),
	}

	if err := s.Store.Create(lot); err != nil {
		return models.Lottery{}, fmt.Errorf("failed to create lottery: %w", err)
	}

	s.scheduler.Schedule(lot.ID, lot.EndTime)
	s.Logger.LogLottery("CREATE", lot.ID, fmt.Sprintf("item=%q seller=%s ends=%s", lot.Item, sellerID, lot.EndTime.Format(time.RFC3339)))

	if err := s.Gateway.LotteryPosted(lot.Summary()); err != nil {
		s.Logger.Warn("GATEWAY", fmt.Sprintf("Failed to post lottery %s: %v", lot.ID, err))
	}

	return lot, nil
}

// ---------------- TICKET SALES ----------------

// Purchase is the committed result of a ticket sale: the lottery as it stood
// when the sale committed, the tickets issued by this request and an optional
// delivery warning. Callers read purchase-time state from here rather than
// re-fetching the lottery, which may already be finalized.
type Purchase struct {
	Lottery models.Lottery
	Issued  []models.Ticket
	Warning string
}

// BuyTickets sells count tickets in one all-or-nothing mutation. The success
// response waits for the snapshot write; the private code delivery does not,
// and its failure comes back as a warning instead of an error.
func (s *Service) BuyTickets(lotteryID, buyerID string, count int) (Purchase, error) {
	if count < 1 {
		return Purchase{}, &ValidationError{Field: "count", Reason: "must be 1 or greater"}
	}

	var issued []models.Ticket
	updated, err := s.Store.Mutate(lotteryID, func(lot *models.Lottery) error {
		if lot.State != models.StateOpen {
			return ErrClosed
		}
		// Lazy deadline check: a passed deadline rejects the sale even if
		// the timer has not fired yet.
		if !s.now().Before(lot.EndTime) {
			return ErrClosed
		}
		if remaining, bounded := lot.Remaining(); bounded && count > remaining {
			return &CapacityError{Requested: count, Remaining: remaining}
		}

		purchased := s.now().UTC()
		issued = make([]models.Ticket, 0, count)
		for i := 0; i < count; i++ {
			code := newTicketCode()
			for lot.HasCode(code) {
				code = newTicketCode()
			}
			t := models.Ticket{Code: code, BuyerID: buyerID, PurchasedAt: purchased}
			lot.Tickets = append(lot.Tickets, t)
			issued = append(issued, t)
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}

	s.Logger.LogLottery("SALE", lotteryID, fmt.Sprintf("buyer=%s count=%d sold=%d", buyerID, count, len(updated.Tickets)))

	if err := s.Gateway.TicketsSold(lotteryID, len(updated.Tickets)); err != nil {
		s.Logger.Warn("GATEWAY", fmt.Sprintf("Failed to publish sold count for lottery %s: %v", lotteryID, err))
	}

	warning := ""
	codes := make([]string, len(issued))
	for i, t := range issued {
		codes[i] = t.Code
	}
	if err := s.Gateway.TicketsPurchasedPrivate(buyerID, updated.Item, codes); err != nil {
		warning = "could not deliver ticket codes privately"
		s.Logger.Warn("GATEWAY", fmt.Sprintf("Private delivery to buyer %s failed: %v", buyerID, err))
	}

	return Purchase{Lottery: updated, Issued: issued, Warning: warning}, nil
}

// ---------------- FINALIZATION ----------------

// Finalize settles a lottery exactly once. Remove-then-decide: the record
// leaves the active store (and the removal is persisted) before the draw, so
// a duplicate trigger finds nothing and returns ErrAlreadyFinalized instead
// of double-drawing.
func (s *Service) Finalize(lotteryID string) (models.Outcome, error) {
	lot, err := s.Store.Remove(lotteryID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Outcome{}, ErrAlreadyFinalized
		}
		return models.Outcome{}, err
	}

	lot.State = models.StateFinalizing
	s.scheduler.Forget(lotteryID)

	outcome := models.Outcome{
		LotteryID:    lot.ID,
		Item:         lot.Item,
		SellerID:     lot.SellerID,
		AuxChannelID: lot.AuxChannelID,
		TicketsSold:  len(lot.Tickets),
		DrawnAt:      s.now().UTC(),
	}

	if len(lot.Tickets) > 0 {
		// Every ticket, not every buyer, is an equally weighted entry.
		s.rngMu.Lock()
		winner := lot.Tickets[s.rng.Intn(len(lot.Tickets))]
		s.rngMu.Unlock()
		outcome.Winner = &winner
		s.Logger.LogLottery("FINALIZE", lot.ID, fmt.Sprintf("winner=%s code=%s of %d tickets", winner.BuyerID, winner.Code, len(lot.Tickets)))
	} else {
		s.Logger.LogLottery("FINALIZE", lot.ID, "no tickets sold")
	}

	lot.State = models.StateFinalized

	// The lottery is settled: archive and notification failures are logged,
	// never rolled back.
	if s.Archive != nil {
		if err := s.Archive.Record(outcome, lot); err != nil {
			s.Logger.Error("ARCHIVE", fmt.Sprintf("Failed to archive lottery %s: %v", lot.ID, err))
		}
	}
	if err := s.Gateway.LotteryFinalized(outcome); err != nil {
		s.Logger.Warn("GATEWAY", fmt.Sprintf("Failed to announce outcome of lottery %s: %v", lot.ID, err))
	}

	return outcome, nil
}

// ForceFinalize settles a lottery before its deadline. Requires elevated
// privilege; the handler resolves the requester's roles.
func (s *Service) ForceFinalize(lotteryID, requesterID string, admin bool) (models.Outcome, error) {
	if !admin {
		s.Logger.LogSecurity("FORCE_FINALIZE", fmt.Sprintf("user %s denied for lottery %s", requesterID, lotteryID))
		return models.Outcome{}, ErrForbidden
	}
	s.Logger.LogLottery("FORCE_FINALIZE", lotteryID, fmt.Sprintf("triggered by %s", requesterID))
	return s.Finalize(lotteryID)
}

// timerFinalize adapts Finalize for the scheduler.
func (s *Service) timerFinalize(lotteryID string) error {
	_, err := s.Finalize(lotteryID)
	return err
}

// ---------------- QUERIES ----------------

// ListActive returns read-only summaries of every open lottery.
func (s *Service) ListActive() []models.LotterySummary {
	active := s.Store.ListActive()
	out := make([]models.LotterySummary, len(active))
	for i := range active {
		out[i] = active[i].Summary()
	}
	return out
}

// TicketsForUser groups the user's codes across active lotteries by item.
func (s *Service) TicketsForUser(userID string) models.UserTickets {
	result := models.UserTickets{UserID: userID, Tickets: make(map[string][]string)}
	for _, lot := range s.Store.ListActive() {
		for _, t := range lot.Tickets {
			if t.BuyerID == userID {
				result.Tickets[lot.Item] = append(result.Tickets[lot.Item], t.Code)
			}
		}
	}
	return result
}

// ---------------- LIFECYCLE ----------------

// Recover finalizes lotteries that expired while the process was down and
// re-arms countdowns for the rest. Must complete before the periodic saver
// or any request handling starts.
func (s *Service) Recover() {
	s.scheduler.Recover(s.Store.ListActive())
}

// Drain stops all armed countdowns for shutdown.
func (s *Service) Drain() {
	s.scheduler.Drain()
}

// PendingTimers exposes the scheduler registry size for inspection.
func (s *Service) PendingTimers() int {
	return s.scheduler.Pending()
}
