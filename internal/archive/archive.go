package archive

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-lottery/internal/models"
)

// Archive retains the immutable terminal record of every settled lottery.
// Rows are insert-only: once written they are never updated or deleted.
type Archive struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *Archive {
	return &Archive{Bun: bunDB}
}

// Migrate creates the archive tables if they don't exist yet.
func (a *Archive) Migrate(ctx context.Context) error {
	if _, err := a.Bun.NewCreateTable().Model((*models.ArchivedLottery)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create archived_lotteries: %w", err)
	}
	if _, err := a.Bun.NewCreateTable().Model((*models.ArchivedTicket)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create archived_tickets: %w", err)
	}
	return nil
}

// Record writes the settled lottery, its outcome and every sold ticket.
func (a *Archive) Record(outcome models.Outcome, lot models.Lottery) error {
	ctx := context.Background()

	archived := models.ArchivedLottery{
		LotteryID:   lot.ID,
		Item:        lot.Item,
		SellerID:    lot.SellerID,
		TicketPrice: lot.TicketPrice,
		MaxTickets:  lot.MaxTickets,
		TicketsSold: outcome.TicketsSold,
		NoSale:      outcome.NoSale(),
		CreatedAt:   lot.CreatedAt,
		EndTime:     lot.EndTime,
		DrawnAt:     outcome.DrawnAt,
	}
	if outcome.Winner != nil {
		archived.WinnerID = outcome.Winner.BuyerID
		archived.WinningCode = outcome.Winner.Code
	}

	if _, err := a.Bun.NewInsert().Model(&archived).Exec(ctx); err != nil {
		return fmt.Errorf("insert archived lottery: %w", err)
	}

	if len(lot.Tickets) == 0 {
		return nil
	}

	tickets := make([]models.ArchivedTicket, len(lot.Tickets))
	for i, t := range lot.Tickets {
		tickets[i] = models.ArchivedTicket{
			Code:        t.Code,
			LotteryID:   lot.ID,
			BuyerID:     t.BuyerID,
			PurchasedAt: t.PurchasedAt,
			Won:         outcome.Winner != nil && outcome.Winner.Code == t.Code,
		}
	}
	if _, err := a.Bun.NewInsert().Model(&tickets).Exec(ctx); err != nil {
		return fmt.Errorf("insert archived tickets: %w", err)
	}
	return nil
}

// Get fetches one terminal record by lottery id.
func (a *Archive) Get(lotteryID string) (*models.ArchivedLottery, error) {
	var archived models.ArchivedLottery
	err := a.Bun.NewSelect().
		Model(&archived).
		Where("lottery_id = ?", lotteryID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &archived, nil
}

// Stats aggregates totals over all settled lotteries.
func (a *Archive) Stats() (models.ArchiveStats, error) {
	ctx := context.Background()
	var stats models.ArchiveStats

	settled, err := a.Bun.NewSelect().Model((*models.ArchivedLottery)(nil)).Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("count settled: %w", err)
	}
	noSales, err := a.Bun.NewSelect().Model((*models.ArchivedLottery)(nil)).Where("no_sale = ?", true).Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("count no-sales: %w", err)
	}
	sold, err := a.Bun.NewSelect().Model((*models.ArchivedTicket)(nil)).Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("count tickets: %w", err)
	}

	stats.LotteriesSettled = settled
	stats.NoSales = noSales
	stats.TicketsSold = sold
	return stats, nil
}
