package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ArchivedLottery is the immutable terminal record of a settled lottery.
// Rows are insert-only; nothing updates them after finalization.
type ArchivedLottery struct {
	bun.BaseModel `bun:"table:archived_lotteries"`

	LotteryID   string    `bun:"lottery_id,pk"`
	Item        string    `bun:"item,notnull"`
	SellerID    string    `bun:"seller_id,notnull"`
	TicketPrice string    `bun:"ticket_price"`
	MaxTickets  int       `bun:"max_tickets"`
	TicketsSold int       `bun:"tickets_sold,notnull"`
	NoSale      bool      `bun:"no_sale,notnull"`
	WinnerID    string    `bun:"winner_id"`
	WinningCode string    `bun:"winning_code"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	EndTime     time.Time `bun:"end_time,notnull"`
	DrawnAt     time.Time `bun:"drawn_at,notnull"`
}

// ArchivedTicket preserves every ticket of a settled lottery for support
// lookups by code.
type ArchivedTicket struct {
	bun.BaseModel `bun:"table:archived_tickets"`

	Code        string    `bun:"code,pk"`
	LotteryID   string    `bun:"lottery_id,notnull"`
	BuyerID     string    `bun:"buyer_id,notnull"`
	PurchasedAt time.Time `bun:"purchased_at,notnull"`
	Won         bool      `bun:"won,notnull"`
}

// ArchiveStats are aggregate totals over the archive.
type ArchiveStats struct {
	LotteriesSettled int `json:"lotteries_settled"`
	TicketsSold      int `json:"tickets_sold"`
	NoSales          int `json:"no_sales"`
}
