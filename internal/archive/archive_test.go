package archive_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-lottery/internal/archive"
	"ms-lottery/internal/models"
)

func newTestArchive(t *testing.T) *archive.Archive {
	t.Helper()
	sqldb, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	a := archive.New(bun.NewDB(sqldb, sqlitedialect.New()))
	require.NoError(t, a.Migrate(context.Background()))
	return a
}

func settledLottery(id string) (models.Outcome, models.Lottery) {
	now := time.Now().UTC()
	tickets := []models.Ticket{
		{Code: "AAAA1111", BuyerID: "alice", PurchasedAt: now.Add(-time.Hour)},
		{Code: "BBBB2222", BuyerID: "alice", PurchasedAt: now.Add(-time.Hour)},
		{Code: "CCCC3333", BuyerID: "bob", PurchasedAt: now.Add(-30 * time.Minute)},
	}
	lot := models.Lottery{
		ID:          id,
		Item:        "Enchanted Sword",
		SellerID:    "seller-1",
		TicketPrice: "5 coins",
		MaxTickets:  10,
		Tickets:     tickets,
		State:       models.StateFinalized,
		CreatedAt:   now.Add(-2 * time.Hour),
		EndTime:     now,
	}
	outcome := models.Outcome{
		LotteryID:   id,
		Item:        lot.Item,
		SellerID:    lot.SellerID,
		TicketsSold: len(tickets),
		Winner:      &tickets[2],
		DrawnAt:     now,
	}
	return outcome, lot
}

func TestRecordAndGet(t *testing.T) {
	a := newTestArchive(t)

	outcome, lot := settledLottery("lot-1")
	require.NoError(t, a.Record(outcome, lot))

	got, err := a.Get("lot-1")
	require.NoError(t, err)
	assert.Equal(t, "Enchanted Sword", got.Item)
	assert.Equal(t, "seller-1", got.SellerID)
	assert.Equal(t, 3, got.TicketsSold)
	assert.Equal(t, "bob", got.WinnerID)
	assert.Equal(t, "CCCC3333", got.WinningCode)
	assert.False(t, got.NoSale)
}

func TestRecordNoSale(t *testing.T) {
	a := newTestArchive(t)

	now := time.Now().UTC()
	lot := models.Lottery{
		ID:        "lot-empty",
		Item:      "Dusty Shelf",
		SellerID:  "seller-1",
		Tickets:   []models.Ticket{},
		State:     models.StateFinalized,
		CreatedAt: now.Add(-time.Hour),
		EndTime:   now,
	}
	outcome := models.Outcome{LotteryID: lot.ID, Item: lot.Item, SellerID: lot.SellerID, DrawnAt: now}

	require.NoError(t, a.Record(outcome, lot))

	got, err := a.Get("lot-empty")
	require.NoError(t, err)
	assert.True(t, got.NoSale)
	assert.Empty(t, got.WinnerID)
	assert.Equal(t, 0, got.TicketsSold)
}

func TestStats(t *testing.T) {
	a := newTestArchive(t)

	outcome, lot := settledLottery("lot-1")
	require.NoError(t, a.Record(outcome, lot))

	now := time.Now().UTC()
	empty := models.Lottery{ID: "lot-2", Item: "Nothing", SellerID: "seller-2", State: models.StateFinalized, CreatedAt: now, EndTime: now}
	require.NoError(t, a.Record(models.Outcome{LotteryID: "lot-2", DrawnAt: now}, empty))

	stats, err := a.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.LotteriesSettled)
	assert.Equal(t, 3, stats.TicketsSold)
	assert.Equal(t, 1, stats.NoSales)
}

func TestGetUnknownLottery(t *testing.T) {
	a := newTestArchive(t)

	_, err := a.Get("missing")
	assert.Error(t, err)
}
