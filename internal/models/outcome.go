package models

import "time"

// Outcome is the result of finalizing a lottery. Winner is nil when no
// tickets were sold.
type Outcome struct {
	LotteryID    string    `json:"lottery_id"`
	Item         string    `json:"item"`
	SellerID     string    `json:"seller_id"`
	AuxChannelID string    `json:"aux_channel_id,omitempty"`
	TicketsSold  int       `json:"tickets_sold"`
	Winner       *Ticket   `json:"winner,omitempty"`
	DrawnAt      time.Time `json:"drawn_at"`
}

// NoSale reports whether the lottery closed without a single ticket sold.
func (o *Outcome) NoSale() bool {
	return o.Winner == nil
}
