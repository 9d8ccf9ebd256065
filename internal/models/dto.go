package models

// CreateLotteryRequest is the body of POST /api/lottery. Duration accepts a
// trailing s|m|h unit or a bare number of seconds.
type CreateLotteryRequest struct {
	Item        string `json:"item"`
	Duration    string `json:"duration"`
	TicketPrice string `json:"ticket_price"`
	MaxTickets  *int   `json:"max_tickets,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	// AuxChannelID is an opaque notification target carried through to the
	// outcome event.
	AuxChannelID string `json:"aux_channel_id,omitempty"`
}

// BuyTicketsRequest is the body of POST /api/lottery/{lotteryId}/tickets.
type BuyTicketsRequest struct {
	Count int `json:"count"`
}

// BuyTicketsResponse carries the purchased codes back to the buyer. Warning
// is set when private delivery of the codes failed; the purchase itself is
// committed regardless.
type BuyTicketsResponse struct {
	LotteryID string   `json:"lottery_id"`
	Item      string   `json:"item"`
	Codes     []string `json:"codes"`
	Sold      int      `json:"tickets_sold"`
	Warning   string   `json:"warning,omitempty"`
}

// UserTickets maps item name to the codes a user holds across active
// lotteries.
type UserTickets struct {
	UserID  string              `json:"user_id"`
	Tickets map[string][]string `json:"tickets"`
}
