package models

import "time"

// State is the lifecycle state of a lottery.
type State string

const (
	StateOpen       State = "open"
	StateFinalizing State = "finalizing"
	StateFinalized  State = "finalized"
)

// Ticket is a single purchased entry. Immutable once created.
type Ticket struct {
	Code        string    `json:"code"`
	BuyerID     string    `json:"buyer_id"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// Lottery is the aggregate root: one item, one seller, a deadline and the
// tickets sold so far. MaxTickets == 0 means unbounded.
type Lottery struct {
	ID           string    `json:"id"`
	Item         string    `json:"item"`
	SellerID     string    `json:"seller_id"`
	TicketPrice  string    `json:"ticket_price"`
	MaxTickets   int       `json:"max_tickets,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	AuxChannelID string    `json:"aux_channel_id,omitempty"`
	Tickets      []Ticket  `json:"tickets"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	EndTime      time.Time `json:"end_time"`
}

// Clone returns a deep copy so callers never alias the store's live record.
func (l *Lottery) Clone() Lottery {
	c := *l
	c.Tickets = make([]Ticket, len(l.Tickets))
	copy(c.Tickets, l.Tickets)
	return c
}

// Remaining reports how many tickets can still be sold. The second return
// value is false for unbounded lotteries.
func (l *Lottery) Remaining() (int, bool) {
	if l.MaxTickets == 0 {
		return 0, false
	}
	return l.MaxTickets - len(l.Tickets), true
}

// HasCode reports whether a ticket code already exists in this lottery.
func (l *Lottery) HasCode(code string) bool {
	for _, t := range l.Tickets {
		if t.Code == code {
			return true
		}
	}
	return false
}

// LotterySummary is the read-only view handed to status listings and the
// display gateway.
type LotterySummary struct {
	ID          string    `json:"id"`
	Item        string    `json:"item"`
	SellerID    string    `json:"seller_id"`
	TicketPrice string    `json:"ticket_price"`
	MaxTickets  int       `json:"max_tickets,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	TicketsSold int       `json:"tickets_sold"`
	State       State     `json:"state"`
	EndTime     time.Time `json:"end_time"`
}

func (l *Lottery) Summary() LotterySummary {
	return LotterySummary{
		ID:          l.ID,
		Item:        l.Item,
		SellerID:    l.SellerID,
		TicketPrice: l.TicketPrice,
		MaxTickets:  l.MaxTickets,
		ImageURL:    l.ImageURL,
		TicketsSold: len(l.Tickets),
		State:       l.State,
		EndTime:     l.EndTime,
	}
}
