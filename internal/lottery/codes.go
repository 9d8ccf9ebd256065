package lottery

import (
	"strings"

	"github.com/google/uuid"
)

// Ticket codes are 8 uppercase hex characters (32 bits of entropy). That
// keeps collisions within a single lottery negligible, but generation still
// re-checks against the lottery's existing codes and regenerates on a hit.
const codeLength = 8

func newTicketCode() string {
	u := uuid.New()
	hex := strings.ReplaceAll(u.String(), "-", "")
	return strings.ToUpper(hex[:codeLength])
}
