package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/ledger/ledger"
)

// FormatSignalOrg renders a signal as an Org-mode block with the structured
// facts in a PROPERTIES drawer and a Review heading for notes.
func FormatSignalOrg(s ledger.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s (%s)\n", s.Type, s.Symbol, shortID(s.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", s.ID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", s.Symbol)
	fmt.Fprintf(&b, ":TYPE: %s\n", s.Type)
	fmt.Fprintf(&b, ":STATUS: %s\n", s.Status)
	fmt.Fprintf(&b, ":TIME: %s\n", s.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":PRICE: %s\n", s.Price.String())
	fmt.Fprintf(&b, ":QUANTITY: %s\n", s.Quantity.String())
	if s.ClosePrice != nil {
		fmt.Fprintf(&b, ":CLOSE_PRICE: %s\n", s.ClosePrice.String())
	}
	if s.CloseDate != nil {
		fmt.Fprintf(&b, ":CLOSE_DATE: %s\n", s.CloseDate.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, ":REALIZED_PROFIT: %s\n", s.RealizedProfit.StringFixed(2))
	fmt.Fprintf(&b, ":COMMISSION: %s\n", s.Commission.StringFixed(2))
	if len(s.Offsets) > 0 {
		fmt.Fprintf(&b, ":OFFSETS: %s\n", strings.Join(s.Offsets, " "))
	}
	fmt.Fprintf(&b, ":REASON: %s\n", s.Reason)
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatSignalsOrg renders multiple signals separated by blank lines.
func FormatSignalsOrg(sigs []ledger.Signal) string {
	var b strings.Builder
	for i, s := range sigs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatSignalOrg(s))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
