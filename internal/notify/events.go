package notify

import (
	"fmt"

	"github.com/mucks/proofmarket/internal/domain"
)

// FormatEvent renders a ledger event as a notification title and message.
// The returned event name feeds the Notifier's event-type filter.
func FormatEvent(ev domain.Event) (event, title, message string) {
	event = string(ev.Type)

	switch ev.Type {
	case domain.EventMarketCreated:
		title = fmt.Sprintf("Market #%d created", ev.MarketID)
		message = fmt.Sprintf("Creator %s opened a market closing at %s with a %s wei stake.",
			ev.Actor.Hex(), ev.Deadline.UTC().Format("2006-01-02 15:04 MST"), ev.Amount)

	case domain.EventBetPlaced:
		title = fmt.Sprintf("Bet on market #%d", ev.MarketID)
		message = fmt.Sprintf("%s staked %s wei on %s.",
			ev.Actor.Hex(), ev.Amount, ev.Side)

	case domain.EventMarketLocked:
		title = fmt.Sprintf("Market #%d locked", ev.MarketID)
		message = "Betting is closed; the market awaits the oracle's verdict."

	case domain.EventMarketResolved:
		title = fmt.Sprintf("Market #%d resolved", ev.MarketID)
		message = fmt.Sprintf("The oracle ruled %s. Winners can claim their payouts.", ev.Side)

	case domain.EventClaimed:
		title = fmt.Sprintf("Payout on market #%d", ev.MarketID)
		message = fmt.Sprintf("%s claimed %s wei.", ev.Actor.Hex(), ev.Amount)

	default:
		title = fmt.Sprintf("Market #%d", ev.MarketID)
		message = string(ev.Type)
	}
	return event, title, message
}
