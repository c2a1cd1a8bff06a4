package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies a ledger event emitted by the engine.
type EventType string

const (
	EventMarketCreated  EventType = "market_created"
	EventBetPlaced      EventType = "bet_placed"
	EventMarketLocked   EventType = "market_locked"
	EventMarketResolved EventType = "market_resolved"
	EventClaimed        EventType = "claimed"
)

// Event is a notification emitted after a state change has been committed.
// Fields that do not apply to the event type are zero and omitted from the
// wire form. Amounts travel as decimal strings to survive JSON consumers
// that cannot represent wei values exactly.
type Event struct {
	Type     EventType      `json:"type"`
	MarketID int64          `json:"market_id"`
	Actor    common.Address `json:"actor"`
	Side     Side           `json:"-"`
	Amount   *big.Int       `json:"-"`
	Deadline time.Time      `json:"-"`
	At       time.Time      `json:"at"`
}

type eventWire struct {
	Type     EventType      `json:"type"`
	MarketID int64          `json:"market_id"`
	Actor    common.Address `json:"actor"`
	Side     string         `json:"side,omitempty"`
	Amount   string         `json:"amount,omitempty"`
	Deadline int64          `json:"deadline,omitempty"`
	At       time.Time      `json:"at"`
}

// MarshalJSON encodes the event in its wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	w := eventWire{
		Type:     e.Type,
		MarketID: e.MarketID,
		Actor:    e.Actor,
		At:       e.At,
	}
	if e.Side != SideNone {
		w.Side = e.Side.String()
	}
	if e.Amount != nil {
		w.Amount = e.Amount.String()
	}
	if !e.Deadline.IsZero() {
		w.Deadline = e.Deadline.Unix()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Type = w.Type
	e.MarketID = w.MarketID
	e.Actor = w.Actor
	e.At = w.At
	e.Side = ParseSide(w.Side)
	e.Amount = nil
	if w.Amount != "" {
		amt, ok := new(big.Int).SetString(w.Amount, 10)
		if !ok {
			return fmt.Errorf("domain: invalid event amount %q", w.Amount)
		}
		e.Amount = amt
	}
	e.Deadline = time.Time{}
	if w.Deadline != 0 {
		e.Deadline = time.Unix(w.Deadline, 0).UTC()
	}
	return nil
}

// EventBus delivers engine events to observers. Publish is called after the
// originating operation has committed; delivery is best-effort and must not
// affect ledger state.
type EventBus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of events that is closed when ctx is
	// cancelled.
	Subscribe(ctx context.Context) (<-chan Event, error)
}
