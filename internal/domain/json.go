package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Wire forms. Wei amounts travel as decimal strings so JSON consumers that
// parse numbers as float64 cannot corrupt them; deadlines are unix seconds to
// match the original contract surface.

type marketWire struct {
	ID           int64          `json:"id"`
	Creator      common.Address `json:"creator"`
	Deadline     int64          `json:"deadline"`
	CreatorStake string         `json:"creator_stake"`
	YesPool      string         `json:"yes_pool"`
	NoPool       string         `json:"no_pool"`
	State        string         `json:"state"`
	WinningSide  string         `json:"winning_side"`
	MetadataURI  string         `json:"metadata_uri"`
	CreatedAt    time.Time      `json:"created_at"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
}

// MarshalJSON encodes the market in its wire form.
func (m Market) MarshalJSON() ([]byte, error) {
	return json.Marshal(marketWire{
		ID:           m.ID,
		Creator:      m.Creator,
		Deadline:     m.Deadline.Unix(),
		CreatorStake: bigString(m.CreatorStake),
		YesPool:      bigString(m.YesPool),
		NoPool:       bigString(m.NoPool),
		State:        m.State.String(),
		WinningSide:  m.WinningSide.String(),
		MetadataURI:  m.MetadataURI,
		CreatedAt:    m.CreatedAt,
		ResolvedAt:   m.ResolvedAt,
	})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (m *Market) UnmarshalJSON(data []byte) error {
	var w marketWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	stake, err := parseBig(w.CreatorStake)
	if err != nil {
		return err
	}
	yes, err := parseBig(w.YesPool)
	if err != nil {
		return err
	}
	no, err := parseBig(w.NoPool)
	if err != nil {
		return err
	}

	*m = Market{
		ID:           w.ID,
		Creator:      w.Creator,
		Deadline:     time.Unix(w.Deadline, 0).UTC(),
		CreatorStake: stake,
		YesPool:      yes,
		NoPool:       no,
		State:        parseState(w.State),
		WinningSide:  ParseSide(w.WinningSide),
		MetadataURI:  w.MetadataURI,
		CreatedAt:    w.CreatedAt,
		ResolvedAt:   w.ResolvedAt,
	}
	return nil
}

type betWire struct {
	MarketID  int64          `json:"market_id"`
	Bettor    common.Address `json:"bettor"`
	YesAmount string         `json:"yes_amount"`
	NoAmount  string         `json:"no_amount"`
	Claimed   bool           `json:"claimed"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MarshalJSON encodes the bet in its wire form.
func (b Bet) MarshalJSON() ([]byte, error) {
	return json.Marshal(betWire{
		MarketID:  b.MarketID,
		Bettor:    b.Bettor,
		YesAmount: bigString(b.YesAmount),
		NoAmount:  bigString(b.NoAmount),
		Claimed:   b.Claimed,
		UpdatedAt: b.UpdatedAt,
	})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (b *Bet) UnmarshalJSON(data []byte) error {
	var w betWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	yes, err := parseBig(w.YesAmount)
	if err != nil {
		return err
	}
	no, err := parseBig(w.NoAmount)
	if err != nil {
		return err
	}

	*b = Bet{
		MarketID:  w.MarketID,
		Bettor:    w.Bettor,
		YesAmount: yes,
		NoAmount:  no,
		Claimed:   w.Claimed,
		UpdatedAt: w.UpdatedAt,
	}
	return nil
}

func parseState(s string) MarketState {
	switch s {
	case "locked":
		return StateLocked
	case "resolved":
		return StateResolved
	default:
		return StateOpen
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("domain: invalid amount %q", s)
	}
	return v, nil
}
