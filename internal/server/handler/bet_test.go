package handler

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mucks/proofmarket/internal/domain"
)

// fakeBetSvc implements betService with overridable function fields.
type fakeBetSvc struct {
	placeFn func(ctx context.Context, marketID int64, bettor common.Address, side domain.Side, amount *big.Int) error
	getFn   func(ctx context.Context, marketID int64, bettor common.Address) (domain.Bet, error)
}

func (f *fakeBetSvc) PlaceBet(ctx context.Context, marketID int64, bettor common.Address, side domain.Side, amount *big.Int) error {
	return f.placeFn(ctx, marketID, bettor, side, amount)
}

func (f *fakeBetSvc) GetBet(ctx context.Context, marketID int64, bettor common.Address) (domain.Bet, error) {
	return f.getFn(ctx, marketID, bettor)
}

func TestPlaceBet(t *testing.T) {
	require := require.New(t)
	svc := &fakeBetSvc{
		placeFn: func(_ context.Context, marketID int64, bettor common.Address, side domain.Side, amount *big.Int) error {
			require.Equal(int64(5), marketID)
			require.Equal(testCaller, bettor)
			require.Equal(domain.SideYes, side)
			require.Equal(big.NewInt(1000), amount)
			return nil
		},
	}
	h := NewBetHandler(svc, testLogger())

	r := signedRequest(http.MethodPost, "/api/markets/5/bets", `{"side":"yes","amount":"1000"}`)
	r.SetPathValue("id", "5")
	w := httptest.NewRecorder()
	h.PlaceBet(w, r)

	require.Equal(http.StatusCreated, w.Code)
}

func TestPlaceBetRequiresCaller(t *testing.T) {
	require := require.New(t)
	h := NewBetHandler(&fakeBetSvc{}, testLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/markets/5/bets", nil)
	r.SetPathValue("id", "5")
	w := httptest.NewRecorder()
	h.PlaceBet(w, r)

	require.Equal(http.StatusUnauthorized, w.Code)
}

func TestPlaceBetRejectsBadInput(t *testing.T) {
	require := require.New(t)
	h := NewBetHandler(&fakeBetSvc{}, testLogger())

	for name, body := range map[string]string{
		"bad json":        "not json",
		"unknown side":    `{"side":"maybe","amount":"1000"}`,
		"missing side":    `{"amount":"1000"}`,
		"empty amount":    `{"side":"yes","amount":""}`,
		"negative amount": `{"side":"yes","amount":"-1"}`,
	} {
		r := signedRequest(http.MethodPost, "/api/markets/5/bets", body)
		r.SetPathValue("id", "5")
		w := httptest.NewRecorder()
		h.PlaceBet(w, r)
		require.Equal(http.StatusBadRequest, w.Code, name)
	}
}

func TestPlaceBetClosedMarket(t *testing.T) {
	require := require.New(t)
	svc := &fakeBetSvc{
		placeFn: func(context.Context, int64, common.Address, domain.Side, *big.Int) error {
			return domain.ErrMarketClosed
		},
	}
	h := NewBetHandler(svc, testLogger())

	r := signedRequest(http.MethodPost, "/api/markets/5/bets", `{"side":"no","amount":"1"}`)
	r.SetPathValue("id", "5")
	w := httptest.NewRecorder()
	h.PlaceBet(w, r)

	require.Equal(http.StatusConflict, w.Code)
}

func TestGetBet(t *testing.T) {
	require := require.New(t)
	svc := &fakeBetSvc{
		getFn: func(_ context.Context, marketID int64, bettor common.Address) (domain.Bet, error) {
			require.Equal(int64(5), marketID)
			require.Equal(testCaller, bettor)
			return domain.Bet{
				MarketID:  5,
				Bettor:    bettor,
				YesAmount: big.NewInt(75),
				NoAmount:  new(big.Int),
			}, nil
		},
	}
	h := NewBetHandler(svc, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/markets/5/bets/"+testCaller.Hex(), nil)
	r.SetPathValue("id", "5")
	r.SetPathValue("address", testCaller.Hex())
	w := httptest.NewRecorder()
	h.GetBet(w, r)

	require.Equal(http.StatusOK, w.Code)
	var wire map[string]any
	require.NoError(json.Unmarshal(w.Body.Bytes(), &wire))
	require.Equal("75", wire["yes_amount"])
	require.Equal(false, wire["claimed"])
}

func TestGetBetRejectsBadAddress(t *testing.T) {
	require := require.New(t)
	h := NewBetHandler(&fakeBetSvc{}, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/markets/5/bets/zzz", nil)
	r.SetPathValue("id", "5")
	r.SetPathValue("address", "zzz")
	w := httptest.NewRecorder()
	h.GetBet(w, r)

	require.Equal(http.StatusBadRequest, w.Code)
}
