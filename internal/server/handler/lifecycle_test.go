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

type fakeLifecycleSvc struct {
	lockFn    func(ctx context.Context, marketID int64) error
	resolveFn func(ctx context.Context, marketID int64, winning domain.Side, caller common.Address) error
}

func (f *fakeLifecycleSvc) Lock(ctx context.Context, marketID int64) error {
	return f.lockFn(ctx, marketID)
}

func (f *fakeLifecycleSvc) Resolve(ctx context.Context, marketID int64, winning domain.Side, caller common.Address) error {
	return f.resolveFn(ctx, marketID, winning, caller)
}

type fakeClaimSvc struct {
	claimFn     func(ctx context.Context, marketID int64, bettor common.Address) (*big.Int, error)
	claimableFn func(ctx context.Context, marketID int64, bettor common.Address) (*big.Int, error)
}

func (f *fakeClaimSvc) Claim(ctx context.Context, marketID int64, bettor common.Address) (*big.Int, error) {
	return f.claimFn(ctx, marketID, bettor)
}

func (f *fakeClaimSvc) Claimable(ctx context.Context, marketID int64, bettor common.Address) (*big.Int, error) {
	return f.claimableFn(ctx, marketID, bettor)
}

func TestLock(t *testing.T) {
	require := require.New(t)
	svc := &fakeLifecycleSvc{
		lockFn: func(_ context.Context, marketID int64) error {
			require.Equal(int64(4), marketID)
			return nil
		},
	}
	h := NewLifecycleHandler(svc, testLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/markets/4/lock", nil)
	r.SetPathValue("id", "4")
	w := httptest.NewRecorder()
	h.Lock(w, r)

	require.Equal(http.StatusOK, w.Code)
}

func TestLockTooEarly(t *testing.T) {
	require := require.New(t)
	svc := &fakeLifecycleSvc{
		lockFn: func(context.Context, int64) error { return domain.ErrTooEarly },
	}
	h := NewLifecycleHandler(svc, testLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/markets/4/lock", nil)
	r.SetPathValue("id", "4")
	w := httptest.NewRecorder()
	h.Lock(w, r)

	require.Equal(http.StatusConflict, w.Code)
}

func TestResolve(t *testing.T) {
	require := require.New(t)
	svc := &fakeLifecycleSvc{
		resolveFn: func(_ context.Context, marketID int64, winning domain.Side, caller common.Address) error {
			require.Equal(int64(4), marketID)
			require.Equal(domain.SideNo, winning)
			require.Equal(testCaller, caller)
			return nil
		},
	}
	h := NewLifecycleHandler(svc, testLogger())

	r := signedRequest(http.MethodPost, "/api/markets/4/resolve", `{"winningSide":"no"}`)
	r.SetPathValue("id", "4")
	w := httptest.NewRecorder()
	h.Resolve(w, r)

	require.Equal(http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal("resolved", resp["status"])
	require.Equal("no", resp["winningSide"])
}

func TestResolveAuthAndValidation(t *testing.T) {
	require := require.New(t)
	svc := &fakeLifecycleSvc{
		resolveFn: func(context.Context, int64, domain.Side, common.Address) error {
			return domain.ErrUnauthorized
		},
	}
	h := NewLifecycleHandler(svc, testLogger())

	// No recovered caller at all.
	r := httptest.NewRequest(http.MethodPost, "/api/markets/4/resolve", nil)
	r.SetPathValue("id", "4")
	w := httptest.NewRecorder()
	h.Resolve(w, r)
	require.Equal(http.StatusUnauthorized, w.Code)

	// Side must be yes or no.
	r = signedRequest(http.MethodPost, "/api/markets/4/resolve", `{"winningSide":"none"}`)
	r.SetPathValue("id", "4")
	w = httptest.NewRecorder()
	h.Resolve(w, r)
	require.Equal(http.StatusBadRequest, w.Code)

	// Signed but not the oracle.
	r = signedRequest(http.MethodPost, "/api/markets/4/resolve", `{"winningSide":"yes"}`)
	r.SetPathValue("id", "4")
	w = httptest.NewRecorder()
	h.Resolve(w, r)
	require.Equal(http.StatusForbidden, w.Code)
}

func TestClaim(t *testing.T) {
	require := require.New(t)
	svc := &fakeClaimSvc{
		claimFn: func(_ context.Context, marketID int64, bettor common.Address) (*big.Int, error) {
			require.Equal(int64(4), marketID)
			require.Equal(testCaller, bettor)
			return big.NewInt(450), nil
		},
	}
	h := NewClaimHandler(svc, testLogger())

	r := signedRequest(http.MethodPost, "/api/markets/4/claims", "")
	r.SetPathValue("id", "4")
	w := httptest.NewRecorder()
	h.Claim(w, r)

	require.Equal(http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal("450", resp["amount"])
}

func TestClaimErrors(t *testing.T) {
	require := require.New(t)
	svc := &fakeClaimSvc{
		claimFn: func(context.Context, int64, common.Address) (*big.Int, error) {
			return nil, domain.ErrAlreadyClaimed
		},
	}
	h := NewClaimHandler(svc, testLogger())

	// Unsigned claim.
	r := httptest.NewRequest(http.MethodPost, "/api/markets/4/claims", nil)
	r.SetPathValue("id", "4")
	w := httptest.NewRecorder()
	h.Claim(w, r)
	require.Equal(http.StatusUnauthorized, w.Code)

	// Double claim.
	r = signedRequest(http.MethodPost, "/api/markets/4/claims", "")
	r.SetPathValue("id", "4")
	w = httptest.NewRecorder()
	h.Claim(w, r)
	require.Equal(http.StatusConflict, w.Code)
}

func TestClaimablePreviewEndpoint(t *testing.T) {
	require := require.New(t)
	svc := &fakeClaimSvc{
		claimableFn: func(_ context.Context, marketID int64, bettor common.Address) (*big.Int, error) {
			require.Equal(int64(4), marketID)
			require.Equal(testCaller, bettor)
			return big.NewInt(200), nil
		},
	}
	h := NewClaimHandler(svc, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/markets/4/claims/"+testCaller.Hex(), nil)
	r.SetPathValue("id", "4")
	r.SetPathValue("address", testCaller.Hex())
	w := httptest.NewRecorder()
	h.Claimable(w, r)

	require.Equal(http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal("200", resp["amount"])
}
