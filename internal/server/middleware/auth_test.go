package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mucks/proofmarket/internal/crypto"
)

// captureHandler records the caller identity and body seen by the inner
// handler.
type captureHandler struct {
	called bool
	caller common.Address
	hasID  bool
	body   string
}

func (c *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.called = true
	c.caller, c.hasID = Caller(r.Context())
	body, _ := io.ReadAll(r.Body)
	c.body = string(body)
	w.WriteHeader(http.StatusOK)
}

func TestSignatureAuthRecoversCaller(t *testing.T) {
	require := require.New(t)

	signer, err := crypto.GenerateSigner()
	require.NoError(err)

	body := `{"side":"yes","amount":"100"}`
	sig, err := signer.SignMessage([]byte(body))
	require.NoError(err)

	inner := &captureHandler{}
	h := SignatureAuth(true)(inner)

	r := httptest.NewRequest(http.MethodPost, "/api/markets/1/bets", strings.NewReader(body))
	r.Header.Set("X-Signature", sig)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(http.StatusOK, w.Code)
	require.True(inner.called)
	require.True(inner.hasID)
	require.Equal(signer.Address(), inner.caller)
	// The body is restored for the handler to decode.
	require.Equal(body, inner.body)
}

func TestSignatureAuthRejectsInvalidSignature(t *testing.T) {
	require := require.New(t)

	inner := &captureHandler{}
	h := SignatureAuth(false)(inner)

	r := httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader("{}"))
	r.Header.Set("X-Signature", "0xdeadbeef")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(http.StatusUnauthorized, w.Code)
	require.False(inner.called)
}

func TestSignatureAuthUnsignedRequests(t *testing.T) {
	require := require.New(t)

	// Required mode: unsigned mutating requests are rejected, reads pass.
	inner := &captureHandler{}
	h := SignatureAuth(true)(inner)

	r := httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(http.StatusUnauthorized, w.Code)
	require.False(inner.called)

	r = httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(http.StatusOK, w.Code)
	require.True(inner.called)
	require.False(inner.hasID)

	// Optional mode: unsigned mutating requests pass through without a
	// caller; handlers decide whether one is needed.
	inner = &captureHandler{}
	h = SignatureAuth(false)(inner)

	r = httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader("{}"))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(http.StatusOK, w.Code)
	require.True(inner.called)
	require.False(inner.hasID)
}

func TestSignatureAuthTamperedBody(t *testing.T) {
	require := require.New(t)

	signer, err := crypto.GenerateSigner()
	require.NoError(err)
	sig, err := signer.SignMessage([]byte("signed body"))
	require.NoError(err)

	inner := &captureHandler{}
	h := SignatureAuth(true)(inner)

	// The signature recovers, but to a different address than the signer's:
	// the attacker cannot forge the victim's identity.
	r := httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader("different body"))
	r.Header.Set("X-Signature", sig)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(http.StatusOK, w.Code)
	require.True(inner.hasID)
	require.NotEqual(signer.Address(), inner.caller)
}

func TestWithCallerRoundTrip(t *testing.T) {
	require := require.New(t)

	addr := common.HexToAddress("0x0000000000000000000000000000000000000009")
	ctx := WithCaller(context.Background(), addr)
	got, ok := Caller(ctx)
	require.True(ok)
	require.Equal(addr, got)

	_, ok = Caller(context.Background())
	require.False(ok)
}
