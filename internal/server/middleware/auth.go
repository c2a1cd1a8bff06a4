package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mucks/proofmarket/internal/crypto"
)

// callerKey is the context key under which the authenticated caller address
// is stored.
type callerKey struct{}

// maxBodySize bounds how much of a request body the signature middleware
// will read.
const maxBodySize = 1 << 20 // 1 MiB

// Caller returns the authenticated address stored in the context by
// SignatureAuth, and whether one is present.
func Caller(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(common.Address)
	return addr, ok
}

// WithCaller returns a context carrying the given caller address. Used by
// tests and by handlers that construct requests internally.
func WithCaller(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// SignatureAuth returns middleware that authenticates mutating requests by
// recovering the signer of an EIP-191 personal-sign signature over the raw
// request body. The signature arrives in the X-Signature header as 65 bytes
// of hex. The recovered address is stored in the request context for
// handlers to read via Caller.
//
// Requests without a signature pass through unauthenticated; handlers that
// require a caller reject those themselves. If required is true, missing or
// invalid signatures are rejected with 401.
func SignatureAuth(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sig := strings.TrimSpace(r.Header.Get("X-Signature"))
			if sig == "" {
				if required && mutating(r.Method) {
					writeUnauthorized(w, "missing signature")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
			if err != nil {
				writeUnauthorized(w, "unreadable request body")
				return
			}
			r.Body.Close()
			// Handlers re-read the body after signature verification.
			r.Body = io.NopCloser(bytes.NewReader(body))

			addr, err := crypto.RecoverAddress(body, sig)
			if err != nil {
				writeUnauthorized(w, "invalid signature")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), addr)))
		})
	}
}

// mutating reports whether the HTTP method changes state.
func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
