package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// AdminKeyHeader carries the admin API key.
const AdminKeyHeader = "X-Admin-Key"

type userKey struct{}

// userFromContext returns the authenticated user, if any.
func userFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey{}).(int64)
	return id, ok
}

// clientKey counts signed-in users by account and guests by address. It
// must run after the session middleware.
func clientKey(r *http.Request) string {
	if id, ok := userFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

// requireUser rejects requests without a valid session.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := bearerToken(r)
		id, err := h.Sessions.UserID(r.Context(), token)
		if err != nil {
			fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), id)))
	})
}

// optionalUser resolves the session when an Authorization header is sent.
// Guests pass through; a header with an unknown token is rejected.
func (h *Handler) optionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, sent := bearerToken(r)
		if !sent {
			next.ServeHTTP(w, r)
			return
		}
		id, err := h.Sessions.UserID(r.Context(), token)
		if err != nil {
			fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), id)))
	})
}

func withUser(ctx context.Context, id int64) context.Context {
	ctx = context.WithValue(ctx, userKey{}, id)
	return zctx.With(ctx, zap.Int64("user_id", id))
}

var errUnauthorized = errors.New("unauthorized")

// adminAuth checks admin keys by their HMAC-SHA256 under a server pepper.
type adminAuth struct {
	hash   []byte
	pepper []byte
}

func newAdminAuth(hexHash, pepper string) *adminAuth {
	a := &adminAuth{pepper: []byte(pepper)}
	if b, err := hex.DecodeString(strings.TrimSpace(hexHash)); err == nil {
		a.hash = b
	}
	return a
}

// HashAdminKey returns the hex digest to configure for key.
func HashAdminKey(key, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *adminAuth) verify(key string) error {
	if len(a.hash) == 0 || key == "" {
		return errUnauthorized
	}
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(key))
	if subtle.ConstantTimeCompare(mac.Sum(nil), a.hash) != 1 {
		return errUnauthorized
	}
	return nil
}

func (a *adminAuth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.verify(r.Header.Get(AdminKeyHeader)); err != nil {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "admin key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

var _ Sessions = (*session.Store)(nil)
