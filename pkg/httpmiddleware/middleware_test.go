package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testRouter() chi.Router {
	r := chi.NewRouter()
	r.Get("/api/cart", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Patch("/api/cart/items/{productID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	r.Get("/fail", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})
	return r
}

func TestWrap_Order(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Wrap(okHandler(), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestMakeRouteFinder(t *testing.T) {
	find := MakeRouteFinder(testRouter())

	assert.Equal(t, "/api/cart/items/{productID}",
		find(httptest.NewRequest(http.MethodPatch, "/api/cart/items/tee", nil)))
	assert.Equal(t, "/api/cart", find(httptest.NewRequest(http.MethodGet, "/api/cart", nil)))
	assert.Empty(t, find(httptest.NewRequest(http.MethodGet, "/nowhere", nil)))
	assert.Empty(t, find(httptest.NewRequest(http.MethodDelete, "/api/cart", nil)))
}

func TestLoggingChain(t *testing.T) {
	router := testRouter()
	find := MakeRouteFinder(router)
	core, logs := observer.New(zapcore.DebugLevel)

	h := Wrap(router,
		RequestID(),
		InjectLogger(zap.New(core)),
		Recovery(),
		Instrument("test", find, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider()),
		LogRequests(find),
		Labeler(find),
	)

	t.Run("AccessLog", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/cart/items/tee", nil)
		req.Header.Set("X-Request-ID", "req-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusNoContent, w.Code)
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "Request", entries[0].Message)
		assert.Equal(t, "/api/cart/items/{productID}", fields["route"])
		assert.Equal(t, int64(http.StatusNoContent), fields["status"])
		assert.Equal(t, "req-1", fields["request_id"])
	})

	t.Run("ServerErrorLoggedAsError", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

		require.Equal(t, http.StatusBadGateway, w.Code)
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	})

	t.Run("Panic", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"code":"internal","message":"internal error"}`, w.Body.String())
		assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	})
}

func TestCORS(t *testing.T) {
	t.Run("Preflight", func(t *testing.T) {
		h := CORS(CORSConfig{
			AllowOrigins: []string{"https://Shop.example"},
			AllowHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:       600,
		})(okHandler())

		req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
		req.Header.Set("Origin", "https://shop.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://Shop.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
		assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("DisallowedOrigin", func(t *testing.T) {
		h := CORS(CORSConfig{AllowOrigins: []string{"https://shop.example"}})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Values("Vary"), "Origin")
	})

	t.Run("WildcardWithCredentialsEchoes", func(t *testing.T) {
		h := CORS(CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("Wildcard", func(t *testing.T) {
		h := CORS(CORSConfig{})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Values("Vary"))
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	for _, bad := range []string{"bad\nid", strings.Repeat("x", 129), "café"} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, bad)
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Len(t, seen, 36, "%q is replaced", bad)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	}
}
