package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAreBounded(t *testing.T) {
	r := newEngine()
	r.Use(Metrics())
	r.GET("/conversations/:id", func(c *gin.Context) { c.String(http.StatusOK, "hi") })

	baseRoute := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/conversations/:id", "200"))
	baseMiss := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", unmatchedRoute, "404"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/conversations/c1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/conversations/c2", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/conversations/:id", "200")); got != baseRoute+2 {
		t.Fatalf("route counter = %v, want %v", got, baseRoute+2)
	}
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", unmatchedRoute, "404")); got != baseMiss+2 {
		t.Fatalf("unmatched counter = %v, want %v", got, baseMiss+2)
	}
	if got := testutil.ToFloat64(requestsInflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}
}

func TestMetrics_UpgradeTrackedSeparately(t *testing.T) {
	r := newEngine()
	r.Use(Metrics())

	var during float64
	r.GET("/ws", func(c *gin.Context) {
		during = testutil.ToFloat64(websocketsOpen)
		c.Status(http.StatusSwitchingProtocols)
	})
	before := testutil.ToFloat64(websocketsOpen)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if during != before+1 {
		t.Fatalf("websockets open during handler = %v, want %v", during, before+1)
	}
	if got := testutil.ToFloat64(websocketsOpen); got != before {
		t.Fatalf("websockets open after = %v, want %v", got, before)
	}
}
