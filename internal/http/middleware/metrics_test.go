package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/decks/:id", func(c *gin.Context) { c.String(http.StatusOK, "deck") })
	r.DELETE("/questions/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseDeck := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/decks/:id", "200"))
	baseQ := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/questions/:id", "204"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/decks/"+id, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET /decks/%s -> %d", id, w.Code)
		}
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/questions/q1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/decks/:id", "200")); got != baseDeck+2 {
		t.Fatalf("deck counter = %v; want %v", got, baseDeck+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/questions/:id", "204")); got != baseQ+1 {
		t.Fatalf("question counter = %v; want %v", got, baseQ+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")); got != base404+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, base404+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}

func TestMetrics_StreamsTrackedSeparately(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	var openDuring, inflightDuring float64
	r.GET("/presentations/:sid/stream", func(c *gin.Context) {
		openDuring = testutil.ToFloat64(streamsOpen)
		inflightDuring = testutil.ToFloat64(httpInflight)
		c.Status(http.StatusOK)
	})

	baseOpen := testutil.ToFloat64(streamsOpen)
	baseInflight := testutil.ToFloat64(httpInflight)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/presentations/s1/stream", nil))

	if openDuring != baseOpen+1 {
		t.Fatalf("streams open during = %v; want %v", openDuring, baseOpen+1)
	}
	if inflightDuring != baseInflight {
		t.Fatalf("stream counted as in-flight request")
	}
	if got := testutil.ToFloat64(streamsOpen); got != baseOpen {
		t.Fatalf("streams open after = %v; want %v", got, baseOpen)
	}
	if httpLat.DeleteLabelValues("GET", "/presentations/:sid/stream") {
		t.Fatalf("stream observed in request latency histogram")
	}
}

func TestMetrics_CountsReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.Use(func(c *gin.Context) {
		c.Set(ctxKeyIdemReplay, true)
		c.Next()
	})
	r.POST("/narrations", func(c *gin.Context) { c.Status(http.StatusCreated) })

	base := testutil.ToFloat64(replays.WithLabelValues("/narrations"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/narrations", nil))
	if got := testutil.ToFloat64(replays.WithLabelValues("/narrations")); got != base+1 {
		t.Fatalf("replays = %v; want %v", got, base+1)
	}
}
