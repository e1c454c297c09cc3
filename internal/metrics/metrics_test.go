package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestHandlerExposesCollectors(t *testing.T) {
	reg := Init(zerolog.Nop())

	SnapshotsPublished.Inc()
	MessagesDiscarded.WithLabelValues(FeedBook, ReasonInvalidJSON).Inc()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, name := range []string{
		"ladder_snapshots_published_total",
		`ladder_feed_messages_discarded_total{feed="book",reason="invalid_json"}`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in exposition", name)
		}
	}
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(HighlightDecays)
	HighlightDecays.Inc()
	if got := testutil.ToFloat64(HighlightDecays); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
