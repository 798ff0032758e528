package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordMessage("switch", time.Millisecond)
	m.RecordMessage("switch", time.Millisecond)
	m.RecordDecodeError("ifan")
	m.RecordUnknownTopic()
	m.RecordTransition("DON")
	m.RecordCommand("on")
	m.RecordCommandError("not_found")
	m.RecordSubscribeFailure()
	m.RecordReconnect()
	m.RecordConnected(true)
	m.RecordReportDropped()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"messages", testutil.ToFloat64(m.MessagesReceived.WithLabelValues("switch")), 2},
		{"decode errors", testutil.ToFloat64(m.DecodeErrors.WithLabelValues("ifan")), 1},
		{"unknown topics", testutil.ToFloat64(m.UnknownTopics), 1},
		{"transitions", testutil.ToFloat64(m.Transitions.WithLabelValues("DON")), 1},
		{"commands", testutil.ToFloat64(m.CommandsPublished.WithLabelValues("on")), 1},
		{"command errors", testutil.ToFloat64(m.CommandErrors.WithLabelValues("not_found")), 1},
		{"subscribe failures", testutil.ToFloat64(m.SubscribeFailures), 1},
		{"reconnects", testutil.ToFloat64(m.Reconnects), 1},
		{"connected", testutil.ToFloat64(m.Connected), 1},
		{"dropped", testutil.ToFloat64(m.ReportsDropped), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	m.RecordConnected(false)
	if got := testutil.ToFloat64(m.Connected); got != 0 {
		t.Errorf("connected after disconnect = %v, want 0", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordMessage("switch", 0)
	m.RecordDecodeError("switch")
	m.RecordUnknownTopic()
	m.RecordTransition("DOF")
	m.RecordCommand("off")
	m.RecordCommandError("x")
	m.RecordSubscribeFailure()
	m.RecordReconnect()
	m.RecordConnected(true)
	m.RecordReportDropped()
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordUnknownTopic()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "mqttgw_status_unknown_topic_total 1") {
		t.Errorf("exposition missing unknown topic counter:\n%s", body)
	}
}
