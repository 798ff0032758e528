package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func lastHealth(t *testing.T, broker *mockBroker) (HealthMessage, mockPublish) {
	t.Helper()
	published := broker.GetPublished()
	for i := len(published) - 1; i >= 0; i-- {
		if published[i].Topic != "mqttgw/health" {
			continue
		}
		var msg HealthMessage
		if err := json.Unmarshal([]byte(published[i].Payload), &msg); err != nil {
			t.Fatalf("health payload: %v", err)
		}
		return msg, published[i]
	}
	t.Fatal("no health message published")
	return HealthMessage{}, mockPublish{}
}

func TestHealthReporter_PublishesOnConnect(t *testing.T) {
	broker := newMockBroker()
	s, err := NewSession(testRegistry(t), broker, nil, SessionConfig{})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	h := NewHealthReporter(HealthReporterConfig{
		GatewayID:   "gw1",
		Version:     "1.0.0",
		TopicPrefix: "mqttgw",
		Session:     s,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	msg, pub := lastHealth(t, broker)
	if !pub.Retained {
		t.Error("health message not retained")
	}
	if msg.Gateway != "gw1" || msg.Version != "1.0.0" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Status != HealthHealthy {
		t.Errorf("Status = %s, want healthy", msg.Status)
	}
	if msg.DevicesManaged != 2 {
		t.Errorf("DevicesManaged = %d, want 2", msg.DevicesManaged)
	}
	if msg.Connection == nil || msg.Connection.Status != "connected" {
		t.Errorf("Connection = %+v, want connected", msg.Connection)
	}

	h.Stop()
	msg, _ = lastHealth(t, broker)
	if msg.Status != HealthStopping {
		t.Errorf("Status after Stop = %s, want stopping", msg.Status)
	}

	s.Stop()
	if got := h.Current().Status; got != HealthStopping {
		t.Errorf("Current() after Stop = %s, want stopping", got)
	}
}

func TestHealthReporter_DetermineStatus(t *testing.T) {
	broker := newMockBroker()
	broker.subscribeErr["stat/fan1"] = errors.New("refused")
	s, err := NewSession(testRegistry(t), broker, nil, SessionConfig{})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	h := NewHealthReporter(HealthReporterConfig{GatewayID: "gw1", TopicPrefix: "mqttgw", Session: s})

	// Never started: disconnected.
	if status, _ := h.determineStatus(); status != HealthDegraded {
		t.Errorf("before Start = %s, want degraded", status)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	status, reason := h.determineStatus()
	if status != HealthDegraded || reason != "1 status topics not subscribed" {
		t.Errorf("determineStatus() = %s %q, want degraded for refused topic", status, reason)
	}

	broker.SimulateConnectionLost(nil)
	status, reason = h.determineStatus()
	if status != HealthDegraded || reason != "broker disconnected" {
		t.Errorf("determineStatus() = %s %q, want degraded disconnected", status, reason)
	}

	msg := h.Current()
	if msg.Connection.Status != "disconnected" || msg.Reason != "broker disconnected" {
		t.Errorf("Current() = %+v", msg)
	}
}

func TestHealthReporter_PeriodicPublish(t *testing.T) {
	s, broker, _ := startSession(t, testRegistry(t), SessionConfig{})
	h := NewHealthReporter(HealthReporterConfig{
		GatewayID:   "gw1",
		TopicPrefix: "mqttgw",
		Interval:    5 * time.Millisecond,
		Session:     s,
	})
	broker.ClearPublished()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	waitFor(t, "periodic health", func() bool {
		n := 0
		for _, p := range broker.GetPublished() {
			if p.Topic == "mqttgw/health" {
				n++
			}
		}
		return n >= 2
	})
}

func TestHealthReporter_LWT(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{GatewayID: "gw1", TopicPrefix: "home/gw"})

	if got := h.Topic(); got != "home/gw/health" {
		t.Errorf("Topic() = %q, want home/gw/health", got)
	}

	payload, err := h.GetLWTPayload()
	if err != nil {
		t.Fatalf("GetLWTPayload() error = %v", err)
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Status != HealthOffline || msg.Gateway != "gw1" || msg.Reason != "unexpected_disconnect" {
		t.Errorf("LWT = %+v", msg)
	}

	// No session: publishing is a no-op.
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() without session error = %v", err)
	}
}
