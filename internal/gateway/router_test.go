package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
)

// mockHistory implements device.HistoryRepository for testing.
type mockHistory struct {
	mu      sync.Mutex
	entries []device.HistoryEntry
	err     error
}

func (m *mockHistory) RecordEvent(_ context.Context, entry device.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockHistory) GetHistory(_ context.Context, deviceID string, _ int) ([]device.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []device.HistoryEntry
	for _, e := range m.entries {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockHistory) getEntries() []device.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]device.HistoryEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func routerRegistry(t *testing.T) *device.Registry {
	t.Helper()
	reg, rejected := device.NewRegistry([]device.Descriptor{
		{ID: "sw1", Family: device.FamilySwitch, StatusTopic: "stat/sw1", CommandTopic: "cmnd/sw1"},
		{ID: "fan1", Family: device.FamilyFan, StatusTopic: "stat/fan1", CommandTopic: "cmnd/fan1"},
		{ID: "strip", Family: device.FamilyRGBW, StatusTopic: "stat/strip", CommandTopic: "cmnd/strip"},
		{ID: "door", Family: device.FamilyFlag, StatusTopic: "stat/door", CommandTopic: "cmnd/door"},
		{ID: "probe", Family: device.FamilyTemp, StatusTopic: "tele/probe"},
	}, nil)
	if len(rejected) != 0 {
		t.Fatalf("NewRegistry() rejected %+v", rejected)
	}
	return reg
}

func TestRouter_Execute(t *testing.T) {
	s, broker, _ := startSession(t, routerRegistry(t), SessionConfig{})
	router := NewRouter(s)

	tests := []struct {
		name        string
		id          string
		verb        device.Verb
		params      device.Params
		wantTopic   string
		wantPayload string
		wantErr     error
	}{
		{name: "switch on", id: "sw1", verb: device.VerbOn, wantTopic: "cmnd/sw1", wantPayload: "ON"},
		{name: "id is normalized", id: "SW-1", verb: device.VerbOff, wantTopic: "cmnd/sw1", wantPayload: "OFF"},
		{name: "fan level", id: "fan1", verb: device.VerbSetLevel, params: device.Params{"level": 3}, wantTopic: "cmnd/fan1", wantPayload: "3"},
		{name: "fan speed up", id: "fan1", verb: device.VerbSpeedUp, wantTopic: "cmnd/fan1", wantPayload: "+"},
		{name: "flag reset", id: "door", verb: device.VerbReset, wantTopic: "cmnd/door", wantPayload: "RESET"},
		{name: "unknown device", id: "ghost", verb: device.VerbOn, wantErr: ErrDeviceNotFound},
		{name: "flag has no on", id: "door", verb: device.VerbOn, wantErr: ErrUnsupportedOperation},
		{name: "telemetry has no off", id: "probe", verb: device.VerbOff, wantErr: ErrUnsupportedOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker.ClearPublished()

			cmd, err := router.Execute(context.Background(), tt.id, tt.verb, tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
				}
				if got := broker.GetPublished(); len(got) != 0 {
					t.Errorf("published %+v on error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if cmd.Topic != tt.wantTopic || string(cmd.Payload) != tt.wantPayload {
				t.Errorf("command = %s %q, want %s %q", cmd.Topic, cmd.Payload, tt.wantTopic, tt.wantPayload)
			}

			published := broker.GetPublished()
			if len(published) != 1 {
				t.Fatalf("published %d messages, want 1", len(published))
			}
			want := mockPublish{Topic: tt.wantTopic, Payload: tt.wantPayload}
			if published[0] != want {
				t.Errorf("published = %+v, want %+v (never retained)", published[0], want)
			}
		})
	}
}

func TestRouter_SetColorClamps(t *testing.T) {
	s, broker, _ := startSession(t, routerRegistry(t), SessionConfig{})
	router := NewRouter(s)
	broker.ClearPublished()

	_, err := router.Execute(context.Background(), "strip", device.VerbSetColor, device.Params{
		"r": 300, "g": -5, "b": 10, "w": 10, "brightness": 10,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	published := broker.GetPublished()
	if len(published) != 1 {
		t.Fatalf("published %d messages, want 1", len(published))
	}
	want := `{"state":"ON","br":10,"c":{"r":255,"g":0,"b":10,"w":10}}`
	if published[0].Payload != want {
		t.Errorf("payload = %s, want %s", published[0].Payload, want)
	}
}

func TestRouter_QueryReportOnly(t *testing.T) {
	s, broker, reporter := startSession(t, routerRegistry(t), SessionConfig{})
	router := NewRouter(s)
	waitFor(t, "query replay", func() bool { return reporter.stateCount() == 5 })
	broker.ClearPublished()

	cmd, err := router.Execute(context.Background(), "probe", device.VerbQuery, nil)
	if err != nil {
		t.Fatalf("Execute(query) error = %v", err)
	}
	if cmd.Publishes() {
		t.Errorf("telemetry query publishes to %q", cmd.Topic)
	}
	if got := broker.GetPublished(); len(got) != 0 {
		t.Errorf("published %+v, want nothing", got)
	}
	waitFor(t, "query report", func() bool { return reporter.stateCount() == 6 })
}

func TestRouter_NotConnected(t *testing.T) {
	broker := newMockBroker()
	s, err := NewSession(routerRegistry(t), broker, nil, SessionConfig{})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Stop()

	_, err = NewRouter(s).Execute(context.Background(), "sw1", device.VerbOn, nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Execute() error = %v, want ErrNotConnected", err)
	}

	// The command never reached the device, so nothing was committed.
	sw, _ := s.Registry().Get("sw1")
	if sw.(*device.Switch).On() {
		t.Error("switch On() = true after failed publish, want false")
	}
	upd, err := sw.ApplyStatus([]byte("OFF"))
	if err != nil {
		t.Fatalf("ApplyStatus(OFF) error = %v", err)
	}
	if len(upd.Events) != 0 {
		t.Errorf("ApplyStatus(OFF) events = %+v, want none", upd.Events)
	}
}

func TestRouter_Journal(t *testing.T) {
	s, _, _ := startSession(t, routerRegistry(t), SessionConfig{})
	router := NewRouter(s)
	history := &mockHistory{}
	router.SetJournal(history)

	if _, err := router.Execute(context.Background(), "sw1", device.VerbOn, nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := router.Execute(context.Background(), "ghost", device.VerbOn, nil); err == nil {
		t.Fatal("Execute(ghost) error = nil")
	}

	entries := history.getEntries()
	if len(entries) != 1 {
		t.Fatalf("journal has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.DeviceID != "sw1" || e.Event != "on" || e.Detail != "ON" || e.Source != device.HistorySourceCommand {
		t.Errorf("entry = %+v", e)
	}

	// A failing journal does not fail the command.
	history.err = errors.New("disk full")
	if _, err := router.Execute(context.Background(), "sw1", device.VerbOff, nil); err != nil {
		t.Errorf("Execute() with failing journal error = %v", err)
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: x", ErrDeviceNotFound), ReasonNotFound},
		{fmt.Errorf("%w: x", ErrUnsupportedOperation), ReasonUnsupported},
		{fmt.Errorf("%w: x", device.ErrInvalidParameters), ReasonInvalidParams},
		{ErrNotConnected, ReasonNotConnected},
		{ErrStopped, ReasonNotConnected},
		{errors.New("timeout"), ReasonPublish},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
