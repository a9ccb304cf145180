package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
)

// fakeHub serves a minimal hub JSON API for tests.
type fakeHub struct {
	t *testing.T

	statusBody  string
	controlBody string
	eventsBody  string

	// requests records the query values of every request received.
	requests []url.Values
}

func (f *fakeHub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.requests = append(f.requests, r.URL.Query())

		switch r.URL.Query().Get("request") {
		case "getstatus":
			w.Write([]byte(f.statusBody))
		case "getcontrol":
			w.Write([]byte(f.controlBody))
		case "getevents":
			w.Write([]byte(f.eventsBody))
		case "controldevicebyvalue", "runevent":
			w.Write([]byte(`{"Response":"ok"}`))
		default:
			http.Error(w, "unknown request", http.StatusBadRequest)
		}
	}
}

// lastRequest returns the query values of the most recent request.
func (f *fakeHub) lastRequest() url.Values {
	if len(f.requests) == 0 {
		f.t.Fatal("no requests received")
	}
	return f.requests[len(f.requests)-1]
}

const testStatusBody = `{
	"Name": "HomeSeer Devices",
	"Version": "4.2.0.0",
	"Devices": [
		{
			"ref": 170,
			"name": "Ceiling Light",
			"location": "Living Room",
			"location2": "Ground Floor",
			"device_type_string": "Z-Wave Switch Multilevel",
			"interface_name": "Z-Wave",
			"value": 0,
			"status": "Off",
			"last_change": "/Date(1602201044317)/",
			"relationship": 4,
			"associated_devices": [169]
		},
		{
			"ref": 169,
			"name": "Root",
			"location": "Living Room",
			"location2": "Ground Floor",
			"device_type_string": "Z-Wave Root Device",
			"interface_name": "Z-Wave",
			"value": 0,
			"status": "",
			"relationship": 2,
			"associated_devices": [170]
		},
		{
			"ref": 31,
			"name": "Temperature",
			"location": "Hall",
			"location2": "Ground Floor",
			"device_type_string": "Z-Wave Sensor Multilevel",
			"interface_name": null,
			"value": 21.5,
			"status": "21.5 C",
			"relationship": 4,
			"associated_devices": [30]
		}
	]
}`

const testControlBody = `{
	"Devices": [
		{
			"ref": 170,
			"ControlPairs": [
				{"ControlUse": 1, "ControlValue": 255},
				{"ControlUse": 2, "ControlValue": 0},
				{"ControlUse": 3, "ControlValue": 1}
			]
		}
	]
}`

const testEventsBody = `[
	{"Group": "Lighting", "Name": "Evening Lights"},
	{"Group": "Security", "Name": "Arm Away"}
]`

func newTestClient(t *testing.T) (*Client, *fakeHub) {
	t.Helper()

	f := &fakeHub{
		t:           t,
		statusBody:  testStatusBody,
		controlBody: testControlBody,
		eventsBody:  testEventsBody,
	}

	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	// Split host:port from the test server URL
	addr := strings.TrimPrefix(srv.URL, "http://")
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		t.Fatalf("unexpected test server address %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("unexpected test server port %q", portStr)
	}

	client := NewClient(ClientConfig{
		Host:     host,
		Port:     port,
		Username: "admin",
		Password: "secret",
	})

	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	return client, f
}

func TestClient_Initialize(t *testing.T) {
	client, _ := newTestClient(t)

	devices := client.Devices()
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}

	light, ok := client.Device(170)
	if !ok {
		t.Fatal("device 170 not found")
	}
	if light.Capability != CapabilityDimmable {
		t.Errorf("device 170 capability = %q, want dimmable", light.Capability)
	}
	if light.InterfaceName != "Z-Wave" {
		t.Errorf("device 170 interface = %q, want Z-Wave", light.InterfaceName)
	}
	if light.Value() != 0 {
		t.Errorf("device 170 value = %v, want 0", light.Value())
	}
	if _, hasLC := light.LastChange(); !hasLC {
		t.Error("device 170 missing last change")
	}

	sensor, ok := client.Device(31)
	if !ok {
		t.Fatal("device 31 not found")
	}
	if sensor.Capability != CapabilityStatus {
		t.Errorf("device 31 capability = %q, want status", sensor.Capability)
	}
	if sensor.InterfaceName != DefaultInterfaceName {
		t.Errorf("device 31 interface = %q, want default %q", sensor.InterfaceName, DefaultInterfaceName)
	}

	events := client.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Group != "Lighting" || events[0].Name != "Evening Lights" {
		t.Errorf("first event = %+v", events[0])
	}
}

func TestClient_Initialize_Credentials(t *testing.T) {
	_, f := newTestClient(t)

	q := f.requests[0]
	if q.Get("user") != "admin" || q.Get("pass") != "secret" {
		t.Errorf("credentials not sent: %v", q)
	}
}

func TestClient_ControlByValue(t *testing.T) {
	client, f := newTestClient(t)

	if err := client.ControlByValue(context.Background(), 170, 255); err != nil {
		t.Fatalf("ControlByValue() error = %v", err)
	}

	q := f.lastRequest()
	if q.Get("request") != "controldevicebyvalue" {
		t.Errorf("request = %q, want controldevicebyvalue", q.Get("request"))
	}
	if q.Get("ref") != "170" || q.Get("value") != "255" {
		t.Errorf("ref/value = %q/%q, want 170/255", q.Get("ref"), q.Get("value"))
	}
}

func TestClient_ControlByValue_Validation(t *testing.T) {
	client, _ := newTestClient(t)

	if err := client.ControlByValue(context.Background(), 0, 255); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ControlByValue(0, 255) error = %v, want ErrInvalidValue", err)
	}
	if err := client.ControlByValue(context.Background(), 170, 0); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ControlByValue(170, 0) error = %v, want ErrInvalidValue", err)
	}
	if err := client.ControlByValue(context.Background(), -1, -5); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ControlByValue(-1, -5) error = %v, want ErrInvalidValue", err)
	}
}

func TestClient_TypedCommands(t *testing.T) {
	client, f := newTestClient(t)
	ctx := context.Background()

	if err := client.TurnOn(ctx, 170); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}
	if got := f.lastRequest().Get("value"); got != "255" {
		t.Errorf("TurnOn sent value %q, want 255", got)
	}

	if err := client.TurnOff(ctx, 170); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}
	if got := f.lastRequest().Get("value"); got != "0" {
		t.Errorf("TurnOff sent value %q, want 0", got)
	}

	if err := client.Dim(ctx, 170, 50); err != nil {
		t.Fatalf("Dim() error = %v", err)
	}
	if got := f.lastRequest().Get("value"); got != "50" {
		t.Errorf("Dim sent value %q, want 50", got)
	}

	// Sensor has no controls
	if err := client.TurnOn(ctx, 31); !errors.Is(err, ErrUnsupportedAction) {
		t.Errorf("TurnOn(sensor) error = %v, want ErrUnsupportedAction", err)
	}
	if err := client.Dim(ctx, 31, 50); !errors.Is(err, ErrUnsupportedAction) {
		t.Errorf("Dim(sensor) error = %v, want ErrUnsupportedAction", err)
	}

	// Out of range dim
	if err := client.Dim(ctx, 170, 150); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Dim(170, 150) error = %v, want ErrInvalidValue", err)
	}

	// Unknown device
	if err := client.TurnOn(ctx, 999); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("TurnOn(999) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestClient_RunEvent(t *testing.T) {
	client, f := newTestClient(t)

	if err := client.RunEvent(context.Background(), "Lighting", "Evening Lights"); err != nil {
		t.Fatalf("RunEvent() error = %v", err)
	}

	q := f.lastRequest()
	if q.Get("request") != "runevent" {
		t.Errorf("request = %q, want runevent", q.Get("request"))
	}
	if q.Get("group") != "Lighting" || q.Get("name") != "Evening Lights" {
		t.Errorf("group/name = %q/%q", q.Get("group"), q.Get("name"))
	}

	if err := client.RunEvent(context.Background(), "Nope", "Missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("RunEvent(unknown) error = %v, want ErrEventNotFound", err)
	}
}

func TestClient_ApplyStatusLine(t *testing.T) {
	client, _ := newTestClient(t)

	var updates []Update
	light, _ := client.Device(170)
	light.OnUpdate(func(u Update) { updates = append(updates, u) }, false)

	client.ApplyStatusLine(170, 255)

	if len(updates) != 1 {
		t.Fatalf("callback fired %d times, want 1", len(updates))
	}
	if updates[0].Value != 255 || updates[0].ConnectionRefresh {
		t.Errorf("update = %+v, want value 255 and not a connection refresh", updates[0])
	}
	if light.Value() != 255 {
		t.Errorf("Value() = %v, want 255", light.Value())
	}

	// Unknown ref is ignored, not an error
	client.ApplyStatusLine(9999, 1)
}

func TestClient_RefreshAll(t *testing.T) {
	client, f := newTestClient(t)

	var refreshes []Update
	light, _ := client.Device(170)
	light.OnUpdate(func(u Update) { refreshes = append(refreshes, u) }, false)

	// Change the hub-side value, then refresh
	f.statusBody = strings.Replace(testStatusBody, `"value": 0,
			"status": "Off"`, `"value": 255,
			"status": "On"`, 1)

	if err := client.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	if len(refreshes) == 0 {
		t.Fatal("no refresh updates delivered")
	}
	for _, u := range refreshes {
		if !u.ConnectionRefresh {
			t.Errorf("refresh update not marked as connection refresh: %+v", u)
		}
	}
	if light.Value() != 255 {
		t.Errorf("Value() = %v after refresh, want 255", light.Value())
	}
}

func TestClient_Initialize_ConnectionError(t *testing.T) {
	client := NewClient(ClientConfig{Host: "127.0.0.1", Port: 59999})

	err := client.Initialize(context.Background())
	if err == nil {
		t.Fatal("Initialize() expected error for unreachable hub")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Initialize() error = %v, want ErrConnectionFailed", err)
	}
}
