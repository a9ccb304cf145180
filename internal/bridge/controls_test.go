package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/seerlink/seerlink-core/internal/hub"
)

func setupControlBridge(t *testing.T) (*Bridge, *mockHubClient) {
	t.Helper()

	cover := testDevice(60, "Garage Door", hub.CapabilitySwitchable)
	cover.DeviceTypeString = "Z-Wave Barrier Operator"

	devices := map[int]*hub.Device{
		10: testDevice(10, "Socket", hub.CapabilitySwitchable),
		20: testDevice(20, "Light", hub.CapabilityDimmable),
		30: testDevice(30, "Door", hub.CapabilityLockable),
		40: testDevice(40, "Sensor", hub.CapabilityStatus),
		60: cover,
	}
	return setupTestBridge(t, devices, "{{.Name}}")
}

func TestControl(t *testing.T) {
	tests := []struct {
		name     string
		ref      int
		action   string
		value    int
		wantCall string
		wantErr  error
	}{
		{name: "switch on", ref: 10, action: ActionOn, wantCall: "on 10"},
		{name: "switch off", ref: 10, action: ActionOff, wantCall: "off 10"},
		{name: "light on", ref: 20, action: ActionOn, wantCall: "on 20"},
		{name: "light dim", ref: 20, action: ActionDim, value: 40, wantCall: "dim 20 40"},
		{name: "lock", ref: 30, action: ActionLock, wantCall: "lock 30"},
		{name: "unlock", ref: 30, action: ActionUnlock, wantCall: "unlock 30"},
		{name: "cover open", ref: 60, action: ActionOpen, wantCall: "on 60"},
		{name: "cover close", ref: 60, action: ActionClose, wantCall: "off 60"},
		{name: "cover set position", ref: 60, action: ActionSetPosition, value: 50, wantCall: "dim 60 50"},
		{name: "dim on plain switch", ref: 10, action: ActionDim, value: 40, wantErr: ErrUnsupportedAction},
		{name: "lock on light", ref: 20, action: ActionLock, wantErr: ErrUnsupportedAction},
		{name: "open on switch", ref: 10, action: ActionOpen, wantErr: ErrUnsupportedAction},
		{name: "on for sensor", ref: 40, action: ActionOn, wantErr: ErrUnsupportedAction},
		{name: "unknown action", ref: 10, action: "explode", wantErr: ErrUnsupportedAction},
		{name: "unknown device", ref: 999, action: ActionOn, wantErr: ErrUnknownDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client := setupControlBridge(t)

			err := b.Control(context.Background(), tt.ref, tt.action, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Control() error = %v, want %v", err, tt.wantErr)
				}
				// Rejections must not reach the hub.
				for _, call := range client.callLog() {
					if call != "initialize" {
						t.Errorf("unexpected hub call %q", call)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("Control() error = %v", err)
			}
			calls := client.callLog()
			if got := calls[len(calls)-1]; got != tt.wantCall {
				t.Errorf("last hub call = %q, want %q", got, tt.wantCall)
			}
		})
	}
}

func TestControlByValue(t *testing.T) {
	b, client := setupControlBridge(t)
	ctx := context.Background()

	if err := b.ControlByValue(ctx, 10, 255); err != nil {
		t.Fatalf("ControlByValue() error = %v", err)
	}
	calls := client.callLog()
	if got := calls[len(calls)-1]; got != "control 10 255" {
		t.Errorf("last hub call = %q, want %q", got, "control 10 255")
	}

	if err := b.ControlByValue(ctx, 999, 255); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("ControlByValue() error = %v, want ErrUnknownDevice", err)
	}
}

func TestRunScene(t *testing.T) {
	events := []hub.Event{{Group: "Lighting", Name: "Evening"}}
	client := &mockHubClient{devices: map[int]*hub.Device{}, events: events}
	b, err := New(BridgeOptions{
		Client:       client,
		Listener:     &mockHubListener{},
		Rules:        Rules{AllowedInterfaces: []string{"Z-Wave"}, AllowEvents: true},
		Namespace:    "seerlink",
		NameTemplate: "{{.Name}}",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if err := b.RunScene(context.Background(), "Lighting", "Evening"); err != nil {
		t.Fatalf("RunScene() error = %v", err)
	}
	calls := client.callLog()
	if got := calls[len(calls)-1]; got != "run Lighting/Evening" {
		t.Errorf("last hub call = %q, want %q", got, "run Lighting/Evening")
	}

	if err := b.RunScene(context.Background(), "Lighting", "Missing"); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("RunScene() error = %v, want ErrUnknownScene", err)
	}
}

func TestRunScene_NotifiesActivation(t *testing.T) {
	events := []hub.Event{{Group: "Lighting", Name: "Evening"}}
	client := &mockHubClient{devices: map[int]*hub.Device{}, events: events}
	b, err := New(BridgeOptions{
		Client:       client,
		Listener:     &mockHubListener{},
		Rules:        Rules{AllowedInterfaces: []string{"Z-Wave"}, AllowEvents: true},
		Namespace:    "seerlink",
		NameTemplate: "{{.Name}}",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	notifier := &recordingNotifier{}
	b.SetNotifier(notifier)

	if err := b.RunScene(context.Background(), "Lighting", "Evening"); err != nil {
		t.Fatalf("RunScene() error = %v", err)
	}
	if got := notifier.capturedScenes(); len(got) != 1 || got[0] != "Lighting/Evening" {
		t.Errorf("notified scenes = %v, want [Lighting/Evening]", got)
	}

	// A failed run must not notify.
	if err := b.RunScene(context.Background(), "Lighting", "Missing"); !errors.Is(err, ErrUnknownScene) {
		t.Fatalf("RunScene() error = %v, want ErrUnknownScene", err)
	}
	if got := notifier.capturedScenes(); len(got) != 1 {
		t.Errorf("notified scenes after failure = %v, want 1 entry", got)
	}
}
