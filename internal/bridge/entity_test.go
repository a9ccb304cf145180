package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/seerlink/seerlink-core/internal/hub"
)

func setupTestBridge(t *testing.T, devices map[int]*hub.Device, nameTemplate string) (*Bridge, *mockHubClient) {
	t.Helper()

	client := &mockHubClient{devices: devices}
	b, err := New(BridgeOptions{
		Client:       client,
		Listener:     &mockHubListener{},
		Rules:        Rules{AllowedInterfaces: []string{"Z-Wave"}},
		Namespace:    "seerlink",
		NameTemplate: nameTemplate,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return b, client
}

func TestEntity_UniqueID(t *testing.T) {
	devices := map[int]*hub.Device{170: testDevice(170, "Lamp", hub.CapabilitySwitchable)}
	b, _ := setupTestBridge(t, devices, "{{.Name}}")

	entity, ok := b.Entity(170)
	if !ok {
		t.Fatal("Entity(170) not found")
	}
	if got := entity.UniqueID(); got != "seerlink-170" {
		t.Errorf("UniqueID() = %q, want %q", got, "seerlink-170")
	}
}

func TestEntity_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		template string
		device   *hub.Device
		want     string
	}{
		{
			name:     "full template",
			template: "{{.Location2}} {{.Location}} {{.Name}}",
			device:   testDevice(1, "Lamp", hub.CapabilitySwitchable),
			want:     "Ground Kitchen Lamp",
		},
		{
			name:     "whitespace collapsed on empty fields",
			template: "{{.Location2}} {{.Location}} {{.Name}}",
			device:   &hub.Device{Ref: 2, Name: "Lamp", InterfaceName: "Z-Wave", Capability: hub.CapabilitySwitchable},
			want:     "Lamp",
		},
		{
			name:     "render failure falls back to device name",
			template: "{{.Bogus}}",
			device:   testDevice(3, "Lamp", hub.CapabilitySwitchable),
			want:     "Lamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices := map[int]*hub.Device{tt.device.Ref: tt.device}
			b, _ := setupTestBridge(t, devices, tt.template)

			entity, ok := b.Entity(tt.device.Ref)
			if !ok {
				t.Fatalf("Entity(%d) not found", tt.device.Ref)
			}
			if got := entity.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntity_Attributes(t *testing.T) {
	device := testDevice(7, "Thermostat", hub.CapabilityStatus)
	devices := map[int]*hub.Device{7: device}
	b, _ := setupTestBridge(t, devices, "{{.Name}}")

	entity, _ := b.Entity(7)

	attrs := entity.Attributes()
	if _, ok := attrs["last_change"]; ok {
		t.Error("Attributes() includes last_change before the hub reported one")
	}
	if attrs["ref"] != 7 || attrs["location"] != "Kitchen" {
		t.Errorf("Attributes() = %v", attrs)
	}

	changed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	device.ApplyUpdate(21.5, "21.5 C", changed, false)

	attrs = entity.Attributes()
	if got := attrs["last_change"]; got != "2026-08-30T12:00:00Z" {
		t.Errorf("Attributes()[last_change] = %v, want 2026-08-30T12:00:00Z", got)
	}
	if attrs["value"] != 21.5 || attrs["status"] != "21.5 C" {
		t.Errorf("Attributes() value/status = %v/%v", attrs["value"], attrs["status"])
	}
}

func TestEntity_ParentInfo(t *testing.T) {
	root := testDevice(169, "Dimmer Module", hub.CapabilityStatus)
	root.Relationship = hub.RelationshipRoot

	child := testDevice(170, "Dimmer", hub.CapabilityDimmable)
	child.Relationship = hub.RelationshipChild
	child.AssociatedDevices = []int{169}

	orphan := testDevice(171, "Orphan", hub.CapabilitySwitchable)
	orphan.Relationship = hub.RelationshipChild
	orphan.AssociatedDevices = []int{999}

	devices := map[int]*hub.Device{169: root, 170: child, 171: orphan}
	b, _ := setupTestBridge(t, devices, "{{.Name}}")

	entity, _ := b.Entity(170)
	parent := entity.ParentInfo()
	if parent == nil || parent.Ref != 169 || parent.Name != "Dimmer Module" {
		t.Errorf("ParentInfo() = %+v, want ref 169 named Dimmer Module", parent)
	}

	rootEntity, _ := b.Entity(169)
	if got := rootEntity.ParentInfo(); got != nil {
		t.Errorf("ParentInfo() for root = %+v, want nil", got)
	}

	orphanEntity, _ := b.Entity(171)
	if got := orphanEntity.ParentInfo(); got != nil {
		t.Errorf("ParentInfo() with dangling ref = %+v, want nil", got)
	}
}

func TestEntity_Commands(t *testing.T) {
	devices := map[int]*hub.Device{
		10: testDevice(10, "Socket", hub.CapabilitySwitchable),
		20: testDevice(20, "Light", hub.CapabilityDimmable),
		30: testDevice(30, "Door", hub.CapabilityLockable),
		40: testDevice(40, "Sensor", hub.CapabilityStatus),
	}
	b, client := setupTestBridge(t, devices, "{{.Name}}")
	ctx := context.Background()

	switchEntity, _ := b.Entity(10)
	sw, ok := switchEntity.Commands().(SwitchCommands)
	if !ok {
		t.Fatalf("Commands() for switch = %T", switchEntity.Commands())
	}
	if err := sw.TurnOn(ctx); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}

	lightEntity, _ := b.Entity(20)
	light, ok := lightEntity.Commands().(LightCommands)
	if !ok {
		t.Fatalf("Commands() for light = %T", lightEntity.Commands())
	}
	if err := light.SetBrightness(ctx, 40); err != nil {
		t.Fatalf("SetBrightness() error = %v", err)
	}

	lockEntity, _ := b.Entity(30)
	lock, ok := lockEntity.Commands().(LockCommands)
	if !ok {
		t.Fatalf("Commands() for lock = %T", lockEntity.Commands())
	}
	if err := lock.Lock(ctx); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	sensorEntity, _ := b.Entity(40)
	if sensorEntity.Commands() != nil {
		t.Errorf("Commands() for sensor = %T, want nil", sensorEntity.Commands())
	}

	want := []string{"initialize", "on 10", "dim 20 40", "lock 30"}
	got := client.callLog()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSwitchCommands_IsOn(t *testing.T) {
	device := testDevice(10, "Socket", hub.CapabilitySwitchable)
	devices := map[int]*hub.Device{10: device}
	b, _ := setupTestBridge(t, devices, "{{.Name}}")

	entity, _ := b.Entity(10)
	sw := entity.Commands().(SwitchCommands)

	if sw.IsOn(device) {
		t.Error("IsOn() = true for value 0")
	}
	device.ApplyUpdate(255, "On", time.Now(), false)
	if !sw.IsOn(device) {
		t.Error("IsOn() = false for value 255")
	}
}

func TestSceneEntity_Activate(t *testing.T) {
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

	scene, ok := b.Scene("Lighting", "Evening")
	if !ok {
		t.Fatal("Scene(Lighting, Evening) not found")
	}
	if err := scene.Activate(context.Background()); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	got := client.callLog()
	if got[len(got)-1] != "run Lighting/Evening" {
		t.Errorf("last call = %q, want %q", got[len(got)-1], "run Lighting/Evening")
	}
}
