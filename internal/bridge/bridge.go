package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"text/template"
	"time"

	"github.com/seerlink/seerlink-core/internal/hub"
)

// State tracks the bridge lifecycle.
//
// Transitions: StateUninitialized → StateInventoryLoaded (Setup) →
// StateListening (Start) → StateStopped (Stop). Setup failures, including
// an empty inventory, leave the bridge unusable.
type State int

const (
	StateUninitialized State = iota
	StateInventoryLoaded
	StateListening
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInventoryLoaded:
		return "inventory-loaded"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// HubClient is the hub API surface the bridge consumes.
// This allows mocking the hub in tests.
type HubClient interface {
	Initialize(ctx context.Context) error
	Devices() map[int]*hub.Device
	Device(ref int) (*hub.Device, bool)
	Events() []hub.Event
	ApplyStatusLine(ref int, value float64)
	RefreshAll(ctx context.Context) error
	ControlByValue(ctx context.Context, ref int, value int) error
	TurnOn(ctx context.Context, ref int) error
	TurnOff(ctx context.Context, ref int) error
	Dim(ctx context.Context, ref int, percent int) error
	Lock(ctx context.Context, ref int) error
	Unlock(ctx context.Context, ref int) error
	RunEvent(ctx context.Context, group, name string) error
}

// HubListener is the push socket surface the bridge consumes.
type HubListener interface {
	Start(ctx context.Context) error
	Close() error
	IsConnected() bool
	SetOnUpdate(fn func(ref int, value, prev float64))
	SetOnConnect(fn func())
	Stats() hub.ListenerStats
}

// Ensure the real hub types satisfy the consumed interfaces.
var (
	_ HubClient   = (*hub.Client)(nil)
	_ HubListener = (*hub.Listener)(nil)
)

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// Client is the hub API client. Required.
	Client HubClient

	// Listener is the hub push socket listener. Required.
	Listener HubListener

	// Rules are the classification inputs from configuration.
	Rules Rules

	// Namespace scopes entity unique ids. Required.
	Namespace string

	// NameTemplate renders entity display names. Required; must parse and
	// render (validated again here, though config.Load already did).
	NameTemplate string

	// Logger is optional.
	Logger Logger
}

// Stats summarizes the bridge for health reporting.
type Stats struct {
	State    string            `json:"state"`
	Devices  int               `json:"devices"`
	Remotes  int               `json:"remotes"`
	Scenes   int               `json:"scenes"`
	Listener hub.ListenerStats `json:"listener"`
}

// Bridge owns the hub session and the per-category entity registry.
//
// Thread Safety:
//   - Setup, Start, and Stop are intended for a single caller.
//   - Registry reads and Available() are safe from any goroutine once
//     Setup has returned.
type Bridge struct {
	client       HubClient
	listener     HubListener
	rules        Rules
	namespace    string
	nameTemplate *template.Template
	logger       Logger

	stateMu sync.RWMutex
	state   State

	// Registry: written once in Setup, read-only thereafter.
	entities    map[Category][]*Entity
	entityByRef map[int]*Entity
	remotes     []*RemoteDispatcher
	scenes      []*SceneEntity

	notifier   Notifier
	notifierMu sync.RWMutex

	stopOnce sync.Once
	stopErr  error
}

// New creates a Bridge. No hub traffic happens until Setup.
func New(opts BridgeOptions) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("bridge: client is required")
	}
	if opts.Listener == nil {
		return nil, fmt.Errorf("bridge: listener is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("bridge: namespace is required")
	}

	tmpl, err := template.New("name").Option("missingkey=error").Parse(opts.NameTemplate)
	if err != nil {
		return nil, fmt.Errorf("bridge: parsing name template: %w", err)
	}

	return &Bridge{
		client:       opts.Client,
		listener:     opts.Listener,
		rules:        opts.Rules,
		namespace:    opts.Namespace,
		nameTemplate: tmpl,
		logger:       opts.Logger,
		state:        StateUninitialized,
		entities:     make(map[Category][]*Entity),
		entityByRef:  make(map[int]*Entity),
	}, nil
}

// Setup fetches the hub inventory and builds the registry.
//
// The caller bounds the fetch with the context. An inventory with zero
// devices and zero events returns ErrEmptyInventory: the hub answered,
// but there is nothing to bridge. Remote dispatchers are created here,
// before the listener starts, so no keypress can be missed.
func (b *Bridge) Setup(ctx context.Context) error {
	if s := b.State(); s != StateUninitialized {
		return fmt.Errorf("bridge: setup in state %s", s)
	}

	if err := b.client.Initialize(ctx); err != nil {
		return fmt.Errorf("bridge: inventory fetch: %w", err)
	}

	devices := b.client.Devices()
	events := b.client.Events()

	if len(devices) == 0 && len(events) == 0 {
		return ErrEmptyInventory
	}

	// Sorted refs keep registry order deterministic.
	refs := make([]int, 0, len(devices))
	for ref := range devices {
		refs = append(refs, ref)
	}
	sort.Ints(refs)

	excluded := 0
	for _, ref := range refs {
		device := devices[ref]

		category, ok := ClassifyDevice(device, b.rules)
		if !ok {
			excluded++
			b.logDebug("device excluded",
				"ref", device.Ref,
				"name", device.Name,
				"interface", device.InterfaceName,
				"device_type", device.DeviceTypeString,
			)
			continue
		}

		if category == CategoryRemote {
			b.remotes = append(b.remotes, newRemoteDispatcher(device, b))
			continue
		}

		entity := newEntity(device, b, category)
		b.entities[category] = append(b.entities[category], entity)
		b.entityByRef[device.Ref] = entity
	}

	for _, event := range events {
		if !ClassifyEvent(event, b.rules) {
			continue
		}
		b.scenes = append(b.scenes, &SceneEntity{event: event, client: b.client})
	}

	b.setState(StateInventoryLoaded)

	b.logInfo("registry built",
		"devices", len(b.entityByRef),
		"remotes", len(b.remotes),
		"scenes", len(b.scenes),
		"excluded", excluded,
	)

	return nil
}

// Start wires and starts the push listener.
//
// Each push line mutates its device in place and fires callbacks on the
// listener goroutine, preserving hub delivery order. Every (re)connection
// triggers a full re-sync whose updates are marked as connection
// refreshes.
func (b *Bridge) Start(ctx context.Context) error {
	switch s := b.State(); s {
	case StateInventoryLoaded:
		// Proceed
	case StateListening:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	default:
		return fmt.Errorf("%w: state %s", ErrNotInitialized, s)
	}

	b.listener.SetOnUpdate(func(ref int, value, _ float64) {
		b.client.ApplyStatusLine(ref, value)
	})
	b.listener.SetOnConnect(func() {
		go b.refreshAfterConnect()
	})

	if err := b.listener.Start(ctx); err != nil {
		return fmt.Errorf("bridge: starting listener: %w", err)
	}

	b.setState(StateListening)
	return nil
}

// refreshAfterConnect re-syncs device values after a (re)connection.
// Push lines received while disconnected are gone; the re-sync closes
// the gap. Failures are logged; the next reconnect retries.
func (b *Bridge) refreshAfterConnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.client.RefreshAll(ctx); err != nil {
		b.logError("post-connect refresh failed", err)
	}
}

// Available reports whether the push listener is connected.
// Non-blocking; delegates to the listener's connection state.
func (b *Bridge) Available() bool {
	return b.listener.IsConnected()
}

// WaitAvailable polls Available up to attempts times, interval apart.
//
// Returns nil as soon as the listener reports connected. Exhausting the
// bound returns ErrNotAvailable; the caller is expected to Stop the
// bridge and abort startup.
func (b *Bridge) WaitAvailable(ctx context.Context, attempts int, interval time.Duration) error {
	for attempt := 1; attempt <= attempts; attempt++ {
		if b.Available() {
			return nil
		}

		b.logInfo("waiting for hub connection", "attempt", attempt, "max_attempts", attempts)

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("bridge: waiting for availability: %w", ctx.Err())
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("%w: no connection after %d attempts", ErrNotAvailable, attempts)
}

// Stop tears the bridge down. Idempotent; later calls return the first
// result.
func (b *Bridge) Stop() error {
	b.stopOnce.Do(func() {
		b.stopErr = b.listener.Close()
		b.setState(StateStopped)
		b.logInfo("bridge stopped")
	})
	return b.stopErr
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

func (b *Bridge) setState(s State) {
	b.stateMu.Lock()
	b.state = s
	b.stateMu.Unlock()
}

// EntitiesByCategory returns the entities in one category, in ref order.
// The returned slice is the registry's own; callers must not mutate it.
func (b *Bridge) EntitiesByCategory(category Category) []*Entity {
	return b.entities[category]
}

// Entities returns all entities across categories, in ref order.
func (b *Bridge) Entities() []*Entity {
	all := make([]*Entity, 0, len(b.entityByRef))
	for _, entity := range b.entityByRef {
		all = append(all, entity)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Ref() < all[j].Ref() })
	return all
}

// Entity returns the entity with the given ref.
func (b *Bridge) Entity(ref int) (*Entity, bool) {
	entity, ok := b.entityByRef[ref]
	return entity, ok
}

// Remotes returns the remote dispatchers.
func (b *Bridge) Remotes() []*RemoteDispatcher {
	return b.remotes
}

// Scenes returns the scene entities.
func (b *Bridge) Scenes() []*SceneEntity {
	return b.scenes
}

// Scene returns the scene with the given group and name.
func (b *Bridge) Scene(group, name string) (*SceneEntity, bool) {
	for _, scene := range b.scenes {
		if scene.Group() == group && scene.Name() == name {
			return scene, true
		}
	}
	return nil, false
}

// SetNotifier sets the sink for remote keypress events.
// Call before Start; keypresses without a notifier are dropped with a
// warning.
func (b *Bridge) SetNotifier(n Notifier) {
	b.notifierMu.Lock()
	b.notifier = n
	b.notifierMu.Unlock()
}

func (b *Bridge) getNotifier() Notifier {
	b.notifierMu.RLock()
	defer b.notifierMu.RUnlock()
	return b.notifier
}

// SubscribeAll registers a callback on every entity in the registry.
//
// Used for host-side fan-out (MQTT state topics, WebSocket stream, state
// history). Remotes are excluded; their events flow through the Notifier.
func (b *Bridge) SubscribeAll(fn hub.UpdateCallback) {
	for _, entity := range b.entityByRef {
		entity.Subscribe(fn)
	}
}

// Stats returns a bridge summary for health reporting.
func (b *Bridge) Stats() Stats {
	return Stats{
		State:    b.State().String(),
		Devices:  len(b.entityByRef),
		Remotes:  len(b.remotes),
		Scenes:   len(b.scenes),
		Listener: b.listener.Stats(),
	}
}

// entityUniqueID builds the namespace-scoped identifier for a ref.
func (b *Bridge) entityUniqueID(ref int) string {
	return fmt.Sprintf("%s-%d", b.namespace, ref)
}

// logDebug logs a debug message if a logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if a logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error if a logger is set.
func (b *Bridge) logError(msg string, err error) {
	if b.logger != nil {
		b.logger.Error(msg, "error", err)
	}
}
