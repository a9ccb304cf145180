package bridge

import (
	"github.com/seerlink/seerlink-core/internal/hub"
)

// Notifier receives remote keypress and scene activation events for
// delivery to the host platform. Implementations must be safe for
// concurrent use; keypresses arrive on the hub's receive goroutine and
// must not block.
type Notifier interface {
	NotifyRemoteEvent(ref int, event float64)
	NotifySceneActivated(group, name string)
}

// RemoteDispatcher forwards keypresses from one remote-classified device.
//
// Remotes are stateless button emitters: the dispatcher holds no state
// between events and emits exactly one notification per genuine update.
// Its subscription suppresses connection re-sync updates, so the value the
// hub replays after a (re)connection is never mistaken for a keypress.
type RemoteDispatcher struct {
	device *hub.Device
	bridge *Bridge
}

// newRemoteDispatcher subscribes to the device before the listener starts,
// so no keypress can slip through unobserved.
func newRemoteDispatcher(device *hub.Device, b *Bridge) *RemoteDispatcher {
	d := &RemoteDispatcher{
		device: device,
		bridge: b,
	}
	device.OnUpdate(d.handleUpdate, true)
	return d
}

// Ref returns the remote's hub device reference.
func (d *RemoteDispatcher) Ref() int {
	return d.device.Ref
}

// Name returns the remote's hub device name.
func (d *RemoteDispatcher) Name() string {
	return d.device.Name
}

// UniqueID returns the remote's namespace-scoped identifier.
func (d *RemoteDispatcher) UniqueID() string {
	return d.bridge.entityUniqueID(d.device.Ref)
}

// handleUpdate emits one notification for a genuine keypress.
// Connection re-sync updates never reach here (subscription suppresses them).
func (d *RemoteDispatcher) handleUpdate(u hub.Update) {
	notifier := d.bridge.getNotifier()
	if notifier == nil {
		d.bridge.logWarn("remote event dropped, no notifier configured", "ref", u.Ref, "event", u.Value)
		return
	}

	notifier.NotifyRemoteEvent(u.Ref, u.Value)
}
