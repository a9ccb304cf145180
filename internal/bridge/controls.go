package bridge

import (
	"context"
	"fmt"
)

// Action names accepted by Control. Each action is valid only for the
// categories whose command strategy implements it.
const (
	ActionOn          = "on"
	ActionOff         = "off"
	ActionDim         = "dim"
	ActionLock        = "lock"
	ActionUnlock      = "unlock"
	ActionOpen        = "open"
	ActionClose       = "close"
	ActionSetPosition = "set_position"
)

// Control dispatches a typed action to a registered entity.
//
// The entity's category decides which actions apply; a mismatched action
// returns ErrUnsupportedAction without touching the hub. Value carries
// the argument for dim and set_position and is ignored otherwise.
func (b *Bridge) Control(ctx context.Context, ref int, action string, value int) error {
	entity, ok := b.Entity(ref)
	if !ok {
		return fmt.Errorf("%w: ref %d", ErrUnknownDevice, ref)
	}

	switch commands := entity.Commands().(type) {
	case SwitchCommands:
		switch action {
		case ActionOn:
			return commands.TurnOn(ctx)
		case ActionOff:
			return commands.TurnOff(ctx)
		}
	case LightCommands:
		switch action {
		case ActionOn:
			return commands.TurnOn(ctx)
		case ActionOff:
			return commands.TurnOff(ctx)
		case ActionDim:
			return commands.SetBrightness(ctx, value)
		}
	case LockCommands:
		switch action {
		case ActionLock:
			return commands.Lock(ctx)
		case ActionUnlock:
			return commands.Unlock(ctx)
		}
	case CoverCommands:
		switch action {
		case ActionOpen:
			return commands.Open(ctx)
		case ActionClose:
			return commands.Close(ctx)
		case ActionSetPosition:
			return commands.SetPosition(ctx, value)
		}
	}

	return fmt.Errorf("%w: action %q on %s device %d", ErrUnsupportedAction, action, entity.Category(), ref)
}

// ControlByValue sends a raw positive value to a registered entity.
// Unlike Control, this bypasses the category strategies and talks to the
// hub's control-by-value endpoint directly.
func (b *Bridge) ControlByValue(ctx context.Context, ref int, value int) error {
	if _, ok := b.Entity(ref); !ok {
		return fmt.Errorf("%w: ref %d", ErrUnknownDevice, ref)
	}
	return b.client.ControlByValue(ctx, ref, value)
}

// RunScene activates a registered scene and notifies the host platform
// on success.
func (b *Bridge) RunScene(ctx context.Context, group, name string) error {
	scene, ok := b.Scene(group, name)
	if !ok {
		return fmt.Errorf("%w: group %q, name %q", ErrUnknownScene, group, name)
	}
	if err := scene.Activate(ctx); err != nil {
		return err
	}
	if n := b.getNotifier(); n != nil {
		n.NotifySceneActivated(group, name)
	}
	return nil
}
