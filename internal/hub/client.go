package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Default timeouts for hub HTTP operations.
const (
	defaultHTTPTimeout = 30 * time.Second

	// maxResponseSize bounds inventory responses (16MB covers large installs).
	maxResponseSize = 16 << 20
)

// ClientConfig holds hub HTTP API connection configuration.
type ClientConfig struct {
	// Host is the hub's hostname or IP address.
	Host string

	// Port is the hub's HTTP JSON API port. Default: 80.
	Port int

	// Username and Password authenticate JSON API requests.
	// Empty values are valid for hubs with authentication disabled.
	Username string
	Password string

	// Timeout bounds individual HTTP requests. Default: 30 seconds.
	Timeout time.Duration
}

// Client wraps the hub's HTTP JSON API and owns the device/event inventory.
//
// Thread Safety:
//   - Inventory reads are safe after Initialize returns.
//   - Device values are mutated only via ApplyStatusLine / RefreshAll,
//     which the Listener serializes on its receive goroutine.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	baseURL    string

	mu      sync.RWMutex
	devices map[int]*Device
	events  []Event

	logger   Logger
	loggerMu sync.RWMutex
}

// NewClient creates a hub API client. No network traffic happens until
// Initialize is called.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Port == 0 {
		cfg.Port = 80
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	return &Client{
		cfg:     cfg,
		baseURL: fmt.Sprintf("http://%s:%d/JSON", cfg.Host, cfg.Port),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		devices: make(map[int]*Device),
	}
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// Initialize fetches the hub's full inventory: device statuses, control
// metadata, and runnable events.
//
// The caller bounds the fetch with the context. An inventory with zero
// devices and zero events is returned as-is; deciding whether that is
// fatal belongs to the caller.
func (c *Client) Initialize(ctx context.Context) error {
	statuses, err := c.fetchStatuses(ctx)
	if err != nil {
		return fmt.Errorf("fetching device statuses: %w", err)
	}

	controls, err := c.fetchControls(ctx)
	if err != nil {
		return fmt.Errorf("fetching control metadata: %w", err)
	}

	events, err := c.fetchEvents(ctx)
	if err != nil {
		return fmt.Errorf("fetching events: %w", err)
	}

	pairsByRef := make(map[int][]controlPair, len(controls.Devices))
	for _, cd := range controls.Devices {
		pairsByRef[cd.Ref] = cd.ControlPairs
	}

	devices := make(map[int]*Device, len(statuses.Devices))
	for _, sd := range statuses.Devices {
		devices[sd.Ref] = buildDevice(sd, pairsByRef[sd.Ref], c.getLogger())
	}

	c.mu.Lock()
	c.devices = devices
	c.events = events
	c.mu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Info("hub inventory loaded", "devices", len(devices), "events", len(events))
	}

	return nil
}

// Devices returns the device inventory keyed by ref.
//
// The map is rebuilt only by Initialize; callers must not mutate it.
func (c *Client) Devices() map[int]*Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devices
}

// Device returns the device with the given ref.
func (c *Client) Device(ref int) (*Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[ref]
	return d, ok
}

// Events returns the runnable event inventory.
func (c *Client) Events() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.events
}

// ControlByValue sends a raw value to a device.
//
// Both ref and value must be positive integers; the hub's control-by-value
// endpoint accepts nothing else.
func (c *Client) ControlByValue(ctx context.Context, ref int, value int) error {
	if ref < 1 {
		return fmt.Errorf("%w: ref %d is not a positive integer", ErrInvalidValue, ref)
	}
	if value < 1 {
		return fmt.Errorf("%w: value %d is not a positive integer", ErrInvalidValue, value)
	}

	params := url.Values{}
	params.Set("request", "controldevicebyvalue")
	params.Set("ref", strconv.Itoa(ref))
	params.Set("value", strconv.Itoa(value))

	_, err := c.get(ctx, params)
	if err != nil {
		return fmt.Errorf("control device %d: %w", ref, err)
	}
	return nil
}

// controlByUse sends a device's control value for the given use.
func (c *Client) controlByUse(ctx context.Context, ref int, use int) error {
	device, ok := c.Device(ref)
	if !ok {
		return fmt.Errorf("%w: ref %d", ErrDeviceNotFound, ref)
	}

	value, ok := device.ControlValue(use)
	if !ok {
		return fmt.Errorf("%w: ref %d, use %d", ErrUnsupportedAction, ref, use)
	}

	params := url.Values{}
	params.Set("request", "controldevicebyvalue")
	params.Set("ref", strconv.Itoa(ref))
	params.Set("value", strconv.FormatFloat(value, 'f', -1, 64))

	_, err := c.get(ctx, params)
	if err != nil {
		return fmt.Errorf("control device %d: %w", ref, err)
	}
	return nil
}

// TurnOn switches a switchable or dimmable device on.
func (c *Client) TurnOn(ctx context.Context, ref int) error {
	return c.controlByUse(ctx, ref, ControlUseOn)
}

// TurnOff switches a switchable or dimmable device off.
func (c *Client) TurnOff(ctx context.Context, ref int) error {
	return c.controlByUse(ctx, ref, ControlUseOff)
}

// Dim sets a dimmable device to a percentage between 0 and 100.
func (c *Client) Dim(ctx context.Context, ref int, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: dim percent %d out of range 0-100", ErrInvalidValue, percent)
	}

	device, ok := c.Device(ref)
	if !ok {
		return fmt.Errorf("%w: ref %d", ErrDeviceNotFound, ref)
	}
	if _, hasDim := device.ControlValue(ControlUseDim); !hasDim {
		return fmt.Errorf("%w: ref %d, use %d", ErrUnsupportedAction, ref, ControlUseDim)
	}

	params := url.Values{}
	params.Set("request", "controldevicebyvalue")
	params.Set("ref", strconv.Itoa(ref))
	params.Set("value", strconv.Itoa(percent))

	_, err := c.get(ctx, params)
	if err != nil {
		return fmt.Errorf("dim device %d: %w", ref, err)
	}
	return nil
}

// Lock engages a lockable device.
func (c *Client) Lock(ctx context.Context, ref int) error {
	return c.controlByUse(ctx, ref, ControlUseLock)
}

// Unlock disengages a lockable device.
func (c *Client) Unlock(ctx context.Context, ref int) error {
	return c.controlByUse(ctx, ref, ControlUseUnlock)
}

// RunEvent triggers a hub event by group and name.
func (c *Client) RunEvent(ctx context.Context, group, name string) error {
	found := false
	for _, ev := range c.Events() {
		if ev.Group == group && ev.Name == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: group %q, name %q", ErrEventNotFound, group, name)
	}

	params := url.Values{}
	params.Set("request", "runevent")
	params.Set("group", group)
	params.Set("name", name)

	_, err := c.get(ctx, params)
	if err != nil {
		return fmt.Errorf("run event %q/%q: %w", group, name, err)
	}
	return nil
}

// ApplyStatusLine applies one parsed ASCII push line to the inventory.
//
// Unknown refs are logged at debug level and ignored: the hub pushes
// changes for every device, including ones excluded from the bridge.
func (c *Client) ApplyStatusLine(ref int, value float64) {
	device, ok := c.Device(ref)
	if !ok {
		if logger := c.getLogger(); logger != nil {
			logger.Debug("update for unknown device", "ref", ref, "value", value)
		}
		return
	}

	device.ApplyUpdate(value, "", time.Now().UTC(), false)
}

// RefreshAll re-fetches device statuses and applies changed values as
// connection-refresh updates.
//
// Called after the push listener (re)connects to close the gap between
// the last received line and the current hub state. Callbacks registered
// with suppress-on-connect never see these updates.
func (c *Client) RefreshAll(ctx context.Context) error {
	statuses, err := c.fetchStatuses(ctx)
	if err != nil {
		return fmt.Errorf("refreshing device statuses: %w", err)
	}

	for _, sd := range statuses.Devices {
		device, ok := c.Device(sd.Ref)
		if !ok {
			continue
		}

		lastChange := time.Time{}
		if sd.LastChange != "" {
			if parsed, perr := parseLastChange(sd.LastChange); perr == nil {
				lastChange = parsed
			}
		}

		device.ApplyUpdate(sd.Value, sd.Status, lastChange, true)
	}

	return nil
}

// fetchStatuses requests the full device status listing.
func (c *Client) fetchStatuses(ctx context.Context) (*statusResponse, error) {
	params := url.Values{}
	params.Set("request", "getstatus")
	params.Set("everything", "true")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding status response: %w", ErrRequestFailed, err)
	}
	return &resp, nil
}

// fetchControls requests control pair metadata for all devices.
func (c *Client) fetchControls(ctx context.Context) (*controlResponse, error) {
	params := url.Values{}
	params.Set("request", "getcontrol")
	params.Set("ref", "all")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp controlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding control response: %w", ErrRequestFailed, err)
	}
	return &resp, nil
}

// fetchEvents requests the runnable event listing.
func (c *Client) fetchEvents(ctx context.Context) ([]Event, error) {
	params := url.Values{}
	params.Set("request", "getevents")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp eventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding events response: %w", ErrRequestFailed, err)
	}

	events := make([]Event, 0, len(resp))
	for _, entry := range resp {
		events = append(events, Event{Group: entry.Group, Name: entry.Name})
	}
	return events, nil
}

// get performs one JSON API request and returns the response body.
func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	if c.cfg.Username != "" {
		params.Set("user", c.cfg.Username)
		params.Set("pass", c.cfg.Password)
	}

	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrRequestFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrRequestFailed, err)
	}

	return body, nil
}
