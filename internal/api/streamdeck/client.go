package streamdeck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/VeeLume/streamdeck-counter/internal/logger"
	"github.com/VeeLume/streamdeck-counter/internal/metrics"
	"github.com/VeeLume/streamdeck-counter/internal/render"
)

const (
	// DefaultHost is where the Stream Deck application listens.
	DefaultHost = "127.0.0.1"
	// DefaultQueueSize bounds the outbound and inbound queues.
	DefaultQueueSize = 256
	// DefaultConnectTimeout bounds the dial retries.
	DefaultConnectTimeout = 10 * time.Second

	writeTimeout      = 5 * time.Second
	initialRetryDelay = 100 * time.Millisecond
)

var (
	// ErrInvalidPort is returned when the port is outside 1..65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrMissingUUID is returned when no plugin UUID was passed.
	ErrMissingUUID = errors.New("missing plugin UUID")
	// ErrMissingRegisterEvent is returned when no register event was passed.
	ErrMissingRegisterEvent = errors.New("missing register event")
	// ErrClosed is returned when sending on a client whose writer has stopped.
	ErrClosed = errors.New("connection closed")
)

// Options configures the host connection.
type Options struct {
	// Host is the address the host listens on; DefaultHost when empty.
	Host string
	// Port is the websocket port passed by the host.
	Port int
	// PluginUUID identifies this plugin instance.
	PluginUUID string
	// RegisterEvent is the event name to register with.
	RegisterEvent string
	// ConnectTimeout bounds the dial retries.
	ConnectTimeout time.Duration
	// QueueSize bounds the outbound and inbound queues.
	QueueSize int
	// Metrics counts dropped messages; nil disables it.
	Metrics *metrics.Recorder
}

// Validate checks required fields and fills in defaults.
func (o *Options) Validate() error {
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, o.Port)
	}

	if o.PluginUUID == "" {
		return ErrMissingUUID
	}

	if o.RegisterEvent == "" {
		return ErrMissingRegisterEvent
	}

	if o.Host == "" {
		o.Host = DefaultHost
	}

	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}

	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}

	return nil
}

// URL returns the websocket address of the host.
func (o *Options) URL() string {
	return "ws://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Client is a registered connection to the Stream Deck host.
type Client struct {
	// conn is written only by the writer goroutine after registration.
	conn *websocket.Conn
	// uuid is the plugin UUID used as context for plugin-wide messages.
	uuid string
	// out feeds the writer goroutine.
	out chan []byte
	// events receives decoded inbound messages; closed when reading stops.
	events chan Event
	// stopped is closed when the writer goroutine exits.
	stopped chan struct{}
	// mu orders queueing against closing out.
	mu sync.RWMutex
	// closed is set by CloseSend; guarded by mu.
	closed bool
	// closing is closed by CloseSend so the reader can tell a local shutdown from a drop.
	closing chan struct{}
	// metrics counts dropped messages.
	metrics *metrics.Recorder
}

// Dial connects to the host, retrying with exponential backoff until
// ConnectTimeout passes, then registers the plugin and asks for the global settings.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var (
		url     = opts.URL()
		conn    *websocket.Conn
		attempt int
	)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialRetryDelay
	policy.MaxElapsedTime = opts.ConnectTimeout

	operation := func() error {
		attempt++

		c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			logger.DebugKV(ctx, "Host dial failed", "url", url, "attempt", attempt, "error", err)
			return err
		}

		conn = c

		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}

	if err := conn.WriteJSON(registration{Event: opts.RegisterEvent, UUID: opts.PluginUUID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("register plugin: %w", err)
	}

	logger.InfoKV(ctx, "Registered with host", "url", url, "attempts", attempt)

	c := &Client{
		conn:    conn,
		uuid:    opts.PluginUUID,
		out:     make(chan []byte, opts.QueueSize),
		events:  make(chan Event, opts.QueueSize),
		stopped: make(chan struct{}),
		closing: make(chan struct{}),
		metrics: opts.Metrics,
	}

	c.GetGlobalSettings(ctx)

	return c, nil
}

// Events returns the inbound event stream. It is closed when the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run pumps messages until the connection ends. It returns nil after CloseSend
// and an error when the host drops the connection.
func (c *Client) Run(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error {
		return c.readLoop(ctx)
	})

	g.Go(func() error {
		return c.writeLoop(ctx)
	})

	return g.Wait()
}

// CloseSend stops accepting messages. The writer sends what is queued,
// says goodbye to the host and closes the connection.
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.closing)
	close(c.out)
}

// Render shows text on a button as a key image.
func (c *Client) Render(id, text string) {
	c.SetImage(context.Background(), id, render.Image(text))
}

// Alert flashes the warning indicator on a button.
func (c *Client) Alert(id string) {
	c.ShowAlert(context.Background(), id)
}

// SetImage sets the key image of a button.
func (c *Client) SetImage(ctx context.Context, id, image string) {
	c.send(ctx, message{Event: eventSetImage, Context: id, Payload: imagePayload{Image: image}})
}

// SetTitle sets the title of a button.
func (c *Client) SetTitle(ctx context.Context, id, title string) {
	c.send(ctx, message{Event: eventSetTitle, Context: id, Payload: titlePayload{Title: title}})
}

// ShowAlert flashes the warning indicator on a button.
func (c *Client) ShowAlert(ctx context.Context, id string) {
	c.send(ctx, message{Event: eventShowAlert, Context: id})
}

// GetSettings asks the host to send didReceiveSettings for a button.
func (c *Client) GetSettings(ctx context.Context, id string) {
	c.send(ctx, message{Event: eventGetSettings, Context: id})
}

// GetGlobalSettings asks the host to send didReceiveGlobalSettings.
func (c *Client) GetGlobalSettings(ctx context.Context) {
	c.send(ctx, message{Event: eventGetGlobalSettings, Context: c.uuid})
}

// SetGlobalSettings persists the plugin-wide document. Unlike display
// output it waits for queue space until ctx is done.
func (c *Client) SetGlobalSettings(ctx context.Context, settings any) error {
	data, err := json.Marshal(message{Event: eventSetGlobalSettings, Context: c.uuid, Payload: settings})
	if err != nil {
		return fmt.Errorf("encode global settings: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.out <- data:
		return nil
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("queue global settings: %w", ctx.Err())
	}
}

// send queues msg without blocking, dropping it when the queue is full.
func (c *Client) send(ctx context.Context, msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WarnKV(ctx, "Failed to encode message", "event", msg.Event, "error", err)
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	select {
	case c.out <- data:
	case <-c.stopped:
	default:
		c.metrics.Dropped()
		logger.WarnKV(ctx, "Send queue full, dropping message", "event", msg.Event, "context", msg.Context)
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.shuttingDown() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}

			return fmt.Errorf("read host message: %w", err)
		}

		var ev Event
		if err = json.Unmarshal(data, &ev); err != nil {
			logger.WarnKV(ctx, "Ignoring malformed host message", "error", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.stopped:
			return nil
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) error {
	defer close(c.stopped)
	defer c.conn.Close()

	for data := range c.out {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("write host message: %w", err)
		}
	}

	goodbye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, goodbye, time.Now().Add(writeTimeout)); err != nil {
		logger.DebugKV(ctx, "Close handshake failed", "error", err)
	}

	return nil
}

func (c *Client) shuttingDown() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}
