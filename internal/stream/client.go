package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/models"

	"github.com/r3labs/sse/v2"
)

// DefaultRetry is the reconnection delay used until the server advertises
// its own with a "retry:" field.
const DefaultRetry = 3 * time.Second

// DefaultMaxEventBytes caps one event block. A full 600 s window of the
// board's sensors is well under 100 KiB.
const DefaultMaxEventBytes = 1 << 20

const (
	eventTypeMessage = "message"
	contentTypeSSE   = "text/event-stream"
)

var (
	ErrStreamClosed     = errors.New("stream closed by server")
	ErrEventTooLarge    = errors.New("stream event exceeds size limit")
	errNotEventStream   = errors.New("response is not text/event-stream")
	errUnexpectedStatus = errors.New("unexpected stream status")
)

// FrameObserver is notified about connection lifecycle and dropped frames.
// All methods are called from the goroutine running Client.Run.
type FrameObserver interface {
	OnOpen()
	OnFrameDropped(err error)
	OnError(err error)
}

// ClientConfig configures a push-channel client.
type ClientConfig struct {
	URL        string
	HTTPClient *http.Client  // nil means a client without timeout
	Observer   FrameObserver // optional
	// MaxEventBytes caps a single event block; 0 means DefaultMaxEventBytes.
	MaxEventBytes int
}

// Client reads the device's server-sent event stream and publishes each
// decoded snapshot through the Registry. It holds at most one connection
// and never reconnects by itself; see RunWithReconnect.
type Client struct {
	url        string
	httpClient *http.Client
	registry   *Registry
	observer   FrameObserver
	maxEvent   int
	log        *logger.Logger

	delivered atomic.Uint64
	dropped   atomic.Uint64
	retry     atomic.Int64 // nanoseconds

	mu          sync.Mutex
	lastEventID string
}

func NewClient(cfg ClientConfig, registry *Registry, log *logger.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	c := &Client{
		url:        cfg.URL,
		httpClient: hc,
		registry:   registry,
		observer:   cfg.Observer,
		maxEvent:   cfg.MaxEventBytes,
		log:        log,
	}
	if c.maxEvent <= 0 {
		c.maxEvent = DefaultMaxEventBytes
	}
	c.retry.Store(int64(DefaultRetry))
	return c
}

// Delivered reports how many snapshots were published.
func (c *Client) Delivered() uint64 { return c.delivered.Load() }

// Dropped reports how many frames were discarded as malformed.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// RetryDelay is the reconnection delay last advertised by the server.
func (c *Client) RetryDelay() time.Duration { return time.Duration(c.retry.Load()) }

// Run opens one connection and consumes it until the server closes it, a
// transport error occurs or ctx is done. It always returns a non-nil error.
func (c *Client) Run(ctx context.Context) error {
	body, err := c.open(ctx)
	if err != nil {
		c.fail(err)
		return err
	}
	defer func() { _ = body.Close() }()

	if c.log != nil {
		c.log.Infow("stream_opened", "url", c.url)
	}
	if c.observer != nil {
		c.observer.OnOpen()
	}

	err = c.consume(body)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.fail(err)
	return err
}

func (c *Client) open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", contentTypeSSE)
	req.Header.Set("Cache-Control", "no-cache")
	c.mu.Lock()
	if c.lastEventID != "" {
		req.Header.Set("Last-Event-ID", c.lastEventID)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", errUnexpectedStatus, resp.Status)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != contentTypeSSE {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: got %q", errNotEventStream, resp.Header.Get("Content-Type"))
	}
	return resp.Body, nil
}

func (c *Client) fail(err error) {
	if c.log != nil {
		c.log.Errorw("stream_error", "url", c.url, "err", err)
	}
	if c.observer != nil {
		c.observer.OnError(err)
	}
}

// sseEvent holds the fields of one event block.
type sseEvent struct {
	typ  string
	data strings.Builder
	has  bool
}

// consume reads the stream one event block at a time. Framing and the size
// cap come from the r3labs reader; fields are applied here so id and retry
// update the connection state even when the block carries no data.
func (c *Client) consume(r io.Reader) error {
	reader := sse.NewEventStreamReader(r, c.maxEvent)
	for {
		block, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamClosed
			}
			if errors.Is(err, bufio.ErrTooLong) {
				c.drop(fmt.Errorf("%w (%d bytes)", ErrEventTooLarge, c.maxEvent))
				return ErrEventTooLarge
			}
			return fmt.Errorf("read stream: %w", err)
		}
		var ev sseEvent
		c.parseBlock(block, &ev)
		c.dispatch(&ev)
	}
}

func (c *Client) parseBlock(block []byte, ev *sseEvent) {
	block = bytes.ReplaceAll(block, []byte("\r\n"), []byte("\n"))
	block = bytes.ReplaceAll(block, []byte("\r"), []byte("\n"))
	for _, raw := range bytes.Split(block, []byte("\n")) {
		line := string(raw)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			if ev.has {
				ev.data.WriteByte('\n')
			}
			ev.data.WriteString(value)
			ev.has = true
		case "event":
			ev.typ = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				c.mu.Lock()
				c.lastEventID = value
				c.mu.Unlock()
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				c.retry.Store(int64(time.Duration(ms) * time.Millisecond))
			}
		}
	}
}

func (c *Client) dispatch(ev *sseEvent) {
	if !ev.has {
		return
	}
	if ev.typ != "" && ev.typ != eventTypeMessage {
		if c.log != nil {
			c.log.Debugw("stream_event_ignored", "event", ev.typ)
		}
		return
	}

	snap, err := decodeSnapshot(ev.data.String())
	if err != nil {
		c.drop(err)
		return
	}

	c.delivered.Add(1)
	c.registry.Publish(snap)
}

func (c *Client) drop(err error) {
	c.dropped.Add(1)
	if c.log != nil {
		c.log.Warnw("stream_frame_dropped", "err", err, "dropped_total", c.dropped.Load())
	}
	if c.observer != nil {
		c.observer.OnFrameDropped(err)
	}
}

// decodeSnapshot parses one frame. A frame that fails the alignment contract
// is treated like unparsable input so no partial snapshot ever escapes.
func decodeSnapshot(data string) (models.StateSnapshot, error) {
	var s models.StateSnapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return models.StateSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return models.StateSnapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	return s, nil
}
