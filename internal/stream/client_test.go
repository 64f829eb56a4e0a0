package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"thermal_dashboard/internal/models"
)

type recordingObserver struct {
	mu      sync.Mutex
	opens   int
	dropped []error
	errs    []error
}

func (o *recordingObserver) OnOpen() {
	o.mu.Lock()
	o.opens++
	o.mu.Unlock()
}

func (o *recordingObserver) OnFrameDropped(err error) {
	o.mu.Lock()
	o.dropped = append(o.dropped, err)
	o.mu.Unlock()
}

func (o *recordingObserver) OnError(err error) {
	o.mu.Lock()
	o.errs = append(o.errs, err)
	o.mu.Unlock()
}

func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != contentTypeSSE {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		_, _ = fmt.Fprint(w, body)
	}))
}

func TestClient_DeliversParsedFramesInOrder(t *testing.T) {
	body := ": keep-alive comment\n" +
		"data: {\"timestamp_sec\":[0,1],\"temperature_c\":{\"cpu\":[40,41]},\"tachometer_rpm\":{\"fan1\":[1000,1010]}}\n\n" +
		"event: message\n" +
		"data: {\"timestamp_sec\":[1,2],\n" +
		"data: \"temperature_c\":{},\"tachometer_rpm\":{}}\n\n" +
		"data:{\"timestamp_sec\":[2,3],\"temperature_c\":{},\"tachometer_rpm\":{}}\r\n\r\n"
	srv := sseServer(t, body)
	defer srv.Close()

	reg := NewRegistry(nil)
	var first, second []float64
	reg.Subscribe(SubscriberFunc(func(s models.StateSnapshot) { first = append(first, s.TimestampSec[0]) }))
	reg.Subscribe(SubscriberFunc(func(s models.StateSnapshot) { second = append(second, s.TimestampSec[0]) }))

	obs := &recordingObserver{}
	c := NewClient(ClientConfig{URL: srv.URL, Observer: obs}, reg, nil)
	err := c.Run(context.Background())
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("Run err = %v, want ErrStreamClosed", err)
	}

	want := []float64{0, 1, 2}
	for name, got := range map[string][]float64{"first": first, "second": second} {
		if len(got) != len(want) {
			t.Fatalf("%s subscriber got %v, want %v", name, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s subscriber got %v, want %v", name, got, want)
			}
		}
	}
	if c.Delivered() != 3 || c.Dropped() != 0 {
		t.Fatalf("delivered=%d dropped=%d", c.Delivered(), c.Dropped())
	}
	if obs.opens != 1 || len(obs.errs) != 1 {
		t.Fatalf("observer opens=%d errs=%d", obs.opens, len(obs.errs))
	}
}

func TestClient_DropsMalformedFramesWithoutPublishing(t *testing.T) {
	body := "data: {not json}\n\n" +
		"data: {\"timestamp_sec\":[0,1],\"temperature_c\":{\"cpu\":[40]}}\n\n" +
		"data: {\"timestamp_sec\":[5],\"temperature_c\":{},\"tachometer_rpm\":{}}\n\n"
	srv := sseServer(t, body)
	defer srv.Close()

	reg := NewRegistry(nil)
	var got []models.StateSnapshot
	reg.Subscribe(SubscriberFunc(func(s models.StateSnapshot) { got = append(got, s) }))

	obs := &recordingObserver{}
	c := NewClient(ClientConfig{URL: srv.URL, Observer: obs}, reg, nil)
	_ = c.Run(context.Background())

	if len(got) != 1 || got[0].TimestampSec[0] != 5 {
		t.Fatalf("published %+v, want only the valid frame", got)
	}
	if c.Dropped() != 2 || len(obs.dropped) != 2 {
		t.Fatalf("dropped=%d observed=%d, want 2", c.Dropped(), len(obs.dropped))
	}
	cur, ok := reg.Current()
	if !ok || cur.TimestampSec[0] != 5 {
		t.Fatalf("current snapshot = %+v", cur)
	}
}

func TestClient_IgnoresNamedEventsAndTracksRetry(t *testing.T) {
	body := "retry: 1500\n\n" +
		"event: ping\ndata: {}\n\n" +
		"id: 42\ndata: {\"timestamp_sec\":[],\"temperature_c\":{},\"tachometer_rpm\":{}}\n\n"
	srv := sseServer(t, body)
	defer srv.Close()

	reg := NewRegistry(nil)
	n := 0
	reg.Subscribe(SubscriberFunc(func(models.StateSnapshot) { n++ }))

	c := NewClient(ClientConfig{URL: srv.URL}, reg, nil)
	_ = c.Run(context.Background())

	if n != 1 {
		t.Fatalf("subscriber calls = %d, want 1", n)
	}
	if c.RetryDelay() != 1500*time.Millisecond {
		t.Fatalf("retry = %v", c.RetryDelay())
	}
	if c.lastEventID != "42" {
		t.Fatalf("lastEventID = %q", c.lastEventID)
	}
}

func TestClient_RejectsNonEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewClient(ClientConfig{URL: srv.URL, Observer: obs}, NewRegistry(nil), nil)
	if err := c.Run(context.Background()); !errors.Is(err, errNotEventStream) {
		t.Fatalf("err = %v, want errNotEventStream", err)
	}
	if obs.opens != 0 || len(obs.errs) != 1 {
		t.Fatalf("opens=%d errs=%d", obs.opens, len(obs.errs))
	}
}

func TestClient_RejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL}, NewRegistry(nil), nil)
	if err := c.Run(context.Background()); !errors.Is(err, errUnexpectedStatus) {
		t.Fatalf("err = %v, want errUnexpectedStatus", err)
	}
}

func TestClient_RunWithReconnect(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		w.Header().Set("Content-Type", contentTypeSSE)
		_, _ = fmt.Fprintf(w, "retry: 10\ndata: {\"timestamp_sec\":[%d]}\n\n", n)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reg := NewRegistry(nil)
	got := make(chan float64, 16)
	reg.Subscribe(SubscriberFunc(func(s models.StateSnapshot) {
		got <- s.TimestampSec[0]
		if len(got) >= 2 {
			cancel()
		}
	}))

	c := NewClient(ClientConfig{URL: srv.URL}, reg, nil)
	if err := c.RunWithReconnect(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(got) < 2 {
		t.Fatalf("expected at least two snapshots across reconnects, got %d", len(got))
	}
	if first := <-got; first != 1 {
		t.Fatalf("first snapshot from connection %v, want 1", first)
	}
}

func TestClient_OversizedEventIsDroppedAndEndsConnection(t *testing.T) {
	huge := "data: {\"timestamp_sec\":[" + strings.Repeat("1,", 2048) + "1]}\n\n"
	body := huge + "data: {\"timestamp_sec\":[7],\"temperature_c\":{},\"tachometer_rpm\":{}}\n\n"
	srv := sseServer(t, body)
	defer srv.Close()

	reg := NewRegistry(nil)
	n := 0
	reg.Subscribe(SubscriberFunc(func(models.StateSnapshot) { n++ }))

	obs := &recordingObserver{}
	c := NewClient(ClientConfig{URL: srv.URL, Observer: obs, MaxEventBytes: 1024}, reg, nil)
	if err := c.Run(context.Background()); !errors.Is(err, ErrEventTooLarge) {
		t.Fatalf("err = %v, want ErrEventTooLarge", err)
	}
	if n != 0 {
		t.Fatalf("subscriber calls = %d, want 0", n)
	}
	if c.Dropped() != 1 || len(obs.dropped) != 1 || len(obs.errs) != 1 {
		t.Fatalf("dropped=%d observed=%d errs=%d", c.Dropped(), len(obs.dropped), len(obs.errs))
	}
}
