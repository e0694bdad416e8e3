package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/erwinnova/umkm-tracker/internal/tracking"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeIngester struct {
	called bool
	entry  *tracking.LocationLog
	err    error
}

func (f *fakeIngester) Ingest(_ context.Context, sellerID string, lat, lng float64, sessionID *string) (*tracking.LocationLog, error) {
	f.called = true
	if f.entry != nil {
		f.entry.SellerID = sellerID
		f.entry.SessionID = sessionID
	}
	return f.entry, f.err
}

func acceptedLog() *tracking.LocationLog {
	return &tracking.LocationLog{ID: "log-1", RecordedAt: time.Now()}
}

func decodeAck(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var ack map[string]any
	if err := json.Unmarshal(b, &ack); err != nil {
		t.Fatalf("decode ack %s: %v", b, err)
	}
	return ack
}

func TestRegisterLastWins(t *testing.T) {
	reg := NewRegistry(&fakeIngester{}, nil)

	first := NewClient()
	second := NewClient()
	reg.Register("seller-1", first)
	reg.Register("seller-1", second)

	select {
	case _, ok := <-first.Recv():
		if ok {
			t.Fatalf("expected first channel closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("first channel not torn down")
	}

	if first.Push([]byte("x")) {
		t.Fatalf("push to replaced channel should fail")
	}
	if !second.Push([]byte("x")) {
		t.Fatalf("push to live channel should succeed")
	}

	active := reg.ListActive()
	if len(active) != 1 || active[0] != "seller-1" {
		t.Fatalf("unexpected active list %v", active)
	}
}

func TestUnregisterMatchesByChannelIdentity(t *testing.T) {
	reg := NewRegistry(&fakeIngester{}, nil)

	stale := NewClient()
	reg.Register("seller-1", stale)
	live := NewClient()
	reg.Register("seller-1", live)

	// teardown of the replaced channel must not evict its successor
	reg.Unregister(stale)
	if active := reg.ListActive(); len(active) != 1 {
		t.Fatalf("live channel evicted by stale teardown: %v", active)
	}

	reg.Unregister(live)
	if active := reg.ListActive(); len(active) != 0 {
		t.Fatalf("expected empty registry, got %v", active)
	}
}

func TestReregisterUnderNewSellerReleasesOldKey(t *testing.T) {
	reg := NewRegistry(&fakeIngester{}, nil)

	client := NewClient()
	reg.Register("seller-1", client)
	reg.Register("seller-2", client)

	active := reg.ListActive()
	if len(active) != 1 || active[0] != "seller-2" {
		t.Fatalf("expected only the new key, got %v", active)
	}

	reg.Unregister(client)
	if active := reg.ListActive(); len(active) != 0 {
		t.Fatalf("stale registry entries after teardown: %v", active)
	}
}

func TestRouteAcceptedBroadcastsToOthers(t *testing.T) {
	ing := &fakeIngester{entry: acceptedLog()}
	reg := NewRegistry(ing, nil)

	origin := NewClient()
	other := NewClient()
	reg.Register("seller-1", origin)
	reg.Register("seller-2", other)

	ack := decodeAck(t, reg.Route(context.Background(), origin,
		json.RawMessage(`{"seller_id":"seller-1","lat":10.0,"lng":20.0}`)))
	if ack["status"] != "ok" {
		t.Fatalf("unexpected ack %v", ack)
	}

	select {
	case msg := <-other.Recv():
		payload := decodeAck(t, msg)
		if payload["seller_id"] != "seller-1" || payload["lat"].(float64) != 10.0 {
			t.Fatalf("unexpected broadcast %v", payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected broadcast to other channel")
	}

	select {
	case msg := <-origin.Recv():
		t.Fatalf("origin should not receive its own broadcast: %s", msg)
	default:
	}
}

func TestRouteSkipped(t *testing.T) {
	reg := NewRegistry(&fakeIngester{}, nil)

	other := NewClient()
	reg.Register("seller-2", other)

	ack := decodeAck(t, reg.Route(context.Background(), nil,
		json.RawMessage(`{"seller_id":"seller-1","lat":10.0,"lng":20.0}`)))
	if ack["status"] != "skipped" {
		t.Fatalf("unexpected ack %v", ack)
	}

	select {
	case msg := <-other.Recv():
		t.Fatalf("skipped sample must not broadcast: %s", msg)
	default:
	}
}

func TestRouteInvalidPayloads(t *testing.T) {
	ing := &fakeIngester{entry: acceptedLog()}
	reg := NewRegistry(ing, nil)

	payloads := []string{
		`not json`,
		`{"lat":10.0,"lng":20.0}`,
		`{"seller_id":"seller-1","lng":20.0}`,
		`{"seller_id":"seller-1","lat":10.0}`,
	}
	for _, p := range payloads {
		ack := decodeAck(t, reg.Route(context.Background(), nil, json.RawMessage(p)))
		if ack["status"] != "error" {
			t.Fatalf("payload %q: unexpected ack %v", p, ack)
		}
	}
	if ing.called {
		t.Fatalf("invalid payloads must not reach the ingester")
	}
}

func TestRouteIngestError(t *testing.T) {
	reg := NewRegistry(&fakeIngester{err: errors.New("invalid coordinate: (200, 20)")}, nil)

	ack := decodeAck(t, reg.Route(context.Background(), nil,
		json.RawMessage(`{"seller_id":"seller-1","lat":200.0,"lng":20.0}`)))
	if ack["status"] != "error" {
		t.Fatalf("unexpected ack %v", ack)
	}
	if ack["message"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestRedisFanout(t *testing.T) {
	s := miniredis.RunT(t)

	clientA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer clientA.Close()
	defer clientB.Close()

	regA := NewRegistry(&fakeIngester{}, clientA)
	regB := NewRegistry(&fakeIngester{}, clientB)

	remote := NewClient()
	regB.Register("seller-2", remote)

	time.Sleep(20 * time.Millisecond) // let subscribers attach
	regA.Broadcast(nil, []byte(`{"seller_id":"seller-1"}`))

	select {
	case msg := <-remote.Recv():
		if string(msg) != `{"seller_id":"seller-1"}` {
			t.Fatalf("unexpected fanout payload %s", msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for redis fanout")
	}
}

func TestRedisFanoutIgnoresOwnEcho(t *testing.T) {
	s := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	reg := NewRegistry(&fakeIngester{}, client)
	origin := NewClient()
	reg.Register("seller-1", origin)

	time.Sleep(20 * time.Millisecond)
	reg.Broadcast(origin, []byte(`{"seller_id":"seller-1"}`))
	time.Sleep(50 * time.Millisecond)

	select {
	case msg := <-origin.Recv():
		t.Fatalf("origin received its own echo: %s", msg)
	default:
	}
}

func TestRedisPublishError(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	s.Close()
	defer client.Close()

	reg := NewRegistry(&fakeIngester{}, client)
	reg.Broadcast(nil, []byte("ping")) // logged, not fatal
}
