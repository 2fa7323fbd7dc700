package stream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Broadcast("session-1", []byte(`"hello"`))

	select {
	case msg := <-client.Send:
		if string(msg) != `"hello"` {
			t.Fatalf("unexpected message %s", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubBroadcastOtherSessionIgnored(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Broadcast("session-2", []byte(`{}`))

	select {
	case msg := <-client.Send:
		t.Fatalf("unexpected message %s", msg)
	default:
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "tracking:abc:broadcast" {
		t.Fatalf("unexpected channel %s", ch)
	}
	if sessionIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected session id")
	}
	if sessionIDFromChannel("bad") != "" {
		t.Fatalf("expected empty session id")
	}
	if sessionIDFromChannel("other:abc:broadcast") != "" {
		t.Fatalf("expected empty session id for foreign prefix")
	}
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("session-2")
	hub.Unregister(client)
	hub.Unregister(client)
	if _, ok := <-client.Send; ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubRedisRelaysBetweenInstances(t *testing.T) {
	s := miniredis.RunT(t)
	rdbA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	rdbB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdbA.Close()
	defer rdbB.Close()

	hubA := NewHub(rdbA, nil)
	defer hubA.Close()
	hubB := NewHub(rdbB, nil)
	defer hubB.Close()

	local := hubA.Register("session-redis")
	defer hubA.Unregister(local)
	remote := hubB.Register("session-redis")
	defer hubB.Unregister(remote)

	hubA.Broadcast("session-redis", []byte(`{"type":"progress"}`))

	select {
	case msg := <-remote.Send:
		if string(msg) != `{"type":"progress"}` {
			t.Fatalf("unexpected relayed message %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for relayed message")
	}

	select {
	case msg := <-local.Send:
		if string(msg) != `{"type":"progress"}` {
			t.Fatalf("unexpected local message %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for local message")
	}

	// The publisher's own echo must not be delivered a second time.
	select {
	case msg := <-local.Send:
		t.Fatalf("duplicate local delivery %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubRedisIgnoresMalformed(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	client := hub.Register("session-x")
	defer hub.Unregister(client)

	if err := rdb.Publish(context.Background(), redisChannel("session-x"), "not json").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	select {
	case msg := <-client.Send:
		t.Fatalf("unexpected message %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubRedisUnavailable(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client, nil)
	defer hub.Close()
	node := hub.Register("session-bad")
	defer hub.Unregister(node)

	hub.Broadcast("session-bad", []byte(`"ping"`))
	select {
	case <-node.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected local delivery without redis")
	}
}
