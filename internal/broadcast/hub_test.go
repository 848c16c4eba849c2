package broadcast

import "testing"

func TestPublish_FanOutToMatchingTopics(t *testing.T) {
	h := NewHub(Config{BufferSize: 4})

	s1 := h.OnConnect()
	h.Subscribe(s1.ID, TopicAll)

	s2 := h.OnConnect()
	h.Subscribe(s2.ID, DeviceTopic("A"))

	s3 := h.OnConnect()
	h.Subscribe(s3.ID, DeviceTopic("B"))

	h.PublishTelemetryPoint("A", "tag1", 1000, "event-A")

	select {
	case v := <-s1.Outbound():
		if v != "event-A" {
			t.Errorf("unexpected payload for s1: %v", v)
		}
	default:
		t.Error("expected s1 (subscribed to all) to receive the event")
	}

	select {
	case v := <-s2.Outbound():
		if v != "event-A" {
			t.Errorf("unexpected payload for s2: %v", v)
		}
	default:
		t.Error("expected s2 (subscribed to device:A) to receive the event")
	}

	select {
	case v := <-s3.Outbound():
		t.Errorf("expected s3 (subscribed to device:B) to receive nothing, got %v", v)
	default:
	}
}

func TestPublish_DropsOldestWhenBufferFull(t *testing.T) {
	h := NewHub(Config{BufferSize: 2})
	conn := h.OnConnect()
	h.Subscribe(conn.ID, TopicAll)

	h.Publish(TopicAll, "first")
	h.Publish(TopicAll, "second")
	h.Publish(TopicAll, "third")

	if conn.LagCount() != 1 {
		t.Errorf("expected exactly one dropped payload, got lag count %d", conn.LagCount())
	}

	first := <-conn.Outbound()
	second := <-conn.Outbound()
	if first != "second" || second != "third" {
		t.Errorf("expected the oldest entry to be dropped, got %v then %v", first, second)
	}
}

func TestOnDisconnect_RemovesConnection(t *testing.T) {
	h := NewHub(Config{BufferSize: 4})
	conn := h.OnConnect()
	h.Subscribe(conn.ID, TopicAll)
	h.OnDisconnect(conn.ID)

	h.Publish(TopicAll, "ignored")
	select {
	case v := <-conn.Outbound():
		t.Errorf("expected no delivery after disconnect, got %v", v)
	default:
	}
}

func TestPublishTelemetryPoint_EnforcesMonotoneTs(t *testing.T) {
	h := NewHub(Config{BufferSize: 4})
	conn := h.OnConnect()
	h.Subscribe(conn.ID, TopicAll)

	if !h.PublishTelemetryPoint("dev1", "tagA", 100, "p1") {
		t.Error("expected the first publish to succeed")
	}
	if h.PublishTelemetryPoint("dev1", "tagA", 100, "p2-dup") {
		t.Error("expected a duplicate Ts to be rejected")
	}
	if h.PublishTelemetryPoint("dev1", "tagA", 50, "p3-stale") {
		t.Error("expected a stale Ts to be rejected")
	}
	if !h.PublishTelemetryPoint("dev1", "tagA", 200, "p4") {
		t.Error("expected a newer Ts to succeed")
	}

	// only p1 and p4 should have been delivered.
	first := <-conn.Outbound()
	second := <-conn.Outbound()
	if first != "p1" || second != "p4" {
		t.Errorf("expected p1 then p4, got %v then %v", first, second)
	}
}

func TestLagCallback_Invoked(t *testing.T) {
	h := NewHub(Config{BufferSize: 1})
	var lagged []LagEvent
	h.OnLag(func(e LagEvent) { lagged = append(lagged, e) })

	conn := h.OnConnect()
	h.Subscribe(conn.ID, TopicAll)

	h.Publish(TopicAll, "a")
	h.Publish(TopicAll, "b")

	if len(lagged) != 1 {
		t.Fatalf("expected exactly one lag event, got %d", len(lagged))
	}
	if lagged[0].ConnID != conn.ID {
		t.Errorf("unexpected connection id in lag event: %v", lagged[0].ConnID)
	}
}
