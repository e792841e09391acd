package events

import (
	"testing"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(16)

	ch, cancel := bus.Subscribe(Filter{})
	defer cancel()

	bus.Publish("audio", "s1", map[string]string{"status": "done"})

	select {
	case e := <-ch:
		if e.Type != "audio" || e.SegmentID != "s1" {
			t.Errorf("event = %+v", e)
		}
		if e.ID == "" || e.Timestamp == "" {
			t.Error("event missing id or timestamp")
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestFilterByType(t *testing.T) {
	bus := NewBus(16)

	ch, cancel := bus.Subscribe(Filter{Types: []string{"image"}})
	defer cancel()

	bus.Publish("audio", "s1", nil)
	bus.Publish("image", "s1", nil)

	var got []Event
	for {
		select {
		case e := <-ch:
			got = append(got, e)
			continue
		default:
		}
		break
	}
	if len(got) != 1 || got[0].Type != "image" {
		t.Errorf("filtered events = %+v, want single image event", got)
	}
}

func TestFilterBySegment(t *testing.T) {
	bus := NewBus(16)

	ch, cancel := bus.Subscribe(Filter{SegmentIDs: []string{"s2"}})
	defer cancel()

	bus.Publish("audio", "s1", nil)
	bus.Publish("audio", "s2", nil)

	select {
	case e := <-ch:
		if e.SegmentID != "s2" {
			t.Errorf("SegmentID = %q, want s2", e.SegmentID)
		}
	default:
		t.Fatal("no event delivered")
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected second event: %+v", e)
	default:
	}
}

func TestReplaySince(t *testing.T) {
	bus := NewBus(16)

	bus.Publish("audio", "s1", nil)
	bus.Publish("audio", "s2", nil)
	bus.Publish("audio", "s3", nil)

	all := bus.ReplaySince("", Filter{})
	if len(all) != 3 {
		t.Fatalf("ReplaySince(\"\") = %d events, want 3", len(all))
	}

	after := bus.ReplaySince(all[0].ID, Filter{})
	if len(after) != 2 {
		t.Fatalf("ReplaySince(first) = %d events, want 2", len(after))
	}
	if after[0].SegmentID != "s2" || after[1].SegmentID != "s3" {
		t.Errorf("replay order wrong: %+v", after)
	}
}

func TestRingOverflow(t *testing.T) {
	bus := NewBus(4)
	for i := 0; i < 10; i++ {
		bus.Publish("audio", "s", i)
	}
	all := bus.ReplaySince("", Filter{})
	if len(all) != 4 {
		t.Errorf("ring kept %d events, want 4", len(all))
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	bus := NewBus(4)
	_, cancel := bus.Subscribe(Filter{})
	if bus.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d, want 1", bus.Subscribers())
	}
	cancel()
	if bus.Subscribers() != 0 {
		t.Errorf("Subscribers = %d after cancel, want 0", bus.Subscribers())
	}
}
