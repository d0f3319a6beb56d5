package pubsub_test

import (
	"testing"

	"github.com/superfeelapi/pitchFeedback/foundation/pubsub"
)

func TestBroker(t *testing.T) {
	b := pubsub.NewBroker()
	s1 := pubsub.NewSubscriber(4)
	s2 := pubsub.NewSubscriber(4)
	s3 := pubsub.NewSubscriber(4)

	b.Subscribe("session", s1)
	b.Subscribe("session", s2)
	b.Subscribe("integer", s3)

	if n := b.Publish("session", "hello world"); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if n := b.Publish("integer", 17); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if n := b.Publish("unknown", 12); n != 0 {
		t.Fatalf("expected no delivery, got %d", n)
	}

	for i, s := range []*pubsub.Subscriber{s1, s2} {
		if got := <-s.GetChannel(); got != "hello world" {
			t.Fatalf("subscriber %d: got %v", i, got)
		}
	}
	if got := <-s3.GetChannel(); got != 17 {
		t.Fatalf("integer subscriber: got %v", got)
	}

	if err := b.UnSubscribe("session", s1); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-s1.GetChannel(); ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if n := b.Publish("session", "again"); n != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", n)
	}
	if err := b.UnSubscribe("missing", s1); err == nil {
		t.Fatal("expected error for unknown topic")
	}
}

func TestSubscriberKeepsLatest(t *testing.T) {
	s := pubsub.NewSubscriber(1)

	s.Signal(1)
	s.Signal(2)
	s.Signal(3)

	if got := <-s.GetChannel(); got != 3 {
		t.Fatalf("expected latest value 3, got %v", got)
	}

	s.CloseChannel()
	s.Signal(4)
	s.CloseChannel()
}
