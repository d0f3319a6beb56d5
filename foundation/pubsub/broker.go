package pubsub

import (
	"fmt"
	"sync"
)

type Broker struct {
	topics map[string][]*Subscriber
	sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string][]*Subscriber, 0),
	}
}

// Publish hands data to every subscriber of topic and returns how many
// subscribers there were. It never blocks on a slow subscriber.
func (b *Broker) Publish(topic string, data any) int {
	var subs []*Subscriber

	b.RLock()
	{
		subs = b.topics[topic]
	}
	b.RUnlock()

	for _, sub := range subs {
		sub.Signal(data)
	}
	return len(subs)
}

func (b *Broker) Subscribe(topic string, s *Subscriber) {
	b.Lock()
	defer b.Unlock()
	{
		_, exists := b.topics[topic]
		if !exists {
			b.topics[topic] = make([]*Subscriber, 0)
		}

		b.topics[topic] = append(b.topics[topic], s)
	}
}

func (b *Broker) UnSubscribe(topic string, s *Subscriber) error {
	b.Lock()
	defer b.Unlock()
	{
		subs, exists := b.topics[topic]
		if !exists {
			return fmt.Errorf("topic[%s] does not exists", topic)
		}

		b.topics[topic] = removeFromSlice(subs, s)
		s.CloseChannel()
	}

	return nil
}

// =================================================================================================================

func removeFromSlice[T comparable](s []T, d T) []T {
	for i := range s {
		if s[i] == d {
			s[i] = s[len(s)-1]
			return s[:len(s)-1]
		}
	}
	return s
}
