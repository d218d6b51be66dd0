package event

import (
	"sort"
	"sync"

	"github.com/dshills/dbgcore/internal/event/topic"
)

// registry holds subscriptions and resolves the ordered handler list for a
// topic.
type registry struct {
	mu   sync.RWMutex
	subs []*subscription
	seq  uint64
}

func (r *registry) add(pattern topic.Topic, h Handler, opts []SubscriptionOption) *subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	sub := newSubscription(pattern, h, r.seq, opts)
	r.subs = append(r.subs, sub)
	sort.SliceStable(r.subs, func(i, j int) bool {
		if r.subs[i].config.Priority != r.subs[j].config.Priority {
			return r.subs[i].config.Priority < r.subs[j].config.Priority
		}
		return r.subs[i].seq < r.subs[j].seq
	})
	return sub
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.id == id {
			s.Cancel()
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return true
		}
	}
	return false
}

// match returns a snapshot of subscriptions whose pattern matches t, in
// delivery order. Cancelled subscriptions are pruned as a side effect.
func (r *registry) match(t topic.Topic) []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*subscription
	live := r.subs[:0]
	for _, s := range r.subs {
		if s.State() == SubscriptionStateCancelled {
			continue
		}
		live = append(live, s)
		if t.Matches(s.pattern) {
			out = append(out, s)
		}
	}
	for i := len(live); i < len(r.subs); i++ {
		r.subs[i] = nil
	}
	r.subs = live
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.subs {
		if s.State() != SubscriptionStateCancelled {
			n++
		}
	}
	return n
}
