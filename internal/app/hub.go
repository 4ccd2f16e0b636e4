package app

import (
	"sync"

	"contest-grading-service/internal/domain"
)

type subscriber struct {
	ch chan domain.Leaderboard
	// seeded is set once the subscriber holds any snapshot.
	seeded bool
}

// LeaderboardHub fans leaderboard snapshots out to live subscribers per contest.
type LeaderboardHub struct {
	mu          sync.Mutex
	subscribers map[string]map[<-chan domain.Leaderboard]*subscriber
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{
		subscribers: make(map[string]map[<-chan domain.Leaderboard]*subscriber),
	}
}

// Subscribe registers a channel for every update published from now on.
// Follow it with Seed to deliver the current snapshot. The caller must invoke
// cancel to avoid leaks.
func (h *LeaderboardHub) Subscribe(contestID string) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	var key <-chan domain.Leaderboard = ch

	h.mu.Lock()
	subs, ok := h.subscribers[contestID]
	if !ok {
		subs = make(map[<-chan domain.Leaderboard]*subscriber)
		h.subscribers[contestID] = subs
	}
	subs[key] = &subscriber{ch: ch}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[contestID]
		if _, ok := subs[key]; !ok {
			return
		}
		delete(subs, key)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, contestID)
		}
	}
	return key, cancel
}

// Seed hands lb to a subscriber that has not received anything yet. A
// snapshot published after registration is at least as fresh, so it wins.
func (h *LeaderboardHub) Seed(ch <-chan domain.Leaderboard, lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subscribers[lb.ContestID][ch]
	if !ok || sub.seeded {
		return
	}
	sub.seeded = true
	deliver(sub.ch, lb)
}

// Publish delivers lb to every subscriber of its contest without blocking.
func (h *LeaderboardHub) Publish(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers[lb.ContestID] {
		sub.seeded = true
		deliver(sub.ch, lb)
	}
}

// Subscribers reports how many live subscriptions a contest has.
func (h *LeaderboardHub) Subscribers(contestID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[contestID])
}

func deliver(ch chan domain.Leaderboard, lb domain.Leaderboard) {
	select {
	case ch <- lb:
	default:
		// slow reader: drop its oldest snapshot so the latest one lands
		select {
		case <-ch:
		default:
		}
		ch <- lb
	}
}
