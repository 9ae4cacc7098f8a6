package service

import (
	"sync"

	"weboptimizer-backend/internal/model"
)

// PreviewHub fans buffer changes out to preview subscribers. Each subscriber
// holds at most one pending update; a newer one replaces it.
type PreviewHub struct {
	mu     sync.Mutex
	subs   map[chan model.PreviewFiles]struct{}
	latest model.PreviewFiles
}

func NewPreviewHub(initial model.PreviewFiles) *PreviewHub {
	return &PreviewHub{
		subs:   make(map[chan model.PreviewFiles]struct{}),
		latest: initial,
	}
}

// Subscribe returns a channel primed with the current files and a cancel
// func that closes it.
func (h *PreviewHub) Subscribe() (<-chan model.PreviewFiles, func()) {
	ch := make(chan model.PreviewFiles, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	ch <- h.latest
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish never blocks.
func (h *PreviewHub) Publish(files model.PreviewFiles) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = files
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- files
	}
}

func (h *PreviewHub) Latest() model.PreviewFiles {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

func (h *PreviewHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *PreviewHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
