package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// pump forwards messages to the program in order without blocking the
// sender. Bus handlers run on the publisher's goroutine, which may be the
// update loop itself, so they must never wait for the program.
type pump struct {
	mu     sync.Mutex
	queue  []tea.Msg
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func newPump() *pump {
	return &pump{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// push queues msg. It never blocks.
func (p *pump) push(msg tea.Msg) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, msg)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// run delivers queued messages to send until close is called.
func (p *pump) run(send func(tea.Msg)) {
	for {
		select {
		case <-p.wake:
		case <-p.done:
			return
		}
		for {
			p.mu.Lock()
			if len(p.queue) == 0 {
				p.mu.Unlock()
				break
			}
			msg := p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
			p.mu.Unlock()

			send(msg)
		}
	}
}

func (p *pump) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}
