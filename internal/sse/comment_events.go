package sse

import (
	"context"
	"sync"

	"clawnema/internal/models"
)

// CommentBroadcaster fans new comments out to the live feed subscribers of each theater.
type CommentBroadcaster struct {
	clients map[string][]chan models.CommentView
	mu      sync.RWMutex
	buffer  int
}

func NewCommentBroadcaster() *CommentBroadcaster {
	return &CommentBroadcaster{
		clients: make(map[string][]chan models.CommentView),
		buffer:  10,
	}
}

// Subscribe registers a client for theaterID. The channel is closed once ctx is done.
func (b *CommentBroadcaster) Subscribe(ctx context.Context, theaterID string) <-chan models.CommentView {
	ch := make(chan models.CommentView, b.buffer)

	b.mu.Lock()
	b.clients[theaterID] = append(b.clients[theaterID], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(theaterID, ch)
	}()

	return ch
}

// Emit never blocks: a client whose buffer is full misses the comment.
// Sends happen under the read lock so remove cannot close a channel mid-send.
func (b *CommentBroadcaster) Emit(comment models.CommentView) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.clients[comment.TheaterID] {
		select {
		case ch <- comment:
			delivered++
		default:
		}
	}
	return delivered
}

func (b *CommentBroadcaster) remove(theaterID string, ch chan models.CommentView) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients := b.clients[theaterID]
	for i, c := range clients {
		if c == ch {
			b.clients[theaterID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(b.clients[theaterID]) == 0 {
		delete(b.clients, theaterID)
	}
}

func (b *CommentBroadcaster) ClientCount(theaterID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[theaterID])
}
