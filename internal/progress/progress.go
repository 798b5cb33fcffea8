// Package progress carries human readable log lines out of long running operations
// (browser logins, page fetches) to an interactive caller.
package progress

import (
	"context"
	"fmt"
	"sync"
)

// LogFunc receives progress lines. A nil LogFunc discards them.
type LogFunc func(message string)

func (f LogFunc) Logf(format string, args ...any) {
	if f == nil {
		return
	}
	f(fmt.Sprintf(format, args...))
}

func (f LogFunc) Log(message string) {
	if f == nil {
		return
	}
	f(message)
}

type EventType string

const (
	EventLog    EventType = "log"
	EventResult EventType = "result"
	EventError  EventType = "error"
)

type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Content string    `json:"content,omitempty"`
}

type Task func(ctx context.Context, log LogFunc) (string, error)

// LogBuffer is how many log events Run holds for a reader that has fallen behind.
const LogBuffer = 16

// Run starts task and returns its events: zero or more log events followed by exactly
// one result or error event, after which the channel is closed. Once ctx is done pending
// events are dropped, lines logged after the task has finished are ignored.
//
// Logging never blocks the task: log lines that find the buffer full are dropped. The
// terminal event is always delivered unless ctx is done.
func Run(ctx context.Context, task Task) <-chan Event {
	events := make(chan Event, LogBuffer)

	var mutex sync.Mutex
	closed := false
	emit := func(e Event) {
		mutex.Lock()
		defer mutex.Unlock()
		if closed {
			return
		}
		if e.Type == EventLog {
			select {
			case events <- e:
			default:
			}
			return
		}
		select {
		case events <- e:
		case <-ctx.Done():
		}
	}

	go func() {
		defer func() {
			mutex.Lock()
			closed = true
			close(events)
			mutex.Unlock()
		}()

		content, err := task(ctx, func(message string) {
			emit(Event{Type: EventLog, Message: message})
		})
		if err != nil {
			emit(Event{Type: EventError, Message: err.Error()})
			return
		}
		emit(Event{Type: EventResult, Content: content})
	}()

	return events
}

// Fanout forwards every line to all currently subscribed LogFuncs. It lets a shared
// operation report progress to every caller waiting on it.
type Fanout struct {
	mutex       sync.Mutex
	nextId      int
	subscribers map[int]LogFunc
}

// Subscribe adds f and returns a function that removes it again.
func (b *Fanout) Subscribe(f LogFunc) func() {
	if f == nil {
		return func() {}
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.subscribers == nil {
		b.subscribers = map[int]LogFunc{}
	}
	id := b.nextId
	b.nextId++
	b.subscribers[id] = f

	return func() {
		b.mutex.Lock()
		delete(b.subscribers, id)
		b.mutex.Unlock()
	}
}

// Len returns the number of current subscribers.
func (b *Fanout) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.subscribers)
}

func (b *Fanout) Log(message string) {
	b.mutex.Lock()
	subscribers := make([]LogFunc, 0, len(b.subscribers))
	for _, f := range b.subscribers {
		subscribers = append(subscribers, f)
	}
	b.mutex.Unlock()

	for _, f := range subscribers {
		f(message)
	}
}
