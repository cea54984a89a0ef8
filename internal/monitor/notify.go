// Package monitor surfaces worktree activity to the developer: desktop
// notifications for finished tasks and status summaries for the watch view.
package monitor

import (
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/badri/wtmcp/internal/logger"
)

// Notifier sends desktop notifications.
type Notifier interface {
	Notify(title, message string) error
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(title, message string) error

func (f NotifyFunc) Notify(title, message string) error { return f(title, message) }

// Desktop sends notifications through beeep.
type Desktop struct{}

func (Desktop) Notify(title, message string) error {
	// Empty icon lets beeep pick the platform default.
	err := beeep.Notify(title, message, "")
	if err != nil {
		logger.WithComponent("monitor").Debug("notification failed", "error", err)
	}
	return err
}

// Discard drops every notification.
var Discard Notifier = NotifyFunc(func(string, string) error { return nil })

// Recorder keeps notifications in memory.
type Recorder struct {
	mu       sync.Mutex
	Messages []Message
}

// Message is one recorded notification.
type Message struct {
	Title string
	Body  string
}

func (r *Recorder) Notify(title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, Message{Title: title, Body: message})
	return nil
}

// TaskComplete notifies that the delegated session in worktree finished.
func TaskComplete(n Notifier, worktree, summary string) error {
	return n.Notify("Task complete: "+worktree, truncate(summary, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
