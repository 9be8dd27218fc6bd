package client

import (
	"fmt"
	"io"
	"sync"
)

// Notifier receives conversation text and status events, exactly once each,
// in arrival order. Implementations must tolerate being called from the
// transport's receive goroutine.
type Notifier interface {
	AssistantMessage(text string)
	UserMessage(text string)
	Error(message string)
	Status(message string)
}

// ConsoleNotifier prints conversation events as labelled lines. Writes are
// serialized so interleaved transcript lines stay whole.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleNotifier creates a ConsoleNotifier writing to w.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

func (n *ConsoleNotifier) AssistantMessage(text string) { n.printf("assistant: %s", text) }
func (n *ConsoleNotifier) UserMessage(text string)      { n.printf("you: %s", text) }
func (n *ConsoleNotifier) Error(message string)         { n.printf("error: %s", message) }
func (n *ConsoleNotifier) Status(message string)        { n.printf("status: %s", message) }

func (n *ConsoleNotifier) printf(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, format+"\n", args...)
}
