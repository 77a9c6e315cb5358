package engine

import "sync"

// MessageKind classifies console output so surfaces can style it.
type MessageKind int

const (
	// MessagePrint is narrative output from scripts.
	MessagePrint MessageKind = iota
	// MessageSystem is engine status: deaths, errors, mode changes.
	MessageSystem
	// MessageCombat is attack and damage reporting.
	MessageCombat
)

// Message is one console line.
type Message struct {
	Kind MessageKind
	Text string
}

// Console receives game output. Scripts print through it; the engine
// reports combat and system events through it.
type Console interface {
	Print(text string)
	System(text string)
	Combat(text string)
}

// Buffer is a Console that accumulates messages, optionally notifying a
// listener per line. Safe for concurrent use: the engine may run on a
// different goroutine than the surface reading it.
type Buffer struct {
	mu     sync.Mutex
	lines  []Message
	Notify func(Message)
}

func (b *Buffer) Print(text string)  { b.append(Message{Kind: MessagePrint, Text: text}) }
func (b *Buffer) System(text string) { b.append(Message{Kind: MessageSystem, Text: text}) }
func (b *Buffer) Combat(text string) { b.append(Message{Kind: MessageCombat, Text: text}) }

func (b *Buffer) append(m Message) {
	b.mu.Lock()
	b.lines = append(b.lines, m)
	notify := b.Notify
	b.mu.Unlock()
	if notify != nil {
		notify(m)
	}
}

// Messages returns a snapshot of all lines so far.
func (b *Buffer) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.lines))
	copy(out, b.lines)
	return out
}
