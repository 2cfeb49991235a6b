package framework

import (
	"context"
	"fmt"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunnableFunc is func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Node is a unit of work polled once per executor cycle.
// Process must return promptly and must not block on I/O
// longer than the link timeouts it owns.
type Node interface {
	Process()
}

// NodeName returns a printable name of the node.
func NodeName(node Node) string {
	if named, ok := node.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", node)
}
