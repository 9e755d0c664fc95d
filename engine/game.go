package engine

import (
	"context"
	"errors"
	"time"
)

// ErrQuit stops the engine loop without reporting a failure.
var ErrQuit = errors.New("quit requested")

// Game is the workload driven by the engine. Only FnUpdate is required.
type Game struct {
	Name         string
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnShutdown   Shutdown
}

type Initialize func(e *Engine) error

// Update runs one iteration. Returning ErrQuit ends the loop.
type Update func(ctx context.Context, e *Engine, deltaTime time.Duration) error
type Shutdown func(e *Engine) error
