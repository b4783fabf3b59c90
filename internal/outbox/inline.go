package outbox

import (
	"context"

	"go.uber.org/zap"
)

// Inline runs writes synchronously on the caller's goroutine. It gives tests
// and one-shot commands a deterministic Writer.
type Inline struct {
	Gate   Gate
	Logger *zap.Logger
}

// Submit implements Writer.
func (w Inline) Submit(op string, fn WriteFunc) {
	if w.Gate != nil && !w.Gate.Online() {
		return
	}
	w.Attempt(op, fn)
}

// Attempt implements Writer.
func (w Inline) Attempt(op string, fn WriteFunc) {
	if err := fn(context.Background()); err != nil && w.Logger != nil {
		w.Logger.Warn("write failed", zap.String("op", op), zap.Error(err))
	}
}
