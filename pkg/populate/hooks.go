package populate

import (
	"context"
	"time"
)

// Hooks receives events while a populate run walks ids and fields.
// Implementations must be safe for concurrent use; the runner calls
// them from its worker goroutines.
type Hooks interface {
	OnFieldStart(ctx context.Context, dataset, id, field string)
	OnFieldComplete(ctx context.Context, dataset, id, field string, duration time.Duration, err error)
	OnDatasetComplete(ctx context.Context, dataset string, succeeded, failed int, duration time.Duration)
}

// NoopHooks is a no-op implementation of Hooks.
type NoopHooks struct{}

func (NoopHooks) OnFieldStart(context.Context, string, string, string)                        {}
func (NoopHooks) OnFieldComplete(context.Context, string, string, string, time.Duration, error) {}
func (NoopHooks) OnDatasetComplete(context.Context, string, int, int, time.Duration)          {}
