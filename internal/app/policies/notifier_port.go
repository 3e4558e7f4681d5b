package policies

import "context"

// Notifier delivers transactional messages. Best-effort: callers never roll
// back state when a send fails.
type Notifier interface {
	Send(ctx context.Context, to string, template string, data any) error
}
