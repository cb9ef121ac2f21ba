package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
)

// defaultMinInterval throttles console notifications so a chatty meeting does
// not flood the terminal. Dropped notifications are still logged at debug.
const defaultMinInterval = 10 * time.Second

// Console writes action item notifications to a terminal writer. It is the
// delivery sink behind the fire-and-forget dispatch in the pipeline; errors
// here never reach the caller's error path.
type Console struct {
	w           io.Writer
	minInterval time.Duration

	mu       sync.Mutex
	lastSent time.Time
}

var _ interfaces.Notifier = &Console{}

// Option is a functional option for Console configuration
type Option func(*Console)

// WithWriter overrides the output writer (default: stderr)
func WithWriter(w io.Writer) Option {
	return func(c *Console) {
		c.w = w
	}
}

// WithMinInterval overrides the notification throttle interval. Zero or
// negative disables throttling.
func WithMinInterval(d time.Duration) Option {
	return func(c *Console) {
		c.minInterval = d
	}
}

// NewConsole creates a console notification sink
func NewConsole(opts ...Option) *Console {
	c := &Console{
		w:           os.Stderr,
		minInterval: defaultMinInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifyActionItem prints a highlighted one-liner for an action item assigned
// to the user. Throttled notifications are dropped, not queued.
func (c *Console) NotifyActionItem(ctx context.Context, item *model.ActionItem) error {
	c.mu.Lock()
	now := time.Now()
	if c.minInterval > 0 && !c.lastSent.IsZero() && now.Sub(c.lastSent) < c.minInterval {
		c.mu.Unlock()
		logging.From(ctx).Debug("notification throttled",
			"item", item.Description,
			"since_last", now.Sub(c.lastSent).String(),
		)
		return nil
	}
	c.lastSent = now
	c.mu.Unlock()

	line := color.New(color.FgYellow, color.Bold).Sprint("▶ Action item for you: ") +
		item.Description
	if item.DueDate != "" {
		line += color.New(color.Faint).Sprintf(" (due %s)", item.DueDate)
	}

	if _, err := fmt.Fprintln(c.w, line); err != nil {
		logging.From(ctx).Warn("failed to write notification", "error", err)
	}
	return nil
}

// Discard is a no-op sink used when live notifications are disabled
type Discard struct{}

var _ interfaces.Notifier = Discard{}

// NotifyActionItem drops the notification
func (Discard) NotifyActionItem(ctx context.Context, item *model.ActionItem) error {
	return nil
}
