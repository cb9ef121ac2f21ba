package interfaces

import (
	"context"

	"github.com/secmon-lab/pilot/pkg/domain/model"
)

// Notifier receives live action item events, fire-and-forget. Delivery
// failures are logged, never propagated into the pipeline.
type Notifier interface {
	NotifyActionItem(ctx context.Context, item *model.ActionItem) error
}

// Renderer turns the fully assembled session into the user-facing artifact.
// Invocation failure is reported, not fatal: the session still reaches Done.
type Renderer interface {
	Render(ctx context.Context, session *model.Session) (string, error)
}
