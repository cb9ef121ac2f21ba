package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/service/notify"
)

func TestConsoleWritesNotification(t *testing.T) {
	var buf bytes.Buffer
	sink := notify.NewConsole(notify.WithWriter(&buf), notify.WithMinInterval(0))

	item := &model.ActionItem{Description: "review the rollout doc", DueDate: "2026-09-05"}
	gt.NoError(t, sink.NotifyActionItem(context.Background(), item)).Required()

	out := buf.String()
	gt.Value(t, strings.Contains(out, "Action item for you")).Equal(true)
	gt.Value(t, strings.Contains(out, "review the rollout doc")).Equal(true)
	gt.Value(t, strings.Contains(out, "due 2026-09-05")).Equal(true)
}

func TestConsoleThrottlesBursts(t *testing.T) {
	var buf bytes.Buffer
	sink := notify.NewConsole(notify.WithWriter(&buf), notify.WithMinInterval(time.Hour))

	ctx := context.Background()
	gt.NoError(t, sink.NotifyActionItem(ctx, &model.ActionItem{Description: "first"})).Required()
	gt.NoError(t, sink.NotifyActionItem(ctx, &model.ActionItem{Description: "second"})).Required()
	gt.NoError(t, sink.NotifyActionItem(ctx, &model.ActionItem{Description: "third"})).Required()

	out := buf.String()
	gt.Value(t, strings.Contains(out, "first")).Equal(true)
	gt.Value(t, strings.Contains(out, "second")).Equal(false)
	gt.Value(t, strings.Contains(out, "third")).Equal(false)
	gt.Value(t, strings.Count(out, "\n")).Equal(1)
}

func TestDiscardIsSilent(t *testing.T) {
	gt.NoError(t, notify.Discard{}.NotifyActionItem(context.Background(),
		&model.ActionItem{Description: "dropped"})).Required()
}
