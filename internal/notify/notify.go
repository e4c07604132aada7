// Package notify delivers asset lifecycle events to an out-of-band channel
// such as email. Delivery is fire-and-forget and never feeds back into the
// state machines.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Event struct {
	Kind    string
	OwnerID string
	AssetID string
	Reason  string
	At      time.Time
}

const (
	KindAssetUploaded = "asset.uploaded"
	KindAssetFailed   = "asset.failed"
)

type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// LogNotifier records events in the service log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) {
	n.log.Info().
		Str("event", event.Kind).
		Str("owner_id", event.OwnerID).
		Str("asset_id", event.AssetID).
		Str("reason", event.Reason).
		Time("at", event.At).
		Msg("asset notification")
}

// Dispatch runs the notifier on its own goroutine, detached from the
// caller's cancellation.
func Dispatch(ctx context.Context, n Notifier, event Event) {
	if n == nil {
		return
	}
	go n.Notify(context.WithoutCancel(ctx), event)
}
