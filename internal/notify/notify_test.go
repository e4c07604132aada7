package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanNotifier chan Event

func (c chanNotifier) Notify(_ context.Context, e Event) { c <- e }

func TestDispatchSurvivesCallerCancel(t *testing.T) {
	ch := make(chanNotifier, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Dispatch(ctx, ch, Event{Kind: KindAssetFailed, AssetID: "a1"})

	select {
	case e := <-ch:
		assert.Equal(t, "a1", e.AssetID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatchNilNotifier(t *testing.T) {
	assert.NotPanics(t, func() { Dispatch(context.Background(), nil, Event{}) })
}

func TestLogNotifierWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	n.Notify(context.Background(), Event{Kind: KindAssetUploaded, OwnerID: "u1", AssetID: "a1"})

	require.NotZero(t, buf.Len())
	assert.Contains(t, buf.String(), `"event":"asset.uploaded"`)
	assert.Contains(t, buf.String(), `"asset_id":"a1"`)
}
