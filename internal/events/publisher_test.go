package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewPublisher_EmptyURLDisablesEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	pub, err := NewPublisher("", zap.New(core))
	require.NoError(t, err)

	assert.IsType(t, NopPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), SubjectInterestCreated, InterestEvent{CropID: "c1"}))
	pub.Close()
	assert.Equal(t, 1, logs.FilterMessage("NATS_URL not set, interest events disabled").Len())
}

func TestNewPublisher_UnreachableServer(t *testing.T) {
	pub, err := NewPublisher("nats://127.0.0.1:1", zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, pub)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}
