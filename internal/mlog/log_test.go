package mlog

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetDefaultAndL_RoundTrips(t *testing.T) {
	original := L()
	defer SetDefault(original)

	custom := slog.New(slog.NewTextHandler(nil, nil))
	SetDefault(custom)
	require.Same(t, custom, L())
}

func TestNewJSON_ReturnsDistinctLogger(t *testing.T) {
	a := NewJSON(slog.LevelDebug)
	b := NewJSON(slog.LevelError)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotSame(t, a, b)
}
