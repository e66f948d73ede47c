package oxlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewZapLoggerValidLevel(t *testing.T) {
	l, err := NewZapLogger("debug")
	require.NoError(t, err)
	l.Debug("hello %s", "world")
	require.NoError(t, l.Sync())
}

func TestNewZapLoggerInvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := NewZapLogger("not-a-level")
	require.NoError(t, err)
	l.Info("still works")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded %d", 1)
}
