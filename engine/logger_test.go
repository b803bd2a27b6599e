package engine

import (
	"testing"

	"go.uber.org/zap"
)

func TestSetLogger_Nil(t *testing.T) {
	defer SetLogger(zap.NewNop())

	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger() returned nil after SetLogger(nil)")
	}
	Logger().Debug("still usable")
}
