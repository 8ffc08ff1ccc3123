package logging_test

import (
	"testing"

	"github.com/scribehq/scribe/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestNoopLevelReturnsDiscardingLogger(t *testing.T) {
	l := logging.New("NOOP")
	assert.NotPanics(t, func() {
		l.Debugf("x")
		l.Infof("x")
		l.Errorf("x")
	})
	assert.NoError(t, l.Sync())
}

func TestOnExitFlushesMostRecentlyBuiltLogger(t *testing.T) {
	logging.New("info")
	assert.NotPanics(t, func() { logging.OnExit() })
}

func TestOnExitWithNoPriorLoggerIsSafe(t *testing.T) {
	// NOOP is the package default before any New call in this process;
	// OnExit must tolerate that without a built zap logger behind it.
	assert.NotPanics(t, func() { logging.OnExit() })
}
