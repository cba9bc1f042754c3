package testlog

import (
	"testing"

	"github.com/danmuck/bundlebid/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	l := logging.Logger()
	l.Info().Msgf("test=%s", t.Name())
}
