package ulan

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestCompilerOptionsLogger(t *testing.T) {
	var opts CompilerOptions
	require.Same(t, opts.logger(), opts.logger())
	require.Same(t, discardLogger, DefaultCompilerOptions.logger())

	logger, _ := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts.Logger = logger
	require.Same(t, logger, opts.logger())
	require.NotSame(t, discardLogger, opts.logger())
}
