package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	require.Equal(t, logrus.DebugLevel, Log.GetLevel())

	require.NoError(t, SetLevel("WARN"))
	require.Equal(t, logrus.WarnLevel, Log.GetLevel())

	require.Error(t, SetLevel("verbose"))

	require.NoError(t, SetLevel("info"))
}
