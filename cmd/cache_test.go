package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCommands(t *testing.T) {
	newTestProject(t, "")

	cmd, _, _ := newTestCommand()
	require.NoError(t, runBuild(cmd, nil))

	viper.Reset()
	cmd, stdout, _ := newTestCommand()
	require.NoError(t, runCacheStats(cmd, nil))
	assert.Contains(t, stdout.String(), "Entries:")
	assert.NotContains(t, stdout.String(), "Entries: 0\n")

	viper.Reset()
	cmd, stdout, _ = newTestCommand()
	require.NoError(t, runCacheClear(cmd, nil))
	assert.Contains(t, stdout.String(), "Cache cleared")

	viper.Reset()
	cmd, stdout, _ = newTestCommand()
	require.NoError(t, runCacheStats(cmd, nil))
	assert.Contains(t, stdout.String(), "Entries: 0\n")
}
