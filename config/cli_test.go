package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvertedBool(t *testing.T) {
	fs := flag.NewFlagSet("cli-test", flag.PanicOnError)
	var pen, pencil, crayon, marker, paintbrush bool
	InvertedBoolFlag(fs, &pen, "pen", true, "")
	InvertedBoolFlag(fs, &pencil, "pencil", true, "")
	InvertedBoolFlag(fs, &crayon, "crayon", false, "")
	InvertedBoolFlag(fs, &marker, "marker", true, "")
	InvertedBoolFlag(fs, &paintbrush, "paintbrush", false, "")
	err := fs.Parse([]string{
		"-no-pen",
		"-no-pencil=true",
		"-no-crayon=false",
	})
	require.NoError(t, err)
	require.Equal(t, pen, false)
	require.Equal(t, pencil, false)
	require.Equal(t, crayon, true)
	require.Equal(t, marker, true)
	require.Equal(t, paintbrush, false)
}

func TestLoadCliRequiresTelegramCredentials(t *testing.T) {
	fs := flag.NewFlagSet("mirrobot", flag.ContinueOnError)
	_, err := LoadCli(fs, []string{"-owner-id=42"})
	require.Error(t, err)
}

func TestLoadCliPopulatesHostsAndDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mirrobot", flag.ContinueOnError)
	cli, err := LoadCli(fs, []string{
		"-owner-id=42",
		"-telegram-api-id=1",
		"-telegram-api-hash=hash",
		"-telegram-bot-token=token",
		"-no-drive",
		"-auth-ids=1,2,3",
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), cli.OwnerID)
	require.Equal(t, []int64{1, 2, 3}, cli.AuthIDs)
	require.False(t, cli.Hosts.Drive.Enabled)
	require.True(t, cli.Hosts.Seedbox.Enabled)
	require.Equal(t, DefaultDownloadTimeout, cli.DownloadTimeout)
}
