package pyc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideDefaultsToTimestamp(t *testing.T) {
	t.Setenv(ReproducibleBuildEnv, "")
	require.Equal(t, ModeTimestamp, DecideFromEnv())
}

func TestDecideReproducibleBuild(t *testing.T) {
	t.Setenv(ReproducibleBuildEnv, "1")
	require.Equal(t, ModeCheckedHash, DecideFromEnv())
}

func TestDecideWithInjectedLookup(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		want Mode
	}{
		{"unset", map[string]string{}, ModeTimestamp},
		{"empty", map[string]string{ReproducibleBuildEnv: ""}, ModeTimestamp},
		{"epoch", map[string]string{ReproducibleBuildEnv: "1700000000"}, ModeCheckedHash},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lookup := func(key string) (string, bool) {
				v, ok := tc.env[key]
				return v, ok
			}
			require.Equal(t, tc.want, Decide(lookup))
		})
	}
	require.Equal(t, ModeTimestamp, Decide(nil))
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		raw     string
		want    Mode
		wantErr bool
	}{
		{"timestamp", ModeTimestamp, false},
		{"CHECKED_HASH", ModeCheckedHash, false},
		{" unchecked-hash ", ModeUncheckedHash, false},
		{"sha256", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseMode(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestModePredicates(t *testing.T) {
	require.False(t, ModeTimestamp.HashBased())
	require.True(t, ModeCheckedHash.HashBased())
	require.True(t, ModeCheckedHash.Checked())
	require.True(t, ModeUncheckedHash.HashBased())
	require.False(t, ModeUncheckedHash.Checked())
}
