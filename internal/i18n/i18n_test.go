package i18n

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Lang
		ok   bool
	}{
		{"en", English, true},
		{"DE", German, true},
		{"de-AT", German, true},
		{"de_CH", German, true},
		{" en ", English, true},
		{"fr", Lang("fr"), false},
		{"", Lang(""), false},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.in)
		require.Equal(t, tc.ok, ok, "Parse(%q)", tc.in)
		if ok {
			require.Equal(t, tc.want, got)
		}
	}
}

func TestBundlesCoverSameKeys(t *testing.T) {
	t.Parallel()

	en := T(English)
	de := T(German)
	require.Equal(t, len(en), len(de))
	for key := range en {
		require.Contains(t, de, key)
	}
}

func TestUnknownLanguageFallsBackToEnglish(t *testing.T) {
	t.Parallel()

	require.Equal(t, T(English), T(Lang("fr")))
	require.Equal(t, "Log in", Lookup(Lang("fr"), "auth.login"))
}

func TestLookup(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Anmelden", Lookup(German, "auth.login"))
	require.Equal(t, "Log in", Lookup(English, "auth.login"))
	require.Equal(t, "no.such.key", Lookup(German, "no.such.key"))
}
