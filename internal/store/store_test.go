package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldKeyRoundTrip(t *testing.T) {
	t.Parallel()

	section, lesson, err := SplitField(ProgressField("lesson1"))
	require.NoError(t, err)
	require.Equal(t, SectionProgress, section)
	require.Equal(t, "lesson1", lesson)

	section, lesson, err = SplitField(CompletedField("lesson2"))
	require.NoError(t, err)
	require.Equal(t, SectionCompleted, section)
	require.Equal(t, "lesson2", lesson)
}

func TestSplitFieldRejectsMalformedKeys(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"", "progress", "progress.", "progress.a.b", "scores.lesson1"} {
		_, _, err := SplitField(key)
		require.Error(t, err, "key %q", key)
	}
}
