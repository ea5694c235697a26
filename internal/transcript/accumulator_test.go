package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulator_JoinsInArrivalOrder(t *testing.T) {
	cases := []struct {
		name  string
		parts []string
		want  string
	}{
		{"single final", []string{"hello"}, "hello"},
		{"interims then final", []string{"what plans", "do you", "offer?"}, "what plans do you offer?"},
		{"empty fragments kept", []string{"", "bye"}, " bye"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc := New()
			for _, p := range tc.parts {
				acc.Add(p)
			}
			assert.Equal(t, tc.want, acc.FullText())
			assert.Equal(t, len(tc.parts), acc.Len())

			acc.Reset()
			assert.Equal(t, 0, acc.Len())
			assert.Equal(t, "", acc.FullText())
		})
	}
}

func TestAccumulator_ReusableAfterReset(t *testing.T) {
	acc := New()
	acc.Add("first")
	acc.Reset()
	acc.Add("second")
	assert.Equal(t, "second", acc.FullText())
}
