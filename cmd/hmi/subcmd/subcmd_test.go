package subcmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/cabinet-hmi/internal/state"
)

func TestParse(t *testing.T) {
	t.Parallel()
	nop := func(context.Context, *state.Config) error { return nil }
	mods := []Mod{{Name: "run", Main: nop}, {Name: "cli", Main: nop}}

	type Case struct {
		input     string
		expect    string
		expectErr string
	}
	cases := []Case{
		{"run", "run", ""},
		{"cli", "cli", ""},
		{"", "", "empty command, valid: run, cli"},
		{"vmc", "", "unknown command='vmc'"},
	}
	for _, c := range cases {
		m, err := Parse(c.input, mods)
		if c.expectErr != "" {
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.expectErr)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, c.expect, m.Name)
	}
}
