package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	for _, path := range [][]string{
		{"start"},
		{"run"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"seed"},
		{"events", "client-deleted"},
		{"worker", "run"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.NotEqual(t, root, cmd, path)
	}
}

func TestClientDeletedRequiresPositiveID(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing flag", args: []string{"events", "client-deleted"}},
		{name: "zero", args: []string{"events", "client-deleted", "--client-id", "0"}},
		{name: "negative", args: []string{"events", "client-deleted", "--client-id=-3"}},
		{name: "not a number", args: []string{"events", "client-deleted", "--client-id", "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCommand()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)

			assert.Error(t, root.ExecuteContext(context.Background()))
			assert.NotContains(t, out.String(), "published")
		})
	}
}
