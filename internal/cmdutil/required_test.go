package cmdutil

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTree() (*cobra.Command, *cobra.Command) {
	root := &cobra.Command{Use: "dockercloud"}
	child := &cobra.Command{Use: "ping", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)
	return root, child
}

func TestNoArgs(t *testing.T) {
	root, child := newTree()

	assert.NoError(t, NoArgs(child, nil))

	err := NoArgs(child, []string{"extra"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'dockercloud ping' accepts no arguments")

	err = NoArgs(root, []string{"bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: dockercloud bogus")
}

func TestExactArgs(t *testing.T) {
	_, child := newTree()

	tests := []struct {
		name    string
		n       int
		args    []string
		wantErr string
	}{
		{"exact one", 1, []string{"a"}, ""},
		{"missing", 1, nil, "requires 1 argument"},
		{"too many", 2, []string{"a", "b", "c"}, "requires 2 arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ExactArgs(tt.n)(child, tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
