package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree() *cobra.Command {
	root := &cobra.Command{Use: "kitguide", Short: "root"}
	AddHelpJSONFlag(root)

	guide := &cobra.Command{Use: "guide", Short: "guide", Aliases: []string{"g"}, Run: func(*cobra.Command, []string) {}}
	guide.Flags().StringP("image", "i", "", "Photo of the parts")
	guide.Flags().String("weights", "best.pt", "Detection weights")
	_ = guide.MarkFlagRequired("image")

	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}

	root.AddCommand(guide, hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(newTestTree())

	assert.Equal(t, "kitguide", schema.Name)
	require.Len(t, schema.Subcommands, 1)

	guide := schema.Subcommands[0]
	assert.Equal(t, "guide", guide.Name)
	require.Len(t, guide.Flags, 2)

	flags := map[string]FlagSchema{}
	for _, f := range guide.Flags {
		flags[f.Name] = f
	}
	assert.True(t, flags["image"].Required)
	assert.Equal(t, "i", flags["image"].Shorthand)
	assert.False(t, flags["weights"].Required)
	assert.Equal(t, "best.pt", flags["weights"].Default)
	assert.Equal(t, "string", flags["weights"].Type)
}

func TestFindTargetCommand(t *testing.T) {
	root := newTestTree()

	assert.Equal(t, "kitguide", findTargetCommand(root, nil).Name())
	assert.Equal(t, "guide", findTargetCommand(root, []string{"guide"}).Name())
	assert.Equal(t, "guide", findTargetCommand(root, []string{"g"}).Name())
	assert.Equal(t, "kitguide", findTargetCommand(root, []string{"unknown"}).Name())
}
