package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootRegistersPhaseCommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()

	want := []string{
		"discover", "fetch", "resume", "verify",
		"assemble", "complete", "enhanced-complete",
	}
	got := map[string]bool{}
	for _, sub := range root.Commands() {
		got[sub.Name()] = true
	}
	for _, name := range want {
		require.Truef(t, got[name], "missing subcommand %s", name)
	}
}

func TestRootPersistentFlags(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, name := range []string{"config", "output-dir", "max-documents", "tokenizer"} {
		require.NotNilf(t, root.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
}

func TestCompositeCommandsCarrySkipFlags(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, sub := range root.Commands() {
		if sub.Name() != "complete" && sub.Name() != "enhanced-complete" {
			continue
		}
		require.NotNil(t, sub.Flags().Lookup("skip-download"))
		require.NotNil(t, sub.Flags().Lookup("skip-datasets"))
	}
}
