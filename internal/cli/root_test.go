package cli

import (
	"io"
	"strings"
	"testing"

	"github.com/matzehuels/postcard/pkg/config"
)

// newTestCLI returns a CLI whose configuration is config.Default with a
// temporary cache directory, adjusted by mutate.
func newTestCLI(t *testing.T, mutate func(*config.Config)) *CLI {
	t.Helper()
	c := New(io.Discard, LogInfo)
	cacheDir := t.TempDir()
	c.loadConfig = func(string) (config.Config, error) {
		cfg := config.Default()
		cfg.Cache.Dir = cacheDir
		if mutate != nil {
			mutate(&cfg)
		}
		return cfg, nil
	}
	return c
}

func TestRootCommandSubcommands(t *testing.T) {
	root := newTestCLI(t, nil).RootCommand()

	want := []string{"compose", "caption", "poetry", "serve", "fonts", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCommandFlags(t *testing.T) {
	root := newTestCLI(t, nil).RootCommand()

	for _, name := range []string{"verbose", "config"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}
}

func TestRootCommandConfigFlag(t *testing.T) {
	c := newTestCLI(t, nil)
	var gotPath string
	c.loadConfig = func(path string) (config.Config, error) {
		gotPath = path
		return config.Default(), nil
	}

	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"--config", "custom.toml", "cache", "path"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotPath != "custom.toml" {
		t.Errorf("config path = %q, want custom.toml", gotPath)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newTestCLI(t, nil).RootCommand()
	var out strings.Builder
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Len() == 0 {
		t.Error("--version printed nothing")
	}
}

func TestConfigIsLoadedOnce(t *testing.T) {
	c := newTestCLI(t, nil)
	calls := 0
	c.loadConfig = func(string) (config.Config, error) {
		calls++
		return config.Default(), nil
	}
	for range 3 {
		if _, err := c.Config(); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("loadConfig called %d times, want 1", calls)
	}
}

func TestCompletionCommand(t *testing.T) {
	root := newTestCLI(t, nil).RootCommand()
	var out strings.Builder
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash"})
	if err := root.Execute(); err != nil {
		t.Fatalf("completion bash: %v", err)
	}
	if !strings.Contains(out.String(), "postcard") {
		t.Error("bash completion should mention the program name")
	}

	root.SetArgs([]string{"completion", "tcsh"})
	if err := root.Execute(); err == nil {
		t.Error("unsupported shell should fail")
	}
}
