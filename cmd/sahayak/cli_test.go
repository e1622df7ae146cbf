package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandStructure(t *testing.T) {
	root := buildRootCommand()

	want := []string{"serve", "chat", "memory", "config", "version"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRootWithoutSubcommandFails(t *testing.T) {
	root := buildRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(nil)

	if err := root.Execute(); err == nil {
		t.Fatal("expected error when no subcommand given")
	}
	if !strings.Contains(buf.String(), "Usage:") {
		t.Errorf("help not printed:\n%s", buf.String())
	}
}

func TestChatCommandFlags(t *testing.T) {
	root := buildRootCommand()
	chat, _, err := root.Find([]string{"chat"})
	if err != nil {
		t.Fatalf("find chat: %v", err)
	}

	if f := chat.Flags().Lookup("tag"); f == nil || f.DefValue != "intake" {
		t.Errorf("tag flag default = %#v", f)
	}
	if f := chat.Flags().Lookup("user"); f == nil || f.DefValue != "local" {
		t.Errorf("user flag default = %#v", f)
	}
}

func TestMask(t *testing.T) {
	if got := mask(""); got != "" {
		t.Errorf("empty mask = %q", got)
	}
	if got := mask("short"); got != "****" {
		t.Errorf("short mask = %q", got)
	}
	if got := mask("nvapi-1234567890abcd"); got != "nvap...abcd" {
		t.Errorf("long mask = %q", got)
	}
}
