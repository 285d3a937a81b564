package app

import (
	"testing"
)

func TestParseCommand_DefaultsToWorker(t *testing.T) {
	cmd := ParseCommand([]string{})
	if cmd != CommandWorker {
		t.Errorf("ParseCommand([]) = %q, want %q", cmd, CommandWorker)
	}
}

func TestParseCommand_AllCommands(t *testing.T) {
	tests := []struct {
		arg  string
		want Command
	}{
		{"validate", CommandValidate},
		{"track", CommandTrack},
		{"prune", CommandPrune},
		{"worker", CommandWorker},
		{"serve", CommandServe},
		{"migrate", CommandMigrate},
		{"convert", CommandConvert},
		{"status", CommandStatus},
		{"healthcheck", CommandHealthcheck},
	}

	for _, tt := range tests {
		if got := ParseCommand([]string{tt.arg}); got != tt.want {
			t.Errorf("ParseCommand([%s]) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestParseCommand_UnknownDefaultsToWorker(t *testing.T) {
	cmd := ParseCommand([]string{"unknown"})
	if cmd != CommandWorker {
		t.Errorf("ParseCommand([unknown]) = %q, want %q", cmd, CommandWorker)
	}
}

func TestParseCommand_IgnoresExtraArgs(t *testing.T) {
	cmd := ParseCommand([]string{"track", "--flag", "value"})
	if cmd != CommandTrack {
		t.Errorf("ParseCommand([track --flag value]) = %q, want %q", cmd, CommandTrack)
	}
}

func TestParseConvertArgs_SetPairsThenToolArgs(t *testing.T) {
	pairs, rest, err := ParseConvertArgs([]string{
		"--set", "path=/tmp/out.yaml",
		"--set=target=clash",
		"-g", "--artifact", "clash",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(pairs) != 2 {
		t.Fatalf("len(pairs) = %d, want 2", len(pairs))
	}
	if pairs[0].Key != "path" || pairs[0].Value != "/tmp/out.yaml" {
		t.Errorf("pairs[0] = %+v", pairs[0])
	}
	if pairs[1].Key != "target" || pairs[1].Value != "clash" {
		t.Errorf("pairs[1] = %+v", pairs[1])
	}

	want := []string{"-g", "--artifact", "clash"}
	if len(rest) != len(want) {
		t.Fatalf("rest = %v, want %v", rest, want)
	}
	for i := range want {
		if rest[i] != want[i] {
			t.Errorf("rest[%d] = %q, want %q", i, rest[i], want[i])
		}
	}
}

func TestParseConvertArgs_DoubleDashStopsParsing(t *testing.T) {
	pairs, rest, err := ParseConvertArgs([]string{"--set", "a=1", "--", "--set", "b=2"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pairs) != 1 {
		t.Errorf("len(pairs) = %d, want 1", len(pairs))
	}
	if len(rest) != 2 || rest[0] != "--set" || rest[1] != "b=2" {
		t.Errorf("rest = %v, want [--set b=2]", rest)
	}
}

func TestParseConvertArgs_ValueMayContainEquals(t *testing.T) {
	pairs, _, err := ParseConvertArgs([]string{"--set", "url=https://example.com/?a=b"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pairs[0].Value != "https://example.com/?a=b" {
		t.Errorf("Value = %q", pairs[0].Value)
	}
}

func TestParseConvertArgs_Invalid(t *testing.T) {
	cases := [][]string{
		{"--set"},
		{"--set", "novalue"},
		{"--set==x"},
	}
	for _, args := range cases {
		if _, _, err := ParseConvertArgs(args); err == nil {
			t.Errorf("ParseConvertArgs(%v) should return error", args)
		}
	}
}

func TestParseConvertArgs_Empty(t *testing.T) {
	pairs, rest, err := ParseConvertArgs(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pairs) != 0 || len(rest) != 0 {
		t.Errorf("pairs=%v rest=%v, want both empty", pairs, rest)
	}
}
