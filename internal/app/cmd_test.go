package app

import "testing"

func TestParseCommand_DefaultsToRun(t *testing.T) {
	cmd, ok := ParseCommand(nil)
	if !ok || cmd != CommandRun {
		t.Errorf("ParseCommand(nil) = (%q, %v), want (%q, true)", cmd, ok, CommandRun)
	}
}

func TestParseCommand_KnownCommands(t *testing.T) {
	tests := []struct {
		arg  string
		want Command
	}{
		{"run", CommandRun},
		{"worker", CommandWorker},
		{"migrate", CommandMigrate},
		{"cleanup", CommandCleanup},
		{"preview", CommandPreview},
		{"healthcheck", CommandHealthcheck},
	}
	for _, tt := range tests {
		cmd, ok := ParseCommand([]string{tt.arg})
		if !ok || cmd != tt.want {
			t.Errorf("ParseCommand(%q) = (%q, %v), want (%q, true)", tt.arg, cmd, ok, tt.want)
		}
	}
}

func TestParseCommand_Unknown(t *testing.T) {
	if _, ok := ParseCommand([]string{"serve"}); ok {
		t.Error("未知のコマンドはfalseを返すべき")
	}
}

func TestParseCommand_IgnoresExtraArgs(t *testing.T) {
	cmd, ok := ParseCommand([]string{"worker", "--verbose"})
	if !ok || cmd != CommandWorker {
		t.Errorf("ParseCommand = (%q, %v), want (%q, true)", cmd, ok, CommandWorker)
	}
}
