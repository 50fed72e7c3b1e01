package export

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Command
		wantErr bool
	}{
		{name: "start import", input: "startImport", want: CommandStartImport},
		{name: "fetch batch", input: "fetchBatch", want: CommandFetchBatch},
		{name: "finish", input: "finish", want: CommandFinish},
		{name: "cancel", input: "cancel", want: CommandCancel},
		{name: "progress", input: "progress", want: CommandProgress},
		{name: "unknown", input: "reload", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "wrong case", input: "STARTIMPORT", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCommand) {
					t.Fatalf("ParseCommand(%q) error = %v, want ErrUnknownCommand", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	for _, cmd := range []Command{CommandStartImport, CommandFetchBatch, CommandFinish, CommandCancel, CommandProgress} {
		name := cmd.String()
		if name == "unknown" || name == "" {
			t.Errorf("Command(%d).String() = %q", cmd, name)
		}
		parsed, err := ParseCommand(name)
		if err != nil || parsed != cmd {
			t.Errorf("ParseCommand(%q) = (%v, %v), want %v", name, parsed, err, cmd)
		}
	}
}
