package app

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args []string
		want Command
	}{
		{nil, CommandServe},
		{[]string{"serve"}, CommandServe},
		{[]string{"worker"}, CommandWorker},
		{[]string{"migrate", "down"}, CommandMigrate},
		{[]string{"seed"}, CommandSeed},
		{[]string{"healthcheck"}, CommandHealthcheck},
		{[]string{"unknown"}, CommandServe},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.args); got != tt.want {
			t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestParseSeedArgs(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{nil, "seed.yaml", false},
		{[]string{"demo.yaml"}, "demo.yaml", false},
		{[]string{"a.yaml", "b.yaml"}, "", true},
	}
	for _, tt := range tests {
		got, err := ParseSeedArgs(tt.args, "seed.yaml")
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeedArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSeedArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestParseMigrateArgs(t *testing.T) {
	tests := []struct {
		args      []string
		wantDir   MigrateDirection
		wantSteps int
		wantErr   bool
	}{
		{nil, MigrateUp, 0, false},
		{[]string{"up"}, MigrateUp, 0, false},
		{[]string{"down"}, MigrateDown, 1, false},
		{[]string{"down", "3"}, MigrateDown, 3, false},
		{[]string{"down", "0"}, "", 0, true},
		{[]string{"down", "x"}, "", 0, true},
		{[]string{"sideways"}, "", 0, true},
	}
	for _, tt := range tests {
		dir, steps, err := ParseMigrateArgs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMigrateArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if dir != tt.wantDir || steps != tt.wantSteps {
			t.Errorf("ParseMigrateArgs(%v) = (%q, %d), want (%q, %d)", tt.args, dir, steps, tt.wantDir, tt.wantSteps)
		}
	}
}
