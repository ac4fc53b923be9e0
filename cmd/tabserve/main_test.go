package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]string
		wantErr bool
	}{
		{name: "missing", want: map[string]string{}},
		{
			name:    "plain",
			content: "# comment\nHTTP=:9090\n\nLOG_LEVEL = debug\nnoequals\n",
			want:    map[string]string{"HTTP": ":9090", "LOG_LEVEL": "debug"},
		},
		{
			name:    "quoted",
			content: `LLM_API_KEY="a b\tc"` + "\n",
			want:    map[string]string{"LLM_API_KEY": "a b\tc"},
		},
		{name: "single quotes", content: "A='x'\n", wantErr: true},
		{name: "unbalanced", content: "A='x\n", wantErr: true},
		{name: "bad quote", content: "A=\"x\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != "" {
				if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(tt.content), 0o600); err != nil {
					t.Fatal(err)
				}
			}
			got, err := loadDotEnv(dir)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("loadDotEnv() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("loadDotEnv() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestReplaceAttr(t *testing.T) {
	fn := replaceAttr(true)
	tests := []struct {
		name string
		attr slog.Attr
		keep bool
	}{
		{"time under systemd", slog.Time(slog.TimeKey, time.Now()), false},
		{"localhost ip", slog.String("ip", "127.0.0.1"), false},
		{"remote ip", slog.String("ip", "203.0.113.9"), true},
		{"empty string", slog.String("cc", ""), false},
		{"zero int", slog.Int("rows", 0), false},
		{"non zero int", slog.Int("rows", 3), true},
		{"false", slog.Bool("dirty", false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fn(nil, tt.attr)
			if kept := got.Key != ""; kept != tt.keep {
				t.Errorf("kept = %v, want %v", kept, tt.keep)
			}
		})
	}
}
