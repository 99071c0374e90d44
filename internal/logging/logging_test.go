package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestApplyOutputs_WritesConsoleAndFile(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "logs", "rumi.log")
	var console bytes.Buffer

	SetLevel("info")
	closer := applyOutputs(config.LoggingConfig{File: path, MaxSizeMB: 1}, &console)
	log.Info().Str("order", "RUMI-1").Msg("Order placed")
	log.Debug().Msg("hidden")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if !strings.Contains(console.String(), "Order placed") {
		t.Fatalf("console output missing message: %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "order=RUMI-1") {
		t.Fatalf("log file missing field: %q", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Fatal("debug message written at info level")
	}
}

func TestFilePathForDB(t *testing.T) {
	if got := FilePathForDB(""); got != DefaultLogFilePath {
		t.Fatalf("FilePathForDB(\"\") = %q", got)
	}
	got := FilePathForDB(filepath.Join("data", "rumi.db"))
	if filepath.Base(got) != DefaultLogFilePath || filepath.Base(filepath.Dir(got)) != "data" {
		t.Fatalf("unexpected path %q", got)
	}
}
