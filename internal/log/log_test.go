package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "debug",
		"warn":  "warn",
		"error": "error",
		"":      "info",
		"loud":  "info",
	}
	for in, want := range tests {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestJSONLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	Logger = NewJSONLogger(&buf, "debug")
	l := WithComponent("ledger")
	l.Info().Str("asset", "ETH").Msg("applied")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["component"] != "ledger" || entry["asset"] != "ETH" || entry["message"] != "applied" {
		t.Errorf("entry = %v", entry)
	}
}

func TestInit_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletd.log")
	if err := Init("info", true, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Init("info", false, "")

	Engine.Info().Msg("hello")
	Engine.Debug().Msg("filtered")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Contains(data, []byte(`"component":"engine"`)) {
		t.Errorf("log file missing component: %s", data)
	}
	if bytes.Contains(data, []byte("filtered")) {
		t.Error("debug line written at info level")
	}
}
