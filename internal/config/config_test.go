// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	_ "github.com/blinklabs-io/trustspell/database/plugin/blob"
	_ "github.com/blinklabs-io/trustspell/database/plugin/metadata"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "trustspell.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return tmpFile
}

func TestLoad_CompareFullStruct(t *testing.T) {
	tmpFile := writeConfig(t, `
appId: "lending-game"
sessionId: "player-7"
network: "signet"
databasePath: "/var/lib/trustspell"
blobPlugin: "pebble"
bindAddr: "127.0.0.1"
apiPort: 9000
metricsPort: 9001
shutdownTimeout: "10s"
tracing: true
prover:
  mode: "exec"
  command: ["charms", "spell", "prove"]
  timeout: "2m"
wallet:
  url: "http://127.0.0.1:3000"
  propagationDelay: "500ms"
fee:
  feeRate: 3
  change: true
game:
  totalRounds: 5
  payoffs:
    r: 3
    s: 0
    t: 5
    p: 1
`)
	expected := DefaultConfig()
	expected.AppID = "lending-game"
	expected.SessionID = "player-7"
	expected.Network = "signet"
	expected.DatabasePath = "/var/lib/trustspell"
	expected.BlobPlugin = "pebble"
	expected.BindAddr = "127.0.0.1"
	expected.ApiPort = 9000
	expected.MetricsPort = 9001
	expected.ShutdownTimeout = "10s"
	expected.Tracing = true
	expected.Prover = ProverConfig{
		Mode:    "exec",
		Command: []string{"charms", "spell", "prove"},
		Timeout: "2m",
	}
	expected.Wallet.Url = "http://127.0.0.1:3000"
	expected.Wallet.PropagationDelay = "500ms"
	expected.Fee.FeeRate = 3
	expected.Fee.Change = true
	expected.Game.TotalRounds = 5
	expected.Game.Payoffs.R = 3
	expected.Game.Payoffs.S = 0
	expected.Game.Payoffs.T = 5
	expected.Game.Payoffs.P = 1

	actual, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf(
			"Loaded config does not match expected.\nActual: %+v\nExpected: %+v",
			actual,
			expected,
		)
	}
	if GetConfig() != actual {
		t.Errorf("expected GetConfig to return the loaded config")
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	tmpFile := writeConfig(t, `
network: "signet"
apiPort: 9000
`)
	t.Setenv("TRUSTSPELL_NETWORK", "regtest")
	t.Setenv("TRUSTSPELL_PROVER_URL", "http://prover:17784")
	t.Setenv("TRUSTSPELL_DATABASE_BLOB_PLUGIN", "pebble")
	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Network != "regtest" {
		t.Errorf("expected network regtest, got %s", cfg.Network)
	}
	if cfg.ApiPort != 9000 {
		t.Errorf("expected api port 9000, got %d", cfg.ApiPort)
	}
	if cfg.Prover.Url != "http://prover:17784" {
		t.Errorf("unexpected prover url: %s", cfg.Prover.Url)
	}
	if cfg.BlobPlugin != "pebble" {
		t.Errorf("unexpected blob plugin: %s", cfg.BlobPlugin)
	}
}

func TestLoad_WithoutConfigFile_UsesDefaults(t *testing.T) {
	// Keep the lookup away from any real config in the user's home
	t.Setenv("HOME", t.TempDir())
	if _, err := os.Stat("/etc/trustspell/trustspell.yaml"); err == nil {
		t.Skip("system config file present")
	}
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf(
			"config mismatch without file:\nExpected: %+v\nGot:      %+v",
			DefaultConfig(),
			cfg,
		)
	}
}

func TestLoad_UserConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".trustspell")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(
		filepath.Join(dir, "trustspell.yaml"),
		[]byte("sessionId: from-home\n"),
		0o600,
	); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.SessionID != "from-home" {
		t.Errorf("expected session from-home, got %s", cfg.SessionID)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad duration":   "shutdownTimeout: soon\n",
		"bad payoffs":    "game:\n  payoffs: {r: 1, s: 2, t: 3, p: 4}\n",
		"zero rounds":    "game:\n  totalRounds: 0\n",
		"bad port":       "apiPort: 70000\n",
		"malformed yaml": "network: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, content)); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no config in an empty context")
	}
	cfg := DefaultConfig()
	ctx := WithContext(context.Background(), cfg)
	if FromContext(ctx) != cfg {
		t.Errorf("expected the stored config")
	}
}

func TestListPlugins(t *testing.T) {
	cfg := DefaultConfig()
	var buf bytes.Buffer
	if err := cfg.ListPlugins(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	cfg.BlobPlugin = "list"
	if err := cfg.ListPlugins(&buf); err != ErrPluginListRequested {
		t.Fatalf("expected ErrPluginListRequested, got %v", err)
	}
	out := buf.String()
	for _, want := range []string{"blob plugins", "badger", "pebble"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}
