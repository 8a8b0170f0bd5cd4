// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package a2ectl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2e-project/a2e/internal/agentauth"
	"github.com/a2e-project/a2e/internal/registry"
	"github.com/a2e-project/a2e/internal/vault"
)

// writeTestConfig points every data file at a temp directory so commands
// do not touch the default ./data paths.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`auth:
  path: %s
vault:
  path: %s
registry:
  api_path: %s
  sql_path: %s
audit:
  dir: %s
`,
		filepath.Join(dir, "agents.json"),
		filepath.Join(dir, "vault.json"),
		filepath.Join(dir, "apis.json"),
		filepath.Join(dir, "sql.json"),
		filepath.Join(dir, "audit"),
	)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAgentLifecycle(t *testing.T) {
	t.Setenv("A2E_AUTH_SIGNING_KEY", "test-signing-key")
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath,
		"agent", "register", "crawler", "--name", "Crawler", "--allow-api", "weather")
	require.NoError(t, err)
	assert.Contains(t, out, "Agent crawler registered.")
	assert.Contains(t, out, "API key (shown once, store it now): a2e_")

	out, err = runCommand(t, "--config", cfgPath, "agent", "list")
	require.NoError(t, err)
	var agents []agentauth.Info
	require.NoError(t, json.Unmarshal([]byte(out), &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "crawler", agents[0].ID)
	// The key is stored hashed; listings never reveal it.
	assert.NotContains(t, out, "a2e_")

	out, err = runCommand(t, "--config", cfgPath, "token", "issue", "crawler")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = runCommand(t, "--config", cfgPath, "agent", "remove", "crawler")
	require.NoError(t, err)

	out, err = runCommand(t, "--config", cfgPath, "agent", "list")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestAgentCommandsRequireSigningKey(t *testing.T) {
	t.Setenv("A2E_AUTH_SIGNING_KEY", "")
	cfgPath := writeTestConfig(t)

	_, err := runCommand(t, "--config", cfgPath, "agent", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A2E_AUTH_SIGNING_KEY")
}

func TestCredentialLifecycle(t *testing.T) {
	t.Setenv("A2E_VAULT_MASTER_KEY", "test-master-key")
	cfgPath := writeTestConfig(t)

	_, err := runCommand(t, "--config", cfgPath,
		"credential", "store", "weather-key",
		"--kind", "api_key",
		"--description", "Weather API key",
		"--data", "value=s3cret",
		"--metadata", "header=X-Api-Key")
	require.NoError(t, err)

	out, err := runCommand(t, "--config", cfgPath, "credential", "list")
	require.NoError(t, err)
	var infos []vault.Info
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "weather-key", infos[0].ID)
	// Legacy underscore spellings normalize to the hyphenated kind.
	assert.Equal(t, vault.KindAPIKey, infos[0].Kind)
	assert.NotContains(t, out, "s3cret")

	_, err = runCommand(t, "--config", cfgPath, "credential", "delete", "weather-key")
	require.NoError(t, err)
}

func TestSQLImport(t *testing.T) {
	cfgPath := writeTestConfig(t)

	seed := `queries:
  - id: daily-signups
    sql: SELECT count(*) FROM users WHERE created_at > now() - interval '1 day'
    description: Daily user signups
    database: analytics
  - id: top-products
    sql: SELECT name FROM products ORDER BY sales DESC LIMIT 10
    database: analytics
    category: reporting
`
	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o600))

	out, err := runCommand(t, "--config", cfgPath, "sql", "import", seedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 SQL queries.")

	out, err = runCommand(t, "--config", cfgPath, "sql", "list", "--category", "reporting")
	require.NoError(t, err)
	var queries []registry.SQLQuery
	require.NoError(t, json.Unmarshal([]byte(out), &queries))
	require.Len(t, queries, 1)
	assert.Equal(t, "top-products", queries[0].ID)

	_, err = runCommand(t, "--config", cfgPath, "sql", "remove", "daily-signups")
	require.NoError(t, err)

	out, err = runCommand(t, "--config", cfgPath, "sql", "list")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &queries))
	require.Len(t, queries, 1)
}

func TestSQLImportRejectsEmptySeed(t *testing.T) {
	cfgPath := writeTestConfig(t)
	seedPath := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte("queries: []\n"), 0o600))

	_, err := runCommand(t, "--config", cfgPath, "sql", "import", seedPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no queries")
}
