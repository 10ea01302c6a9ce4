package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRawKey is a fixed base64url raw key.
const testRawKey = "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8"

// runCLI executes the root command and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// provisioned returns global args for a fresh store with default profile "main".
func provisioned(t *testing.T) []string {
	t.Helper()
	global := []string{"--db", filepath.Join(t.TempDir(), "vault.db"), "--pass-key", testRawKey}
	out, err := runCLI(t, append(global, "--profile", "main", "provision")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, `default profile "main"`)
	return global
}

func with(global []string, args ...string) []string {
	return append(append([]string{}, global...), args...)
}

func TestPutGet(t *testing.T) {
	global := provisioned(t)

	out, err := runCLI(t, with(global, "put", "cred", "alice", "s3cret", "-t", "color=red", "--tag", "~year=2021")...)
	require.NoError(t, err, out)
	assert.Equal(t, "Stored cred/alice\n", out)

	out, err = runCLI(t, with(global, "get", "cred", "alice")...)
	require.NoError(t, err, out)
	assert.Equal(t, "cred/alice = s3cret [color=red ~year=2021]\n", out)

	out, err = runCLI(t, with(global, "--format", "json", "get", "cred", "alice")...)
	require.NoError(t, err, out)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "s3cret", data["value"])
}

func TestPut_DuplicateAndReplace(t *testing.T) {
	global := provisioned(t)

	_, err := runCLI(t, with(global, "put", "cred", "alice", "one")...)
	require.NoError(t, err)

	out, err := runCLI(t, with(global, "put", "cred", "alice", "two")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, out, "Error [DUPLICATE]")

	_, err = runCLI(t, with(global, "put", "--replace", "cred", "alice", "two")...)
	require.NoError(t, err)
	out, err = runCLI(t, with(global, "get", "cred", "alice")...)
	require.NoError(t, err)
	assert.Equal(t, "cred/alice = two\n", out)
}

func TestPut_InvalidTag(t *testing.T) {
	global := provisioned(t)

	out, err := runCLI(t, with(global, "put", "cred", "alice", "x", "--tag", "novalue")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [INPUT]")
}

func TestGet_NotFound(t *testing.T) {
	global := provisioned(t)

	out, err := runCLI(t, with(global, "--format", "json", "get", "cred", "nobody")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestScanCountRemove(t *testing.T) {
	global := provisioned(t)
	for _, args := range [][]string{
		{"put", "shirt", "s1", "1", "-t", "color=red", "-t", "~year=2019"},
		{"put", "shirt", "s2", "2", "-t", "color=blue", "-t", "~year=2021"},
		{"put", "shirt", "s3", "3", "-t", "color=red", "-t", "~year=2023"},
		{"put", "hat", "h1", "4", "-t", "color=red"},
	} {
		_, err := runCLI(t, with(global, args...)...)
		require.NoError(t, err)
	}

	out, err := runCLI(t, with(global, "scan", "shirt", "--filter", `{"color":"red"}`)...)
	require.NoError(t, err, out)
	assert.Equal(t, "shirt/s1 = 1 [color=red ~year=2019]\nshirt/s3 = 3 [color=red ~year=2023]\n", out)

	out, err = runCLI(t, with(global, "scan", "--filter", `{"color":"red"}`, "--offset", "1", "--limit", "1")...)
	require.NoError(t, err, out)
	assert.Equal(t, "shirt/s3 = 3 [color=red ~year=2023]\n", out)

	out, err = runCLI(t, with(global, "count", "shirt", "-f", `{"~year":{"$gte":"2021"}}`)...)
	require.NoError(t, err, out)
	assert.Equal(t, "2\n", out)

	out, err = runCLI(t, with(global, "scan", "shirt", "-f", `{"~color":{"$gt":"a"}}`)...)
	require.NoError(t, err, out)
	assert.Equal(t, "(no entries)\n", out)

	out, err = runCLI(t, with(global, "count", "-f", `{"color":{"$gt":"a"}}`)...)
	require.Error(t, err)
	assert.Contains(t, out, "Error [STRUCTURAL]")

	out, err = runCLI(t, with(global, "remove", "hat", "h1")...)
	require.NoError(t, err, out)
	assert.Equal(t, "Removed hat/h1\n", out)

	out, err = runCLI(t, with(global, "remove", "--all", "shirt", "-f", `{"color":"red"}`)...)
	require.NoError(t, err, out)
	assert.Equal(t, "Removed 2 entries\n", out)

	out, err = runCLI(t, with(global, "count")...)
	require.NoError(t, err, out)
	assert.Equal(t, "1\n", out)

	_, err = runCLI(t, with(global, "remove", "shirt")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWrongPassKey(t *testing.T) {
	global := provisioned(t)

	out, err := runCLI(t, "--db", global[1], "--pass-key", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "count")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [ENCRYPTION]")
}

func TestMissingPassKey(t *testing.T) {
	t.Setenv("SEALKV_PASS_KEY", "")
	global := provisioned(t)

	_, err := runCLI(t, "--db", global[1], "count")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestProvision_GenerateKey(t *testing.T) {
	t.Setenv("SEALKV_PASS_KEY", "")
	db := filepath.Join(t.TempDir(), "vault.db")

	out, err := runCLI(t, "--db", db, "--format", "json", "provision", "--generate-key")
	require.NoError(t, err, out)

	var resp struct {
		Data ProvisionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.GeneratedKey)
	assert.Equal(t, "raw", resp.Data.Method)

	_, err = runCLI(t, "--db", db, "--pass-key", resp.Data.GeneratedKey, "put", "a", "b", "c")
	require.NoError(t, err)

	_, err = runCLI(t, "--db", db, "provision", "--generate-key")
	require.Error(t, err, "second provision must fail")
}

func TestProfileCommands(t *testing.T) {
	global := provisioned(t)

	out, err := runCLI(t, with(global, "profile", "create", "work")...)
	require.NoError(t, err, out)
	assert.Equal(t, "Created profile \"work\"\n", out)

	_, err = runCLI(t, with(global, "--profile", "work", "put", "cred", "a", "work-value")...)
	require.NoError(t, err)

	_, err = runCLI(t, with(global, "get", "cred", "a")...)
	require.Error(t, err, "entries are scoped to their profile")

	out, err = runCLI(t, with(global, "profile", "list")...)
	require.NoError(t, err)
	assert.Equal(t, "main (default)\nwork\n", out)

	_, err = runCLI(t, with(global, "profile", "remove", "main")...)
	require.Error(t, err)

	out, err = runCLI(t, with(global, "profile", "remove", "work")...)
	require.NoError(t, err, out)
}

func TestCompile(t *testing.T) {
	out, err := runCLI(t, "compile", `{"color":"red"}`, "--sql-dialect", "postgres", "--start", "2")
	require.NoError(t, err, out)
	assert.Equal(t,
		"clause: i.id IN (SELECT item_id FROM items_tags WHERE name = decode('636f6c6f72', 'hex') AND value = $3 AND plaintext = 0)\n"+
			"args: [\"red\"]\n"+
			"next index: 4\n", out)
}

func TestCompile_WithPage(t *testing.T) {
	out, err := runCLI(t, "--format", "json", "compile", `{"color":"red"}`, "--limit", "5")
	require.NoError(t, err, out)

	var resp struct {
		Data CompileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "sqlite", resp.Data.Dialect)
	assert.Equal(t,
		"SELECT i.id FROM items i WHERE 1 = 1 AND i.id IN (SELECT item_id FROM items_tags WHERE name = X'636f6c6f72' AND value = ?1 AND plaintext = 0) LIMIT ?2, ?3",
		resp.Data.Query)
	assert.Equal(t, []string{`"red"`, "0", "5"}, resp.Data.QueryArgs)
}

func TestCompile_StartWithPage(t *testing.T) {
	out, err := runCLI(t, "--format", "json", "compile", `{"size":"S"}`, "--start", "3", "--limit", "10")
	require.NoError(t, err, out)

	var resp struct {
		Data CompileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(5), resp.Data.NextIndex)
	assert.Equal(t,
		"SELECT i.id FROM items i WHERE 1 = 1 AND i.id IN (SELECT item_id FROM items_tags WHERE name = X'73697a65' AND value = ?4 AND plaintext = 0) LIMIT ?5, ?6",
		resp.Data.Query)
	assert.Equal(t, []string{"<arg 1>", "<arg 2>", "<arg 3>", `"S"`, "0", "10"}, resp.Data.QueryArgs)
}

func TestCompile_Encrypted(t *testing.T) {
	out, err := runCLI(t, "--pass-key", testRawKey, "--profile", "main", "--format", "json", "compile", `{"color":"red"}`, "--encrypt")
	require.NoError(t, err, out)

	var resp struct {
		Data CompileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotContains(t, resp.Data.Clause, "636f6c6f72")
	require.Len(t, resp.Data.Args, 1)
	assert.NotEqual(t, `"red"`, resp.Data.Args[0])

	_, err = runCLI(t, "compile", `{"color":"red"}`, "--encrypt")
	require.Error(t, err)
}

func TestCompile_Errors(t *testing.T) {
	tests := map[string][]string{
		"bad json":       {"compile", `{"color":`},
		"bad dialect":    {"compile", `{"a":"b"}`, "--sql-dialect", "oracle"},
		"ordered on enc": {"compile", `{"year":{"$gt":"1"}}`},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := runCLI(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestToken(t *testing.T) {
	out, err := runCLI(t, "token", "1", "credential", "alice")
	require.NoError(t, err)
	assert.Equal(t, "8429858728883859451\n", out)

	_, err = runCLI(t, "token", "x", "credential", "alice")
	require.Error(t, err)
}

func TestMetricsFlag(t *testing.T) {
	cmd := NewRootCommand()
	errOut := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--metrics", "compile", `{"color":"red"}`})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "sealkv_filters_compiled_total")
}
