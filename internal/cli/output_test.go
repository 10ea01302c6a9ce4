package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sealkv/internal/kv"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(CountResult{Count: 3})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"count": float64(3)}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("NOT_FOUND", "entry cat/a not found", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "entry cat/a not found", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success(EntryView{Category: "cat", Name: "a", Value: "v", Tags: []kv.EntryTag{
		{Name: "color", Value: "red"},
		{Name: "year", Value: "2021", Plaintext: true},
	}})
	require.NoError(t, err)
	assert.Equal(t, "cat/a = v [color=red ~year=2021]\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("STRUCTURAL", "invalid tag query", map[string]string{"path": "$"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [STRUCTURAL]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Opening %s", "vault.db")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Opening vault.db")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"not found", kv.NewError(kv.ErrCodeNotFound, "missing"), "NOT_FOUND", ExitFailure},
		{"duplicate", kv.NewError(kv.ErrCodeDuplicate, "exists"), "DUPLICATE", ExitFailure},
		{"structural", kv.NewError(kv.ErrCodeStructural, "bad filter"), "STRUCTURAL", ExitCommandError},
		{"plain", errors.New("boom"), "ERROR", ExitCommandError},
		{"exit error", NewExitError(ExitCommandError, "bad flags"), "ERROR", ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail(tt.err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.True(t, IsReported(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("x")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "open", errors.New("x"))))
	assert.False(t, IsReported(errors.New("x")))
}
