package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	settings := map[string]any{
		"discord": map[string]any{"token": "abc"},
		"model": map[string]any{
			"remote": map[string]any{"api_key": ""},
		},
	}
	maskSecret(settings, "discord", "token")
	maskSecret(settings, "model", "remote", "api_key")
	maskSecret(settings, "missing", "key")

	assert.Equal(t, "********", settings["discord"].(map[string]any)["token"])
	assert.Equal(t, "", settings["model"].(map[string]any)["remote"].(map[string]any)["api_key"])
}

func TestCommandTree(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "repl")
	assert.Contains(t, names, "discord")
	assert.Contains(t, names, "config")

	flag := replCmd.Flags().Lookup("echo-tokens")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "false", flag.DefValue)
	}
}
