// Package chatbot holds process-wide defaults shared by the bot's packages.
package chatbot

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppName   = "nlp-chatbot"
	DefaultEnvPrefix = "NLPBOT"

	DefaultBotName   = "Jane"
	DefaultBotGender = "woman"

	DefaultDatabaseFile = "conversations.db"
)

var (
	// DefaultConfigPath is the per-user config directory.
	DefaultConfigPath = filepath.Join(userHome(), ".config", DefaultAppName)
	// DefaultDataDir holds the session database and downloaded tokenizer files.
	DefaultDataDir = filepath.Join(userHome(), ".local", "share", DefaultAppName)
	// DefaultDatabasePath is where sessions are persisted between restarts.
	DefaultDatabasePath = filepath.Join(DefaultDataDir, DefaultDatabaseFile)
)

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
