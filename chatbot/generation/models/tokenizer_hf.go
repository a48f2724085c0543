package models

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

const (
	tokenizerFile       = "tokenizer.json"
	tokenizerConfigFile = "tokenizer_config.json"

	// HF writes a huge sentinel when a model declares no limit
	maxPlausibleLength = 1 << 20
)

// HFTokenizer wraps a Hugging Face tokenizer.json. Limits and the EOS token
// come from the tokenizer_config.json next to it, when present.
type HFTokenizer struct {
	tk        *tokenizer.Tokenizer
	eos       string
	maxLength int
}

// LoadHFTokenizer loads from a tokenizer.json path or a directory holding
// one.
func LoadHFTokenizer(path string) (*HFTokenizer, error) {
	file := path
	if info, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("tokenizer path: %w", err)
	} else if info.IsDir() {
		file = filepath.Join(path, tokenizerFile)
	}

	tk, err := pretrained.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", file, err)
	}

	t := &HFTokenizer{tk: tk}
	cfgPath := filepath.Join(filepath.Dir(file), tokenizerConfigFile)
	if err := t.readConfig(cfgPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	slog.Default().Info("Tokenizer loaded", "component", "HFTokenizer", "file", file,
		"model_max_length", t.maxLength, "eos_token", t.eos)
	return t, nil
}

func (t *HFTokenizer) readConfig(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if n := v.GetFloat64("model_max_length"); n > 0 && n < maxPlausibleLength {
		t.maxLength = int(n)
	}
	// eos_token is either a string or an AddedToken object
	if s := v.GetString("eos_token.content"); s != "" {
		t.eos = s
	} else if s := v.GetString("eos_token"); s != "" {
		t.eos = s
	}
	return nil
}

func (t *HFTokenizer) Encode(text string) ([]int, error) {
	en, err := t.tk.EncodeSingle(text, false)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return en.Ids, nil
}

func (t *HFTokenizer) EncodeWithSpecial(text string) ([]int, error) {
	en, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return en.Ids, nil
}

func (t *HFTokenizer) Decode(ids []int, skipSpecial bool) (string, error) {
	return t.tk.Decode(ids, skipSpecial), nil
}

func (t *HFTokenizer) EOSToken() string { return t.eos }

func (t *HFTokenizer) ModelMaxLength() int { return t.maxLength }

var _ ports.Tokenizer = (*HFTokenizer)(nil)
