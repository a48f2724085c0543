// Package repl is the line-oriented front end: read a line, answer it,
// repeat until end of input or interrupt, then print the whole dialogue.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/conversation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

const (
	Prompt        = ">>> "
	SummaryHeader = "\n------Dialogue Summary------"
)

// Config configures a REPL.
type Config struct {
	Adapter generation.Adapter
	// Tokenizer is only needed with EchoTokens.
	Tokenizer ports.Tokenizer
	// EchoTokens prints the tokenizer round-trip of every input after the first.
	EchoTokens bool
	In         io.Reader
	Out        io.Writer
	Logger     zerolog.Logger
}

type REPL struct {
	cfg    Config
	logger zerolog.Logger
}

func New(cfg Config) *REPL {
	return &REPL{cfg: cfg, logger: cfg.Logger.With().Str("component", "repl").Logger()}
}

type line struct {
	text string
	err  error
}

// Run drives the loop until input ends or ctx is cancelled and returns the
// final log. A failed generation is reported and the input discarded.
func (r *REPL) Run(ctx context.Context) (*conversation.Log, error) {
	lines := make(chan line)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.cfg.In)
		for sc.Scan() {
			select {
			case lines <- line{text: sc.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case lines <- line{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	read := func() (string, bool, error) {
		fmt.Fprint(r.cfg.Out, Prompt)
		select {
		case <-ctx.Done():
			return "", false, nil
		case l, ok := <-lines:
			if !ok {
				return "", false, nil
			}
			return l.text, l.err == nil, l.err
		}
	}

	log := conversation.New()

	first, ok, err := read()
	if !ok {
		r.summary(log)
		return log, err
	}
	work := conversation.New(first)

	for {
		err := r.cfg.Adapter.Respond(ctx, work)
		switch {
		case err == nil:
			log = work
			response, _ := log.LastResponse()
			fmt.Fprintln(r.cfg.Out, strings.TrimPrefix(response, " "))
		case ctx.Err() != nil:
			r.summary(log)
			return log, nil
		case errors.Is(err, generation.ErrGenerationFailure):
			r.logger.Error().Err(err).Msg("Generation failed")
			fmt.Fprintln(r.cfg.Out, "(no response, try again)")
		default:
			return log, err
		}

		next, ok, err := read()
		if !ok {
			r.summary(log)
			return log, err
		}
		if r.cfg.EchoTokens {
			r.echo(next)
		}
		work = log.Clone()
		if err := work.AddUserInput(next); err != nil {
			return log, err
		}
	}
}

func (r *REPL) echo(text string) {
	if r.cfg.Tokenizer == nil {
		return
	}
	ids, err := r.cfg.Tokenizer.EncodeWithSpecial(text)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to encode input")
		return
	}
	decoded, err := r.cfg.Tokenizer.Decode(ids, false)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to decode input")
		return
	}
	fmt.Fprintln(r.cfg.Out, decoded)
}

func (r *REPL) summary(log *conversation.Log) {
	fmt.Fprintln(r.cfg.Out, SummaryHeader)
	fmt.Fprint(r.cfg.Out, log.String())
}
