package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/app"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/repl"
)

func init() {
	replCmd.Flags().Bool("echo-tokens", false, "Print the tokenizer round-trip of every input")
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Chat with the model in the terminal",
	Long:  "Reads one line per turn from stdin and prints the model's answer. Ctrl-C or end of input prints the dialogue summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		echo, _ := cmd.Flags().GetBool("echo-tokens")
		return runApp(cmd, func(ctx context.Context, a *app.App) error {
			r := repl.New(repl.Config{
				Adapter:    a.Adapter,
				Tokenizer:  a.Tokenizer,
				EchoTokens: echo,
				In:         os.Stdin,
				Out:        os.Stdout,
				Logger:     a.Logger,
			})
			_, err := r.Run(ctx)
			return err
		})
	},
}
