package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/app"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/bot"
)

var discordCmd = &cobra.Command{
	Use:   "discord",
	Short: "Run the Discord bot",
	Long:  "Answers messages that start with the bot's name. The token is read from discord.token, NLPBOT_DISCORD_TOKEN or DISCORD_KEY.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.App) error {
			if a.Config.Discord.Token == "" {
				return errors.New("discord token is not set")
			}
			newHandler := func(t bot.Transport) *bot.Handler {
				return bot.NewHandler(bot.HandlerConfig{
					Name:         a.Config.Bot.Name,
					Gender:       a.Config.Bot.Gender,
					ContextLimit: a.Adapter.ContextLimit(),
					Sessions:     a.Sessions,
					Transport:    t,
					Limiter:      a.Limiter,
					Logger:       a.Logger,
				})
			}
			return bot.RunDiscord(ctx, a.Config.Discord.Token, newHandler, a.Logger)
		})
	},
}
