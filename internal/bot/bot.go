// Package bot lets users query and control the thermostat through Slack slash commands.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/slacktools"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const defaultTimeout = 10 * time.Second

// SocketModeHandler dispatches Slack events. *socketmode.SocketmodeHandler implements it.
type SocketModeHandler interface {
	HandleSlashCommand(command string, f socketmode.SocketmodeHandlerFunc)
	HandleDefault(f socketmode.SocketmodeHandlerFunc)
	RunEventLoopContext(ctx context.Context) error
}

// SlackSender posts a response only visible to the user that issued the command. *socketmode.Client implements it.
type SlackSender interface {
	PostEphemeral(channelID, userID string, options ...slack.MsgOption) (string, error)
}

type command func(ctx context.Context, args ...string) (slacktools.Attachment, error)

type Bot struct {
	Timeout time.Duration
	handler SocketModeHandler
	runner  commandRunner
	logger  *slog.Logger
}

func New(t Thermostat, h SocketModeHandler, logger *slog.Logger) *Bot {
	b := Bot{
		Timeout: defaultTimeout,
		handler: h,
		runner:  commandRunner{thermostat: t},
		logger:  logger,
	}
	commands := map[string]command{
		"/status":  b.runner.status,
		"/runtime": b.runner.runtime,
		"/settemp": b.runner.setTemperature,
		"/setmode": b.runner.setMode,
		"/resume":  b.runner.resume,
	}
	for name, cmd := range commands {
		h.HandleSlashCommand(name, b.slashCommand(cmd))
	}
	h.HandleDefault(func(evt *socketmode.Event, _ *socketmode.Client) {
		b.logger.Debug("event ignored", "type", evt.Type)
	})
	return &b
}

func (b *Bot) Run(ctx context.Context) error {
	b.logger.Debug("started")
	defer b.logger.Debug("stopped")
	if err := b.handler.RunEventLoopContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (b *Bot) slashCommand(f command) socketmode.SocketmodeHandlerFunc {
	return func(evt *socketmode.Event, client *socketmode.Client) {
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			b.logger.Warn("unexpected slash command payload", "type", evt.Type)
			return
		}
		if evt.Request != nil {
			client.Ack(*evt.Request)
		}
		b.respond(cmd, client, f)
	}
}

func (b *Bot) respond(cmd slack.SlashCommand, sender SlackSender, f command) {
	ctx, cancel := context.WithTimeout(context.Background(), b.Timeout)
	defer cancel()

	b.logger.Debug("slash command received", "command", cmd.Command, "text", cmd.Text, "user", cmd.UserName)
	var option slack.MsgOption
	attachment, err := f(ctx, tokenizeText(cmd.Text)...)
	if err != nil {
		option = slack.MsgOptionText(err.Error(), false)
	} else {
		option = attachment.Format()
	}
	if _, err = sender.PostEphemeral(cmd.ChannelID, cmd.UserID, option); err != nil {
		b.logger.Error("failed to post response", "command", cmd.Command, "err", err)
	}
}

var tokenizer = regexp.MustCompile(`[^\s"]+|"([^"]*)"`)

func tokenizeText(input string) []string {
	cleanInput := input
	for _, quote := range []string{"“", "”", "'"} {
		cleanInput = strings.ReplaceAll(cleanInput, quote, "\"")
	}
	output := tokenizer.FindAllString(cleanInput, -1)
	for index, word := range output {
		output[index] = strings.Trim(word, "\"")
	}
	return output
}
