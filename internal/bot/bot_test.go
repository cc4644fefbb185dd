package bot

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/supervisor"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBot_Run(t *testing.T) {
	h := fakeHandler{commands: make(map[string]socketmode.SocketmodeHandlerFunc)}
	b := New(&fakeThermostat{}, &h, slog.New(slog.DiscardHandler))

	commands := make([]string, 0, len(h.commands))
	for name := range h.commands {
		commands = append(commands, name)
	}
	slices.Sort(commands)
	assert.Equal(t, []string{"/resume", "/runtime", "/setmode", "/settemp", "/status"}, commands)
	assert.True(t, h.defaultSet)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error)
	go func() { errCh <- b.Run(ctx) }()
	cancel()
	assert.NoError(t, <-errCh)

	h.err = errors.New("invalid auth")
	assert.Error(t, b.Run(t.Context()))
}

func TestBot_respond(t *testing.T) {
	th := fakeThermostat{status: supervisor.Status{
		Name:     "living room",
		Snapshot: &climate.Snapshot{CurrentTemperature: climate.Float(20), Mode: climate.ModeHeat},
	}}
	b := New(&th, &fakeHandler{commands: make(map[string]socketmode.SocketmodeHandlerFunc)}, slog.New(slog.DiscardHandler))

	var s fakeSender
	b.respond(slack.SlashCommand{Command: "/status", ChannelID: "C1", UserID: "U1"}, &s, b.runner.status)
	require.Len(t, s.posts, 1)
	assert.Equal(t, "C1/U1", s.posts[0].target)
	assert.Contains(t, s.posts[0].blocks, "*living room*")
	assert.Contains(t, s.posts[0].blocks, "*temperature*: 20.0ºC")

	b.respond(slack.SlashCommand{Command: "/settemp", Text: "“hot”", ChannelID: "C1", UserID: "U1"}, &s, b.runner.setTemperature)
	require.Len(t, s.posts, 2)
	assert.Equal(t, `invalid temperature: "hot"`, s.posts[1].text)
	assert.Empty(t, th.calls)

	b.respond(slack.SlashCommand{Command: "/settemp", Text: "18", ChannelID: "C1", UserID: "U1"}, &s, b.runner.setTemperature)
	assert.Equal(t, []string{"temperature=18"}, th.calls)
}

func Test_tokenizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "21.5", want: []string{"21.5"}},
		{name: "multiple", input: "heat  now", want: []string{"heat", "now"}},
		{name: "quoted", input: `"living room" 7`, want: []string{"living room", "7"}},
		{name: "smart quotes", input: "“living room” 7", want: []string{"living room", "7"}},
		{name: "single quotes", input: "'living room'", want: []string{"living room"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenizeText(tt.input))
		})
	}
}

type fakeHandler struct {
	commands   map[string]socketmode.SocketmodeHandlerFunc
	defaultSet bool
	err        error
}

func (f *fakeHandler) HandleSlashCommand(command string, h socketmode.SocketmodeHandlerFunc) {
	f.commands[command] = h
}

func (f *fakeHandler) HandleDefault(socketmode.SocketmodeHandlerFunc) {
	f.defaultSet = true
}

func (f *fakeHandler) RunEventLoopContext(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type post struct {
	target string
	text   string
	blocks string
}

type fakeSender struct {
	lock  sync.Mutex
	posts []post
}

func (f *fakeSender) PostEphemeral(channelID, userID string, options ...slack.MsgOption) (string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	if err != nil {
		return "", err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.posts = append(f.posts, post{target: channelID + "/" + userID, text: values.Get("text"), blocks: values.Get("blocks")})
	return "", nil
}
