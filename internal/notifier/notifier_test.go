package notifier_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/notifier"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifiers_Notify(t *testing.T) {
	var out bytes.Buffer
	s := &fakeSlack{channels: []slack.Channel{channel("C1", true, false)}}
	l := notifier.Notifiers{
		notifier.SLogNotifier{Logger: slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{ReplaceAttr: dropTime}))},
		&notifier.SlackNotifier{SlackSender: s, Logger: slog.New(slog.DiscardHandler)},
	}

	l.Notify(t.Context(), "Safety mode deactivated due to manual override.")

	assert.Equal(t, `level=INFO msg="Safety mode deactivated due to manual override." title="Enhanced Thermostat Safety Alert"`+"\n", out.String())
	require.Len(t, s.posted, 1)
	assert.Equal(t, "C1", s.posted[0].channel)
	assert.Equal(t, notifier.Title, s.posted[0].attachment.Title)
	assert.Equal(t, "Safety mode deactivated due to manual override.", s.posted[0].attachment.Text)
}

func TestSlackNotifier_Channels(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		channels []slack.Channel
		authErr  error
		want     []string
	}{
		{
			name:    "configured channel",
			channel: "alerts",
			want:    []string{"alerts"},
		},
		{
			name: "joined channels",
			channels: []slack.Channel{
				channel("C1", true, false),
				channel("C2", false, false),
				channel("C3", true, true),
				channel("C4", true, false),
			},
			want: []string{"C1", "C4"},
		},
		{
			name:     "auth failure",
			channels: []slack.Channel{channel("C1", true, false)},
			authErr:  errors.New("invalid_auth"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &fakeSlack{channels: tt.channels, authErr: tt.authErr}
			n := notifier.SlackNotifier{Channel: tt.channel, SlackSender: s, Logger: slog.New(slog.DiscardHandler)}
			n.Notify(t.Context(), "hello")

			var channels []string
			for _, p := range s.posted {
				channels = append(channels, p.channel)
			}
			assert.Equal(t, tt.want, channels)
		})
	}
}

func TestSlackNotifier_Paging(t *testing.T) {
	s := &fakeSlack{channels: []slack.Channel{channel("C1", true, false), channel("C2", true, false), channel("C3", true, false)}, pageSize: 2}
	n := notifier.SlackNotifier{SlackSender: s, Logger: slog.New(slog.DiscardHandler)}
	n.Notify(t.Context(), "hello")
	assert.Len(t, s.posted, 3)
}

func TestRateLimited(t *testing.T) {
	var r recorder
	n := notifier.NewRateLimited(&r, time.Hour, 2, slog.New(slog.DiscardHandler))
	for range 5 {
		n.Notify(t.Context(), "hello")
	}
	assert.Equal(t, []string{"hello", "hello"}, r.messages)
}

func TestSlackNotifier_Timeout(t *testing.T) {
	s := &fakeSlack{channels: []slack.Channel{channel("C1", true, false)}, hang: true}
	n := notifier.SlackNotifier{SlackSender: s, Logger: slog.New(slog.DiscardHandler)}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		n.Notify(ctx, "hello")
		close(done)
	}()

	// an unresponsive slack server doesn't block the caller beyond its deadline
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Notify did not honour the context's deadline")
	}
	assert.Empty(t, s.posted)
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

func channel(id string, member, archived bool) slack.Channel {
	var c slack.Channel
	c.ID = id
	c.IsMember = member
	c.IsArchived = archived
	return c
}

var _ notifier.Notifier = &recorder{}

type recorder struct {
	messages []string
}

func (r *recorder) Notify(_ context.Context, msg string) {
	r.messages = append(r.messages, msg)
}

var _ notifier.SlackSender = &fakeSlack{}

type posted struct {
	channel    string
	attachment slack.Attachment
}

type fakeSlack struct {
	channels []slack.Channel
	pageSize int
	authErr  error
	hang     bool
	posted   []posted
	lock     sync.Mutex
}

func (f *fakeSlack) PostMessageContext(ctx context.Context, channel string, options ...slack.MsgOption) (string, string, error) {
	if f.hang {
		<-ctx.Done()
		return "", "", ctx.Err()
	}
	_, values, err := slack.UnsafeApplyMsgOptions("", channel, "", options...)
	if err != nil {
		return "", "", err
	}
	var attachments []slack.Attachment
	if err = json.Unmarshal([]byte(values.Get("attachments")), &attachments); err != nil {
		return "", "", err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, attachment := range attachments {
		f.posted = append(f.posted, posted{channel: channel, attachment: attachment})
	}
	return channel, "", nil
}

func (f *fakeSlack) GetConversationsContext(_ context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	if f.pageSize == 0 {
		return f.channels, "", nil
	}
	start := 0
	if params.Cursor != "" {
		start = int(params.Cursor[0] - '0')
	}
	end := min(start+f.pageSize, len(f.channels))
	var next string
	if end < len(f.channels) {
		next = string(rune('0' + end))
	}
	return f.channels[start:end], next, nil
}

func (f *fakeSlack) AuthTestContext(_ context.Context) (*slack.AuthTestResponse, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &slack.AuthTestResponse{UserID: "U1"}, nil
}
