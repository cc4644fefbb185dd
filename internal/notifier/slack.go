package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
)

// SlackSender is the part of the slack client used by SlackNotifier.
type SlackSender interface {
	PostMessageContext(context.Context, string, ...slack.MsgOption) (string, string, error)
	GetConversationsContext(context.Context, *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	AuthTestContext(context.Context) (*slack.AuthTestResponse, error)
}

var _ Notifier = &SlackNotifier{}

// SlackNotifier posts alerts to Channel. If Channel is blank, it posts to every channel the bot is a member of.
type SlackNotifier struct {
	Logger  *slog.Logger
	Channel string
	SlackSender
	userID string
	lock   sync.Mutex
}

func (s *SlackNotifier) Notify(ctx context.Context, msg string) {
	channels, err := s.getChannels(ctx)
	if err != nil {
		s.Logger.Error("notifier failed to retrieve channels", "err", err)
		return
	}
	for _, channel := range channels {
		s.Logger.Debug("notifying on slack", "channel", channel)
		_, _, err = s.SlackSender.PostMessageContext(ctx, channel, slack.MsgOptionAttachments(slack.Attachment{
			Color: "danger",
			Title: Title,
			Text:  msg,
		}))
		if err != nil {
			s.Logger.Error("notifier failed to post message", "err", err)
		}
	}
}

func (s *SlackNotifier) getChannels(ctx context.Context) ([]string, error) {
	if s.Channel != "" {
		return []string{s.Channel}, nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.userID == "" {
		authResp, err := s.SlackSender.AuthTestContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("AuthTest: %w", err)
		}
		s.userID = authResp.UserID
	}

	var joinedChannels []string
	var cursor string
	for {
		channels, nextCursor, err := s.SlackSender.GetConversationsContext(ctx, &slack.GetConversationsParameters{Cursor: cursor, Limit: 100})
		if err != nil {
			return nil, fmt.Errorf("GetConversations: %w", err)
		}
		for _, channel := range channels {
			if channel.IsMember && !channel.IsArchived {
				joinedChannels = append(joinedChannels, channel.ID)
			}
		}
		if cursor = nextCursor; cursor == "" {
			break
		}
	}
	return joinedChannels, nil
}
