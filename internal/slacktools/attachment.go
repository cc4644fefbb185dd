// Package slacktools formats bot responses as Slack blocks.
package slacktools

import (
	"strings"

	"github.com/slack-go/slack"
)

type Formatter interface {
	Format() slack.MsgOption
}

var _ Formatter = Attachment{}

// Attachment is a response with a bold header and one line per Body entry.
type Attachment struct {
	Header string
	Body   []string
}

func (a Attachment) Format() slack.MsgOption {
	return slack.MsgOptionBlocks(a.blocks()...)
}

// a section block holds at most 10 fields, so the body goes in a single text block
func (a Attachment) blocks() []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(markdown("*"+a.Header+"*"), nil, nil),
	}
	if len(a.Body) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(markdown(strings.Join(a.Body, "\n")), nil, nil))
	}
	return blocks
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}
