package slacktools

import (
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachment_blocks(t *testing.T) {
	a := Attachment{
		Header: "header",
		Body: []string{
			"line 1",
			"line 2",
		},
	}

	b := a.blocks()
	require.Len(t, b, 2)
	assert.Equal(t, "*header*", b[0].(*slack.SectionBlock).Text.Text)
	assert.Equal(t, "line 1\nline 2", b[1].(*slack.SectionBlock).Text.Text)

	assert.Len(t, Attachment{Header: "header"}.blocks(), 1)
}
