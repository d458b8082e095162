package notifier

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdownFullMessage(t *testing.T) {
	msg := StructuredMessage{
		Icon:  "✅",
		Title: "Kestrel started",
		Sections: []MessageSection{
			{Title: "Config", Lines: []string{"env: dev", "symbol: BTCUSDT"}},
		},
		Footer:    "good luck",
		Timestamp: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	body := msg.RenderMarkdown()

	assert.Contains(t, body, "✅ Kestrel started")
	assert.Contains(t, body, "```")
	assert.Contains(t, body, "- env: dev")
	assert.Contains(t, body, "- symbol: BTCUSDT")
	assert.Contains(t, body, "good luck")
	assert.Contains(t, body, "time: 2024-03-10 12:00:00 UTC")
}

func TestRenderMarkdownSkipsEmptySections(t *testing.T) {
	msg := StructuredMessage{
		Title:    "quiet",
		Sections: []MessageSection{{Title: "empty", Lines: []string{"  ", ""}}},
	}
	body := msg.RenderMarkdown()
	assert.NotContains(t, body, "```")
	assert.Equal(t, "quiet", body)
}

func TestRenderMarkdownEscapesCodeFence(t *testing.T) {
	msg := StructuredMessage{
		Title:    "t",
		Sections: []MessageSection{{Lines: []string{"injected ``` fence"}}},
	}
	body := msg.RenderMarkdown()
	assert.Contains(t, body, "'''")
	assert.Equal(t, 2, strings.Count(body, "```"))
}

func TestRenderMarkdownTruncates(t *testing.T) {
	long := strings.Repeat("x", 5000)
	msg := StructuredMessage{Title: "t", Sections: []MessageSection{{Lines: []string{long}}}}
	body := msg.RenderMarkdown()
	assert.LessOrEqual(t, len(body), maxStructuredMessageLen+3)
	assert.True(t, strings.HasSuffix(body, "..."))
}

type captureNotifier struct {
	ch chan string
}

func (c *captureNotifier) SendText(text string) error {
	c.ch <- text
	return nil
}

func TestSinkDeliversAsync(t *testing.T) {
	out := &captureNotifier{ch: make(chan string, 1)}
	sink := NewSink(out)

	sink.Notify(CategoryEntry, "Entered LONG BTCUSDT", MessageSection{Lines: []string{"size: 0.1"}})

	select {
	case text := <-out.ch:
		assert.Contains(t, text, "Entered LONG BTCUSDT")
		assert.Contains(t, text, "size: 0.1")
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestSinkNilSafe(t *testing.T) {
	var sink *Sink
	sink.Notify(CategoryError, "ignored")

	NewSink(nil).Notify(CategoryError, "also ignored")
}
