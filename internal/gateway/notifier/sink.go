package notifier

import (
	"time"

	"kestrel/internal/logger"
)

// Sink is the fire-and-forget notification surface consumed by the core.
// Delivery failures are swallowed and logged; they never block or fail the
// caller. A nil *Sink is safe to use.
type Sink struct {
	out TextNotifier
}

func NewSink(out TextNotifier) *Sink {
	return &Sink{out: out}
}

var categoryIcons = map[Category]string{
	CategoryStartup:  "✅",
	CategoryEntry:    "\U0001F4C8",
	CategoryError:    "⚠️",
	CategoryCritical: "\U0001F6A8",
	CategoryReport:   "\U0001F4CB",
}

// Notify renders and sends a structured message for the category.
func (s *Sink) Notify(cat Category, title string, sections ...MessageSection) {
	if s == nil || s.out == nil {
		return
	}
	msg := StructuredMessage{
		Icon:      categoryIcons[cat],
		Title:     title,
		Sections:  sections,
		Timestamp: time.Now(),
	}
	go func() {
		if err := s.out.SendText(msg.RenderMarkdown()); err != nil {
			logger.Warnf("notify %s dropped: %v", cat, err)
		}
	}()
}
