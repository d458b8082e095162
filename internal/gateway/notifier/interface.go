package notifier

// TextNotifier defines a minimal text notification interface.
// It is intentionally small so different components can depend on it without
// importing concrete implementations (e.g. Telegram).
type TextNotifier interface {
	SendText(text string) error
}

// Category classifies a push for routing and prefixing.
type Category string

const (
	CategoryStartup  Category = "startup"
	CategoryEntry    Category = "entry"
	CategoryError    Category = "error"
	CategoryCritical Category = "critical"
	CategoryReport   Category = "report"
)
