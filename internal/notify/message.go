package notify

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Kind distinguishes alert and resolution messages.
type Kind int

const (
	KindAlert Kind = iota
	KindResolved
)

func (k Kind) String() string {
	if k == KindResolved {
		return "resolved"
	}
	return "alert"
}

// Message describes a watcher state transition.
type Message struct {
	Kind       Kind
	Network    string
	Instance   string
	Rate       float64
	Processed  uint64
	LastHeight uint64
	At         time.Time
}

// HTML renders the message using the Telegram HTML subset.
func (m Message) HTML() string {
	var b strings.Builder

	switch m.Kind {
	case KindResolved:
		fmt.Fprintf(&b, "✅ <b>RESOLVED</b> %s block stream is moving again\n", html.EscapeString(m.Network))
	default:
		fmt.Fprintf(&b, "🚨 <b>ALERT</b> %s block stream stalled\n", html.EscapeString(m.Network))
	}
	fmt.Fprintf(&b, "Rate: <code>%.2f</code> blocks/s\n", m.Rate)
	fmt.Fprintf(&b, "Last height: <code>%d</code>\n", m.LastHeight)
	fmt.Fprintf(&b, "Processed: <code>%d</code>\n", m.Processed)
	if m.Instance != "" {
		fmt.Fprintf(&b, "Instance: <code>%s</code>\n", html.EscapeString(m.Instance))
	}
	if !m.At.IsZero() {
		fmt.Fprintf(&b, "At: %s", m.At.UTC().Format(time.RFC3339))
	}

	return strings.TrimRight(b.String(), "\n")
}
