// Package notify delivers text summaries to a chat channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// SignatureLayout is how the send time is printed under each message.
const SignatureLayout = "02-Jan-2006 15:04"

// Notifier sends one text message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Signature returns the footer appended to every message.
func Signature(at time.Time) string {
	return fmt.Sprintf("\n Generated on %s.", at.Format(SignatureLayout))
}

// Discard drops messages. It stands in when notifications are disabled.
type Discard struct {
	Logger *slog.Logger
}

func (d Discard) Send(_ context.Context, text string) error {
	if d.Logger != nil {
		d.Logger.Warn("notifications disabled, message dropped",
			"length", len(text),
			"hint", "set telegram.enabled (MARKETGEN_TELEGRAM_ENABLED=true)")
	}
	return nil
}

// ParseChatIDs splits a comma-separated list of chat ids. Blank entries are
// skipped.
func ParseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
