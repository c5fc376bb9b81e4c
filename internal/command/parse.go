package command

import (
	"strings"

	"github.com/flemzord/tgplug/internal/telegram"
)

// Invocation is a bot command parsed from a message.
type Invocation struct {
	// Command is the command token without the leading slash and without
	// an @botname suffix.
	Command string
	// Args is the trimmed text following the command; empty when absent.
	Args string
	// Message is the message the command came from.
	Message *telegram.Message
}

// Parse extracts the first bot_command entity of msg. It reports false when
// the message has no text or no command entity.
func Parse(msg *telegram.Message) (Invocation, bool) {
	if msg == nil || msg.Text == "" {
		return Invocation{}, false
	}

	for _, e := range msg.Entities {
		if e.Type != telegram.EntityBotCommand {
			continue
		}
		end := e.Offset + e.Length
		cmd := telegram.SliceUTF16(msg.Text, e.Offset+1, end)
		if at := strings.IndexByte(cmd, '@'); at >= 0 {
			cmd = cmd[:at]
		}
		args := telegram.SliceUTF16(msg.Text, end, telegram.LenUTF16(msg.Text))
		return Invocation{
			Command: cmd,
			Args:    strings.TrimSpace(args),
			Message: msg,
		}, true
	}
	return Invocation{}, false
}
