package guard

import (
	"strconv"
	"strings"

	"github.com/flemzord/tgplug/internal/telegram"
)

// AllowList controls which users and chats may reach the rest of the chain.
// An empty or nil AllowList denies everyone.
type AllowList struct {
	users     map[int64]struct{}
	usernames map[string]struct{}
	chats     map[int64]struct{}
}

// NewAllowList builds an AllowList. A user entry is either a numeric id or
// a username (with or without the leading @, case-insensitive).
func NewAllowList(users []string, chats []int64) *AllowList {
	a := &AllowList{
		users:     make(map[int64]struct{}),
		usernames: make(map[string]struct{}),
		chats:     make(map[int64]struct{}, len(chats)),
	}
	for _, u := range users {
		u = strings.TrimSpace(u)
		if id, err := strconv.ParseInt(u, 10, 64); err == nil {
			a.users[id] = struct{}{}
			continue
		}
		if name := normalize(u); name != "" {
			a.usernames[name] = struct{}{}
		}
	}
	for _, c := range chats {
		a.chats[c] = struct{}{}
	}
	return a
}

// Empty reports whether no entry was configured.
func (a *AllowList) Empty() bool {
	return a == nil || len(a.users)+len(a.usernames)+len(a.chats) == 0
}

// IsAllowed reports whether the update's sender or chat is permitted.
//
// Rules:
//   - If the list is empty, deny.
//   - If the sender's id or username matches a user entry, allow.
//   - If the chat id matches a chat entry, allow.
//   - Otherwise, deny.
func (a *AllowList) IsAllowed(u *telegram.Update) bool {
	if a.Empty() {
		return false
	}
	if from := u.From(); from != nil {
		if _, ok := a.users[from.ID]; ok {
			return true
		}
		if _, ok := a.usernames[normalize(from.Username)]; ok && from.Username != "" {
			return true
		}
	}
	if chat := u.Chat(); chat != nil {
		if _, ok := a.chats[chat.ID]; ok {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
