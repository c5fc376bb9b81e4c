package command

import "github.com/flemzord/tgplug/internal/telegram"

// Result is what a command handler asks the plugin to do. The zero Result
// means the command produced nothing and the update is left unhandled.
type Result struct {
	text   string
	method telegram.Method
}

// Text replies with s in the chat the command came from. s is sent as
// Markdown. An empty s is the same as None.
func Text(s string) Result { return Result{text: s} }

// Send performs m as the reply.
func Send(m telegram.Method) Result { return Result{method: m} }

// None leaves the update to later plugins.
func None() Result { return Result{} }

// IsNone reports whether r carries no reply.
func (r Result) IsNone() bool { return r.text == "" && r.method == nil }
