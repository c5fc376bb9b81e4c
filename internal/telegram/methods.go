package telegram

// Method is a Bot API request. The value is JSON-encoded as the request
// body and MethodName selects the endpoint.
type Method interface {
	MethodName() string
}

// Parse modes accepted by the text-sending methods.
const (
	ParseModeMarkdown   = "Markdown"
	ParseModeMarkdownV2 = "MarkdownV2"
	ParseModeHTML       = "HTML"
)

// GetMe returns basic information about the bot.
type GetMe struct{}

// MethodName implements Method.
func (GetMe) MethodName() string { return "getMe" }

// GetUpdates fetches incoming updates using long polling. A zero Offset is
// omitted, which asks the server for every unconfirmed update.
type GetUpdates struct {
	Offset         int64    `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// MethodName implements Method.
func (GetUpdates) MethodName() string { return "getUpdates" }

// DeleteWebhook removes the webhook integration so getUpdates can be used.
type DeleteWebhook struct {
	DropPendingUpdates bool `json:"drop_pending_updates,omitempty"`
}

// MethodName implements Method.
func (DeleteWebhook) MethodName() string { return "deleteWebhook" }

// SendMessage sends a text message.
type SendMessage struct {
	ChatID                int64                 `json:"chat_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	DisableNotification   bool                  `json:"disable_notification,omitempty"`
	ReplyToMessageID      int                   `json:"reply_to_message_id,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// MethodName implements Method.
func (SendMessage) MethodName() string { return "sendMessage" }

// EditMessageText edits the text of a previously sent message.
type EditMessageText struct {
	ChatID                int64                 `json:"chat_id,omitempty"`
	MessageID             int                   `json:"message_id,omitempty"`
	InlineMessageID       string                `json:"inline_message_id,omitempty"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// MethodName implements Method.
func (EditMessageText) MethodName() string { return "editMessageText" }

// SendChatAction shows a status such as "typing" in the chat.
type SendChatAction struct {
	ChatID int64  `json:"chat_id"`
	Action string `json:"action"`
}

// MethodName implements Method.
func (SendChatAction) MethodName() string { return "sendChatAction" }

// AnswerCallbackQuery acknowledges a callback query.
type AnswerCallbackQuery struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
	URL             string `json:"url,omitempty"`
	CacheTime       int    `json:"cache_time,omitempty"`
}

// MethodName implements Method.
func (AnswerCallbackQuery) MethodName() string { return "answerCallbackQuery" }

// AnswerInlineQuery sends results for an inline query.
type AnswerInlineQuery struct {
	InlineQueryID string                     `json:"inline_query_id"`
	Results       []InlineQueryResultArticle `json:"results"`
	CacheTime     int                        `json:"cache_time,omitempty"`
	IsPersonal    bool                       `json:"is_personal,omitempty"`
	NextOffset    string                     `json:"next_offset,omitempty"`
}

// MethodName implements Method.
func (AnswerInlineQuery) MethodName() string { return "answerInlineQuery" }
