package model

// CallbackQuery is raised when a user presses an inline button.
//
// Message is set when the button lives on a message the bot can address;
// otherwise InlineMessageID identifies it.
type CallbackQuery struct {
	ID              string
	From            Chat
	Message         *Message
	InlineMessageID string
	ChatInstance    string
	Data            string
	GameShortName   string
}

// ParseCallbackQuery parses a callback_query object.
func (p Parser) ParseCallbackQuery(raw map[string]any) (*CallbackQuery, error) {
	return p.parseCallbackQuery("callback_query", raw)
}

func (p Parser) parseCallbackQuery(path string, raw map[string]any) (*CallbackQuery, error) {
	f := newFields(path, raw)
	q := &CallbackQuery{}

	var err error
	if q.ID, err = f.string("id", true); err != nil {
		return nil, err
	}

	fromRaw, err := f.object("from", true)
	if err != nil {
		return nil, err
	}
	from, err := p.parseChat(f.at("from"), fromRaw, ChatUser)
	if err != nil {
		return nil, err
	}
	q.From = *from

	msgRaw, err := f.object("message", false)
	if err != nil {
		return nil, err
	}
	if msgRaw != nil {
		if q.Message, err = p.parseMessage(f.at("message"), msgRaw); err != nil {
			return nil, err
		}
	}
	if q.InlineMessageID, err = f.string("inline_message_id", false); err != nil {
		return nil, err
	}
	if q.ChatInstance, err = f.string("chat_instance", false); err != nil {
		return nil, err
	}
	if q.Data, err = f.string("data", false); err != nil {
		return nil, err
	}
	if q.GameShortName, err = f.string("game_short_name", false); err != nil {
		return nil, err
	}

	if p.Strict && q.Message == nil && q.InlineMessageID == "" {
		return nil, NewError(ErrorInvariant, path, "callback query references no message")
	}
	if err := f.finish(p.Strict); err != nil {
		return nil, err
	}

	return q, nil
}

// ChatID returns the conversation the query originated from, when addressable.
func (q *CallbackQuery) ChatID() (int64, bool) {
	if q == nil || q.Message == nil {
		return 0, false
	}
	return q.Message.Chat.ID, true
}
