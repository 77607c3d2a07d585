package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"botline/pkg/channel"
	"botline/pkg/model"
	"botline/pkg/queue"
)

// Chat actions accepted by Action.
const (
	ChatActionTyping       = "typing"
	ChatActionUploadPhoto  = "upload_photo"
	ChatActionUploadDoc    = "upload_document"
	ChatActionRecordVoice  = "record_voice"
	ChatActionFindLocation = "find_location"
)

type step struct {
	action Action
	then   queue.Hook
}

// Reply collects actions for one or more chats and enqueues them together on
// Commit. The first resolution or usage error sticks and Commit returns it
// without enqueueing anything.
type Reply struct {
	bot    *Bot
	key    any
	chatID int64
	steps  []step
	err    error
	done   bool
}

func (r *Reply) fail(err error) *Reply {
	if r.err == nil {
		r.err = err
	}
	return r
}

func (r *Reply) add(method string, params channel.Params) *Reply {
	if r.err != nil {
		return r
	}
	params["chat_id"] = r.chatID
	r.steps = append(r.steps, step{action: Action{Method: method, Params: params}})
	return r
}

// To switches the target chat for the following actions. The queue key is
// unchanged.
func (r *Reply) To(chat any) *Reply {
	id, err := model.ResolveChat(chat)
	if err != nil {
		return r.fail(err)
	}
	r.chatID = id
	return r
}

func (r *Reply) Text(text string) *Reply {
	return r.add("sendMessage", channel.Params{"text": text})
}

func (r *Reply) Markdown(text string) *Reply {
	return r.add("sendMessage", channel.Params{"text": text, "parse_mode": "Markdown"})
}

func (r *Reply) HTML(text string) *Reply {
	return r.add("sendMessage", channel.Params{"text": text, "parse_mode": "HTML"})
}

func (r *Reply) Photo(file any, caption string) *Reply {
	return r.media("sendPhoto", "photo", file, caption)
}

func (r *Reply) Document(file any, caption string) *Reply {
	return r.media("sendDocument", "document", file, caption)
}

func (r *Reply) Audio(file any, caption string) *Reply {
	return r.media("sendAudio", "audio", file, caption)
}

func (r *Reply) Video(file any, caption string) *Reply {
	return r.media("sendVideo", "video", file, caption)
}

func (r *Reply) Voice(file any, caption string) *Reply {
	return r.media("sendVoice", "voice", file, caption)
}

func (r *Reply) Sticker(file any) *Reply {
	return r.media("sendSticker", "sticker", file, "")
}

func (r *Reply) media(method, field string, file any, caption string) *Reply {
	input, err := inputFile(file)
	if err != nil {
		return r.fail(err)
	}
	if utf8.RuneCountInString(caption) > model.MaxCaptionLength {
		return r.fail(model.UsageError(fmt.Sprintf("caption exceeds %d characters", model.MaxCaptionLength)))
	}

	params := channel.Params{field: input}
	if caption != "" {
		params["caption"] = caption
	}
	return r.add(method, params)
}

func (r *Reply) Location(latitude, longitude float64) *Reply {
	return r.add("sendLocation", channel.Params{"latitude": latitude, "longitude": longitude})
}

func (r *Reply) Venue(latitude, longitude float64, title, address string) *Reply {
	return r.add("sendVenue", channel.Params{
		"latitude":  latitude,
		"longitude": longitude,
		"title":     title,
		"address":   address,
	})
}

func (r *Reply) Contact(phoneNumber, firstName, lastName string) *Reply {
	params := channel.Params{"phone_number": phoneNumber, "first_name": firstName}
	if lastName != "" {
		params["last_name"] = lastName
	}
	return r.add("sendContact", params)
}

// Action sends a chat action such as ChatActionTyping.
func (r *Reply) Action(kind string) *Reply {
	if strings.TrimSpace(kind) == "" {
		return r.fail(model.UsageError("chat action is required"))
	}
	return r.add("sendChatAction", channel.Params{"action": kind})
}

// Forward copies msg, keeping its provenance, into the target chat.
func (r *Reply) Forward(msg *model.Message) *Reply {
	if msg == nil {
		return r.fail(model.UsageError("forward requires a message"))
	}
	return r.add("forwardMessage", channel.Params{"from_chat_id": msg.Chat.ID, "message_id": msg.ID})
}

// Edit replaces the text of an earlier message in the target chat.
func (r *Reply) Edit(message any, text string) *Reply {
	id, err := model.ResolveMessage(message)
	if err != nil {
		return r.fail(err)
	}
	return r.add("editMessageText", channel.Params{"message_id": id, "text": text})
}

func (r *Reply) Delete(message any) *Reply {
	id, err := model.ResolveMessage(message)
	if err != nil {
		return r.fail(err)
	}
	return r.add("deleteMessage", channel.Params{"message_id": id})
}

// Content sends a value according to its type: strings as text, model
// values as the matching media.
func (r *Reply) Content(v any) *Reply {
	switch c := v.(type) {
	case string:
		return r.Text(c)
	case *model.Photo:
		return r.Photo(c, "")
	case *model.Document:
		if c != nil {
			return r.Document(c.File, "")
		}
	case *model.Audio:
		if c != nil {
			return r.Audio(c.File, "")
		}
	case *model.Video:
		if c != nil {
			return r.Video(c.Image, "")
		}
	case *model.Voice:
		if c != nil {
			return r.Voice(c.File, "")
		}
	case *model.Sticker:
		if c != nil {
			return r.Sticker(c.Image)
		}
	case *model.Location:
		if c != nil {
			return r.Location(c.Latitude, c.Longitude)
		}
	case *model.Venue:
		if c != nil {
			return r.Venue(c.Location.Latitude, c.Location.Longitude, c.Title, c.Address)
		}
	case *model.Contact:
		if c != nil {
			return r.Contact(c.PhoneNumber, c.FirstName, c.LastName)
		}
	case *model.Message:
		return r.fail(model.UsageError("cannot send a message as content, use Forward"))
	}

	return r.fail(model.UsageError(fmt.Sprintf("unsupported content %T", v)))
}

// Then attaches hook to the most recent action. The hook owns that action's
// outcome and must call next to let the queue continue.
func (r *Reply) Then(hook queue.Hook) *Reply {
	if r.err != nil {
		return r
	}
	if len(r.steps) == 0 {
		return r.fail(model.UsageError("then requires a preceding action"))
	}
	last := &r.steps[len(r.steps)-1]
	if last.then != nil {
		return r.fail(model.UsageError("action already has a hook"))
	}
	last.then = hook
	return r
}

// Commit enqueues the collected actions in order.
func (r *Reply) Commit() error {
	if r.err != nil {
		return r.err
	}
	if r.done {
		return model.UsageError("reply already committed")
	}
	r.done = true

	for _, s := range r.steps {
		r.bot.Enqueue(r.key, s.action, s.then)
	}
	return nil
}

// Actions returns the collected actions, for inspection before Commit.
func (r *Reply) Actions() []Action {
	actions := make([]Action, 0, len(r.steps))
	for _, s := range r.steps {
		actions = append(actions, s.action)
	}
	return actions
}

func inputFile(v any) (channel.InputFile, error) {
	switch f := v.(type) {
	case channel.InputFile:
		return f, nil
	case string:
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") {
			return channel.InputFile{URL: f}, nil
		}
	}

	id, err := model.ResolveFile(v)
	if err != nil {
		return channel.InputFile{}, err
	}
	return channel.InputFile{ID: id}, nil
}
