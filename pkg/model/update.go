package model

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// UpdateKind names which payload an Update carries.
type UpdateKind string

const (
	KindUnknown           UpdateKind = ""
	KindMessage           UpdateKind = "message"
	KindEditedMessage     UpdateKind = "edited_message"
	KindChannelPost       UpdateKind = "channel_post"
	KindEditedChannelPost UpdateKind = "edited_channel_post"
	KindCallbackQuery     UpdateKind = "callback_query"
)

var messageKinds = []UpdateKind{KindMessage, KindEditedMessage, KindChannelPost, KindEditedChannelPost}

// Update is one inbound event. ID is assigned by the remote service and is
// non-decreasing within a session.
type Update struct {
	ID            int64
	Kind          UpdateKind
	Message       *Message
	CallbackQuery *CallbackQuery
}

// Parser turns raw wire payloads into typed values.
//
// Strict rejects unrecognized fields, ambiguous content and chat invariant
// violations. Lenient parsing ignores leftovers and keeps the first match.
type Parser struct {
	Strict bool
}

// ParseUpdateJSON decodes and parses one raw update payload.
func (p Parser) ParseUpdateJSON(data []byte) (*Update, error) {
	obj, err := decodeObject(data, "update")
	if err != nil {
		return nil, err
	}

	return p.ParseUpdate(obj)
}

// ParseMessageJSON decodes and parses a message object, such as the result
// of a send method.
func (p Parser) ParseMessageJSON(data []byte) (*Message, error) {
	obj, err := decodeObject(data, "message")
	if err != nil {
		return nil, err
	}

	return p.ParseMessage(obj)
}

func decodeObject(data []byte, what string) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, NewError(ErrorShape, "", fmt.Sprintf("decode %s: %v", what, err))
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, NewError(ErrorShape, "", fmt.Sprintf("expected object, got %T", raw))
	}
	return obj, nil
}

// ParseUpdate parses a decoded update object.
func (p Parser) ParseUpdate(raw map[string]any) (*Update, error) {
	f := newFields("", raw)
	u := &Update{}

	var err error
	if u.ID, err = f.int64("update_id", true); err != nil {
		return nil, err
	}

	var present []UpdateKind
	for _, kind := range messageKinds {
		if f.has(string(kind)) {
			present = append(present, kind)
		}
	}
	if f.has(string(KindCallbackQuery)) {
		present = append(present, KindCallbackQuery)
	}

	switch {
	case len(present) == 0:
		if p.Strict {
			return nil, NewError(ErrorUnknownType, "", "update carries no recognized payload")
		}
		return u, nil
	case len(present) > 1 && p.Strict:
		return nil, NewError(ErrorDuplicateType, "", fmt.Sprintf("update is both %s and %s", present[0], present[1]))
	}

	u.Kind = present[0]
	obj, err := f.object(string(u.Kind), true)
	if err != nil {
		return nil, err
	}

	if u.Kind == KindCallbackQuery {
		u.CallbackQuery, err = p.parseCallbackQuery(string(u.Kind), obj)
	} else {
		u.Message, err = p.parseMessage(string(u.Kind), obj)
	}
	if err != nil {
		return nil, err
	}

	if err := f.finish(p.Strict); err != nil {
		return nil, err
	}

	return u, nil
}

// IsMessage reports whether the update carries a message of any kind.
func (u *Update) IsMessage() bool {
	return u != nil && u.Message != nil
}

// IsEdit reports whether the update is an edit of an earlier message.
func (u *Update) IsEdit() bool {
	return u != nil && (u.Kind == KindEditedMessage || u.Kind == KindEditedChannelPost)
}

// ChatID returns the conversation the update belongs to, if any.
func (u *Update) ChatID() (int64, bool) {
	switch {
	case u == nil:
		return 0, false
	case u.Message != nil:
		return u.Message.Chat.ID, true
	case u.CallbackQuery != nil:
		return u.CallbackQuery.ChatID()
	default:
		return 0, false
	}
}
