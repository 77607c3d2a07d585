package model

import (
	"fmt"
	"strings"
)

// ChatType discriminates the kinds of conversation a Chat can be.
type ChatType string

const (
	ChatUser       ChatType = "user"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Chat identifies a conversation or a person.
//
// Name is the display name: the title for groups and channels, "first last"
// for users.
type Chat struct {
	ID        int64
	Type      ChatType
	Name      string
	Title     string
	Username  string
	FirstName string
	LastName  string
}

// IsUser reports whether the chat is a person.
func (c Chat) IsUser() bool {
	return c.Type == ChatUser
}

// IsGroup reports whether the chat is a group or supergroup.
func (c Chat) IsGroup() bool {
	return c.Type == ChatGroup || c.Type == ChatSupergroup
}

func chatTypeFromWire(tag string) (ChatType, bool) {
	switch tag {
	case "private", "user":
		return ChatUser, true
	case "group":
		return ChatGroup, true
	case "supergroup":
		return ChatSupergroup, true
	case "channel":
		return ChatChannel, true
	default:
		return "", false
	}
}

// ParseChat parses a chat object carrying a type tag.
func (p Parser) ParseChat(raw map[string]any) (*Chat, error) {
	return p.parseChat("chat", raw, "")
}

// ParseUser parses a sender object. Senders carry no type tag and are users.
func (p Parser) ParseUser(raw map[string]any) (*Chat, error) {
	return p.parseChat("from", raw, ChatUser)
}

func (p Parser) parseChat(path string, raw map[string]any, implied ChatType) (*Chat, error) {
	f := newFields(path, raw)

	id, err := f.int64("id", true)
	if err != nil {
		return nil, err
	}

	chat := &Chat{ID: id, Type: implied}
	if implied == "" || f.has("type") {
		tag, err := f.string("type", true)
		if err != nil {
			return nil, err
		}
		chatType, ok := chatTypeFromWire(tag)
		if !ok {
			return nil, NewError(ErrorUnknownType, f.at("type"), fmt.Sprintf("unrecognized chat type %q", tag))
		}
		chat.Type = chatType
	}

	if chat.Title, err = f.string("title", false); err != nil {
		return nil, err
	}
	if chat.Username, err = f.string("username", false); err != nil {
		return nil, err
	}
	if chat.FirstName, err = f.string("first_name", false); err != nil {
		return nil, err
	}
	if chat.LastName, err = f.string("last_name", false); err != nil {
		return nil, err
	}

	if p.Strict {
		if err := validateChat(path, chat); err != nil {
			return nil, err
		}
	}
	if err := f.finish(p.Strict); err != nil {
		return nil, err
	}

	chat.Name = displayName(chat)
	return chat, nil
}

func validateChat(path string, chat *Chat) error {
	personal := chat.FirstName != "" || chat.LastName != ""

	switch chat.Type {
	case ChatUser:
		if chat.FirstName == "" {
			return NewError(ErrorInvariant, path, "user chat requires first_name")
		}
		if chat.Title != "" {
			return NewError(ErrorInvariant, path, "user chat cannot have a title")
		}
	case ChatGroup, ChatSupergroup:
		if chat.Title == "" {
			return NewError(ErrorInvariant, path, fmt.Sprintf("%s chat requires title", chat.Type))
		}
		if personal {
			return NewError(ErrorInvariant, path, fmt.Sprintf("%s chat cannot have personal name fields", chat.Type))
		}
	case ChatChannel:
		if chat.Username == "" {
			return NewError(ErrorInvariant, path, "channel chat requires username")
		}
		if personal {
			return NewError(ErrorInvariant, path, "channel chat cannot have personal name fields")
		}
	}

	return nil
}

func displayName(chat *Chat) string {
	if chat.Type == ChatUser {
		return strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}
	if chat.Title != "" {
		return chat.Title
	}

	return chat.Username
}
