package model

import "fmt"

// ChatUpdateKind names a membership or administrative change.
type ChatUpdateKind string

const (
	MemberJoined ChatUpdateKind = "joined"
	MemberLeft   ChatUpdateKind = "left"
	TitleChanged ChatUpdateKind = "title_changed"
	PhotoChanged ChatUpdateKind = "photo_changed"
	PhotoRemoved ChatUpdateKind = "photo_removed"
	ChatCreated  ChatUpdateKind = "created"
	ChatMigrated ChatUpdateKind = "migrated"
	MessagePin   ChatUpdateKind = "pinned"
)

// ChatUpdate is the administrative content variant of a Message.
type ChatUpdate struct {
	Kind ChatUpdateKind
	// Members holds joined participants, or the single departed one.
	Members []Chat
	Title   string
	Photo   *Photo
	// MigrateToID and MigrateFromID are set for group to supergroup upgrades.
	MigrateToID   int64
	MigrateFromID int64
	Pinned        *Message
}

// chatUpdateKeys maps each wire discriminator to its kind, in match order.
var chatUpdateKeys = []struct {
	key  string
	kind ChatUpdateKind
}{
	{"new_chat_members", MemberJoined},
	{"new_chat_member", MemberJoined},
	{"new_chat_participant", MemberJoined},
	{"left_chat_member", MemberLeft},
	{"left_chat_participant", MemberLeft},
	{"new_chat_title", TitleChanged},
	{"new_chat_photo", PhotoChanged},
	{"delete_chat_photo", PhotoRemoved},
	{"group_chat_created", ChatCreated},
	{"supergroup_chat_created", ChatCreated},
	{"channel_chat_created", ChatCreated},
	{"migrate_to_chat_id", ChatMigrated},
	{"migrate_from_chat_id", ChatMigrated},
	{"pinned_message", MessagePin},
}

// chatUpdateKinds returns the distinct kinds present, in match order.
func chatUpdateKinds(f *fields) []ChatUpdateKind {
	var kinds []ChatUpdateKind
	seen := make(map[ChatUpdateKind]struct{})
	for _, entry := range chatUpdateKeys {
		if !f.has(entry.key) {
			continue
		}
		if _, ok := seen[entry.kind]; ok {
			continue
		}
		seen[entry.kind] = struct{}{}
		kinds = append(kinds, entry.kind)
	}
	return kinds
}

func parseChatUpdate(p Parser, f *fields, m *Message) error {
	kinds := chatUpdateKinds(f)
	if len(kinds) > 1 && p.Strict {
		return NewError(ErrorDuplicateType, f.path, fmt.Sprintf("message carries updates %s and %s", kinds[0], kinds[1]))
	}

	update := &ChatUpdate{Kind: kinds[0]}
	var err error

	switch update.Kind {
	case MemberJoined:
		update.Members, err = p.joinedMembers(f)
	case MemberLeft:
		update.Members, err = p.leftMember(f)
	case TitleChanged:
		update.Title, err = f.string("new_chat_title", true)
	case PhotoChanged:
		var entries []any
		if entries, err = f.array("new_chat_photo", true); err == nil {
			update.Photo, err = p.parsePhoto(f.at("new_chat_photo"), entries)
		}
	case PhotoRemoved:
		_, err = f.bool("delete_chat_photo")
	case ChatCreated:
		for _, key := range []string{"group_chat_created", "supergroup_chat_created", "channel_chat_created"} {
			if _, err = f.bool(key); err != nil {
				break
			}
		}
	case ChatMigrated:
		if update.MigrateToID, err = f.int64("migrate_to_chat_id", false); err == nil {
			update.MigrateFromID, err = f.int64("migrate_from_chat_id", false)
		}
	case MessagePin:
		var raw map[string]any
		if raw, err = f.object("pinned_message", true); err == nil {
			update.Pinned, err = p.parseMessage(f.at("pinned_message"), raw)
		}
	}
	if err != nil {
		return err
	}

	m.Update = update
	return nil
}

func (p Parser) joinedMembers(f *fields) ([]Chat, error) {
	entries, err := f.array("new_chat_members", false)
	if err != nil {
		return nil, err
	}

	members := make([]Chat, 0, len(entries))
	for i, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, NewError(ErrorShape, indexPath(f.at("new_chat_members"), i), "expected object")
		}
		member, err := p.parseChat(indexPath(f.at("new_chat_members"), i), obj, ChatUser)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}

	// Older payloads carry a single participant, often duplicating the list.
	for _, key := range []string{"new_chat_member", "new_chat_participant"} {
		raw, err := f.object(key, false)
		if err != nil {
			return nil, err
		}
		if raw == nil || len(members) > 0 {
			continue
		}
		member, err := p.parseChat(f.at(key), raw, ChatUser)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}

	return members, nil
}

func (p Parser) leftMember(f *fields) ([]Chat, error) {
	var members []Chat
	for _, key := range []string{"left_chat_member", "left_chat_participant"} {
		raw, err := f.object(key, false)
		if err != nil {
			return nil, err
		}
		if raw == nil || len(members) > 0 {
			continue
		}
		member, err := p.parseChat(f.at(key), raw, ChatUser)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}

	return members, nil
}
