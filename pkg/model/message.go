package model

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// ContentType names the single content variant carried by a Message.
type ContentType string

const (
	ContentNone     ContentType = ""
	ContentText     ContentType = "text"
	ContentAudio    ContentType = "audio"
	ContentDocument ContentType = "document"
	ContentPhoto    ContentType = "photo"
	ContentSticker  ContentType = "sticker"
	ContentVideo    ContentType = "video"
	ContentVoice    ContentType = "voice"
	ContentContact  ContentType = "contact"
	ContentLocation ContentType = "location"
	ContentVenue    ContentType = "venue"
	ContentGame     ContentType = "game"
	ContentUpdate   ContentType = "update"
)

// MaxCaptionLength bounds media captions in strict mode.
const MaxCaptionLength = 200

// Message is one message in a conversation. Exactly one content field
// matching Type is set.
type Message struct {
	ID   int64
	Date time.Time
	Chat Chat
	// From is nil for channel posts.
	From *Chat
	Type ContentType

	Text     string
	Command  *Command
	Mentions Mentions
	Caption  string

	Audio    *Audio
	Document *Document
	Photo    *Photo
	Sticker  *Sticker
	Video    *Video
	Voice    *Voice
	Contact  *Contact
	Location *Location
	Venue    *Venue
	Game     *Game
	Update   *ChatUpdate

	Forward  *Forward
	ReplyTo  *Message
	EditedAt time.Time
}

// Forward records where a forwarded message originally came from.
type Forward struct {
	From Chat
	Date time.Time
}

type Audio struct {
	File
	Duration  int
	Performer string
	Title     string
}

type Document struct {
	File
	FileName string
}

type Sticker struct {
	Image
	Emoji string
}

type Video struct {
	Image
	Duration int
}

type Voice struct {
	File
	Duration int
}

type Contact struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	UserID      int64
}

type Location struct {
	Latitude  float64
	Longitude float64
}

type Venue struct {
	Location     Location
	Title        string
	Address      string
	FoursquareID string
}

type Game struct {
	Title       string
	Description string
	Text        string
	Photo       *Photo
}

// recognizer claims a message payload when its discriminating field is present.
type recognizer struct {
	content ContentType
	match   func(f *fields) bool
	parse   func(p Parser, f *fields, m *Message) error
}

// recognizers is the fixed match order for message content. It is filled in
// init because pinned chat updates parse a nested message.
var recognizers []recognizer

func init() {
	recognizers = []recognizer{
		{ContentText, present("text"), parseText},
		{ContentAudio, present("audio"), parseAudio},
		{ContentDocument, present("document"), parseDocument},
		{ContentPhoto, present("photo"), parsePhotoContent},
		{ContentSticker, present("sticker"), parseSticker},
		{ContentVideo, present("video"), parseVideo},
		{ContentVoice, present("voice"), parseVoice},
		{ContentContact, present("contact"), parseContact},
		{ContentLocation, func(f *fields) bool { return f.has("location") && !f.has("venue") }, parseLocationContent},
		{ContentVenue, present("venue"), parseVenue},
		{ContentGame, present("game"), parseGame},
		{ContentUpdate, func(f *fields) bool { return len(chatUpdateKinds(f)) > 0 }, parseChatUpdate},
	}
}

func present(key string) func(f *fields) bool {
	return func(f *fields) bool { return f.has(key) }
}

// ParseMessage parses a message object.
func (p Parser) ParseMessage(raw map[string]any) (*Message, error) {
	return p.parseMessage("message", raw)
}

func (p Parser) parseMessage(path string, raw map[string]any) (*Message, error) {
	f := newFields(path, raw)
	m := &Message{}

	var err error
	if m.ID, err = f.int64("message_id", true); err != nil {
		return nil, err
	}
	date, err := f.int64("date", true)
	if err != nil {
		return nil, err
	}
	m.Date = unixTime(date)

	chatRaw, err := f.object("chat", true)
	if err != nil {
		return nil, err
	}
	chat, err := p.parseChat(f.at("chat"), chatRaw, "")
	if err != nil {
		return nil, err
	}
	m.Chat = *chat

	fromRaw, err := f.object("from", false)
	if err != nil {
		return nil, err
	}
	if fromRaw != nil {
		if m.From, err = p.parseChat(f.at("from"), fromRaw, ChatUser); err != nil {
			return nil, err
		}
	}

	if err := p.parseProvenance(f, m); err != nil {
		return nil, err
	}

	if err := p.parseContent(f, m); err != nil {
		return nil, err
	}

	if err := f.finish(p.Strict); err != nil {
		return nil, err
	}

	return m, nil
}

func (p Parser) parseProvenance(f *fields, m *Message) error {
	editDate, err := f.int64("edit_date", false)
	if err != nil {
		return err
	}
	if editDate != 0 {
		m.EditedAt = unixTime(editDate)
	}

	replyRaw, err := f.object("reply_to_message", false)
	if err != nil {
		return err
	}
	if replyRaw != nil {
		if m.ReplyTo, err = p.parseMessage(f.at("reply_to_message"), replyRaw); err != nil {
			return err
		}
	}

	if !f.has("forward_date") && !f.has("forward_from") && !f.has("forward_from_chat") {
		return nil
	}

	forwardDate, err := f.int64("forward_date", true)
	if err != nil {
		return err
	}

	var origin *Chat
	userRaw, err := f.object("forward_from", false)
	if err != nil {
		return err
	}
	chatRaw, err := f.object("forward_from_chat", false)
	if err != nil {
		return err
	}
	switch {
	case userRaw != nil:
		origin, err = p.parseChat(f.at("forward_from"), userRaw, ChatUser)
	case chatRaw != nil:
		origin, err = p.parseChat(f.at("forward_from_chat"), chatRaw, "")
	default:
		if p.Strict {
			return NewError(ErrorMissingField, f.at("forward_from"), "forwarded message has no origin")
		}
		return nil
	}
	if err != nil {
		return err
	}

	m.Forward = &Forward{From: *origin, Date: unixTime(forwardDate)}
	return nil
}

func (p Parser) parseContent(f *fields, m *Message) error {
	for _, r := range recognizers {
		if !r.match(f) {
			continue
		}

		if m.Type != ContentNone {
			if !p.Strict {
				return nil
			}
			return NewError(ErrorDuplicateType, f.path, fmt.Sprintf("message is both %s and %s", m.Type, r.content))
		}

		if err := r.parse(p, f, m); err != nil {
			return err
		}
		m.Type = r.content
	}

	if m.Type == ContentNone && p.Strict {
		return NewError(ErrorUnknownType, f.path, "message has no recognized content")
	}

	return nil
}

func parseText(p Parser, f *fields, m *Message) error {
	text, err := f.string("text", true)
	if err != nil {
		return err
	}

	m.Text = text
	if cmd, ok := ParseCommand(text); ok {
		m.Command = cmd
	}
	m.Mentions = ParseMentions(text)
	return nil
}

func parseCaption(p Parser, f *fields, m *Message) error {
	caption, err := f.string("caption", false)
	if err != nil {
		return err
	}
	if p.Strict && utf8.RuneCountInString(caption) > MaxCaptionLength {
		return NewError(ErrorInvariant, f.at("caption"), fmt.Sprintf("caption exceeds %d characters", MaxCaptionLength))
	}

	m.Caption = caption
	return nil
}

func (p Parser) child(f *fields, key string) (*fields, error) {
	raw, err := f.object(key, true)
	if err != nil {
		return nil, err
	}
	return newFields(f.at(key), raw), nil
}

func parseAudio(p Parser, f *fields, m *Message) error {
	sub, err := p.child(f, "audio")
	if err != nil {
		return err
	}

	file, err := readFile(sub)
	if err != nil {
		return err
	}
	audio := &Audio{File: file}
	duration, err := sub.int64("duration", false)
	if err != nil {
		return err
	}
	audio.Duration = int(duration)
	if audio.Performer, err = sub.string("performer", false); err != nil {
		return err
	}
	if audio.Title, err = sub.string("title", false); err != nil {
		return err
	}
	if _, err := sub.string("file_name", false); err != nil {
		return err
	}
	if err := sub.finish(p.Strict); err != nil {
		return err
	}

	m.Audio = audio
	return parseCaption(p, f, m)
}

func parseDocument(p Parser, f *fields, m *Message) error {
	sub, err := p.child(f, "document")
	if err != nil {
		return err
	}

	file, err := readFile(sub)
	if err != nil {
		return err
	}
	doc := &Document{File: file}
	if doc.FileName, err = sub.string("file_name", false); err != nil {
		return err
	}
	if err := sub.finish(p.Strict); err != nil {
		return err
	}

	// Animations are delivered with a document twin.
	f.consume("animation")

	m.Document = doc
	return parseCaption(p, f, m)
}

func parsePhotoContent(p Parser, f *fields, m *Message) error {
	entries, err := f.array("photo", true)
	if err != nil {
		return err
	}

	photo, err := p.parsePhoto(f.at("photo"), entries)
	if err != nil {
		return err
	}

	m.Photo = photo
	return parseCaption(p, f, m)
}

func parseSticker(p Parser, f *fields, m *Message) error {
	sub, err := p.child(f, "sticker")
	if err != nil {
		return err
	}

	image, err := readImage(sub)
	if err != nil {
		return err
	}
	sticker := &Sticker{Image: image}
	if sticker.Emoji, err = sub.string("emoji", false); err != nil {
		return err
	}
	for _, key := range []string{"type", "set_name", "is_animated", "is_video"} {
		sub.consume(key)
	}
	if err := sub.finish(p.Strict); err != nil {
		return err
	}

	m.Sticker = sticker
	return nil
}

func parseVideo(p Parser, f *fields, m *Message) error {
	sub, err := p.child(f, "video")
	if err != nil {
		return err
	}

	image, err := readImage(sub)
	if err != nil {
		return err
	}
	video := &Video{Image: image}
	duration, err := sub.int64("duration", false)
	if err != nil {
		return err
	}
	video.Duration = int(duration)
	if _, err := sub.string("file_name", false); err != nil {
		return err
	}
	if err := sub.finish(p.Strict); err != nil {
		return err
	}

	m.Video = video
	return parseCaption(p, f, m)
}

func parseVoice(p Parser, f *fields, m *Message) error {
	sub, err := p.child(f, "voice")
	if err != nil {
		return err
	}

	file, err := readFile(sub)
	if err != nil {
		return err
	}
	voice := &Voice{File: file}
	duration, err := sub.int64("duration", false)
	if err != nil {
		return err
	}
	voice.Duration = int(duration)
	if err := sub.finish(p.Strict); err != nil {
		return err
	}

	m.Voice = voice
	return parseCaption(p, f, m)
}

func parseContact(p Parser, f *fields, m *Message) error {
	sub, err := p.child(f, "contact")
	if err != nil {
		return err
	}

	contact := &Contact{}
	if contact.PhoneNumber, err = sub.string("phone_number", true); err != nil {
		return err
	}
	if contact.FirstName, err = sub.string("first_name", true); err != nil {
		return err
	}
	if contact.LastName, err = sub.string("last_name", false); err != nil {
		return err
	}
	if contact.UserID, err = sub.int64("user_id", false); err != nil {
		return err
	}
	sub.consume("vcard")
	if err := sub.finish(p.Strict); err != nil {
		return err
	}

	m.Contact = contact
	return nil
}

func readLocation(p Parser, sub *fields) (Location, error) {
	var (
		loc Location
		err error
	)
	if loc.Latitude, err = sub.float("latitude", true); err != nil {
		return Location{}, err
	}
	if loc.Longitude, err = sub.float("longitude", true); err != nil {
		return Location{}, err
	}
	sub.consume("horizontal_accuracy")
	if err := sub.finish(p.Strict); err != nil {
		return Location{}, err
	}

	return loc, nil
}

func parseLocationContent(p Parser, f *fields, m *Message) error {
	sub, err := p.child(f, "location")
	if err != nil {
		return err
	}

	loc, err := readLocation(p, sub)
	if err != nil {
		return err
	}

	m.Location = &loc
	return nil
}

func parseVenue(p Parser, f *fields, m *Message) error {
	sub, err := p.child(f, "venue")
	if err != nil {
		return err
	}

	venue := &Venue{}
	locSub, err := p.child(sub, "location")
	if err != nil {
		return err
	}
	if venue.Location, err = readLocation(p, locSub); err != nil {
		return err
	}
	if venue.Title, err = sub.string("title", true); err != nil {
		return err
	}
	if venue.Address, err = sub.string("address", true); err != nil {
		return err
	}
	if venue.FoursquareID, err = sub.string("foursquare_id", false); err != nil {
		return err
	}
	if err := sub.finish(p.Strict); err != nil {
		return err
	}

	// The outer location duplicates venue.location.
	f.consume("location")

	m.Venue = venue
	return nil
}

func parseGame(p Parser, f *fields, m *Message) error {
	sub, err := p.child(f, "game")
	if err != nil {
		return err
	}

	game := &Game{}
	if game.Title, err = sub.string("title", true); err != nil {
		return err
	}
	if game.Description, err = sub.string("description", false); err != nil {
		return err
	}
	if game.Text, err = sub.string("text", false); err != nil {
		return err
	}
	entries, err := sub.array("photo", false)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		if game.Photo, err = p.parsePhoto(sub.at("photo"), entries); err != nil {
			return err
		}
	}
	sub.consume("text_entities")
	sub.consume("animation")
	if err := sub.finish(p.Strict); err != nil {
		return err
	}

	m.Game = game
	return nil
}

func unixTime(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
