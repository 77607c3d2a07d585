package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	gojson "github.com/goccy/go-json"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"botline/pkg/channel"
)

// ErrUnsupportedMethod is returned for methods the typed client does not map.
var ErrUnsupportedMethod = errors.New("telegram: unsupported method")

var okResult = json.RawMessage("true")

// Caller sends outbound actions through telego's typed methods.
type Caller struct {
	bot *telego.Bot
	log *slog.Logger
}

func NewCaller(bot *telego.Bot, log *slog.Logger) (*Caller, error) {
	if bot == nil {
		return nil, errors.New("telegram client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Caller{bot: bot, log: log.With("component", "channel.telegram")}, nil
}

// Call executes one Bot API method and returns the result encoded as JSON.
func (c *Caller) Call(ctx context.Context, method string, params channel.Params) (json.RawMessage, error) {
	chat := tu.ID(params.Int64("chat_id"))

	var files openFiles
	defer files.close()

	switch method {
	case "sendMessage":
		p := tu.Message(chat, params.String("text"))
		p.ParseMode = params.String("parse_mode")
		return encode(c.bot.SendMessage(ctx, p))

	case "sendPhoto":
		file, err := files.input(params, "photo")
		if err != nil {
			return nil, err
		}
		p := tu.Photo(chat, file)
		p.Caption = params.String("caption")
		return encode(c.bot.SendPhoto(ctx, p))

	case "sendDocument":
		file, err := files.input(params, "document")
		if err != nil {
			return nil, err
		}
		p := tu.Document(chat, file)
		p.Caption = params.String("caption")
		return encode(c.bot.SendDocument(ctx, p))

	case "sendAudio":
		file, err := files.input(params, "audio")
		if err != nil {
			return nil, err
		}
		p := tu.Audio(chat, file)
		p.Caption = params.String("caption")
		return encode(c.bot.SendAudio(ctx, p))

	case "sendVideo":
		file, err := files.input(params, "video")
		if err != nil {
			return nil, err
		}
		p := tu.Video(chat, file)
		p.Caption = params.String("caption")
		return encode(c.bot.SendVideo(ctx, p))

	case "sendVoice":
		file, err := files.input(params, "voice")
		if err != nil {
			return nil, err
		}
		p := tu.Voice(chat, file)
		p.Caption = params.String("caption")
		return encode(c.bot.SendVoice(ctx, p))

	case "sendSticker":
		file, err := files.input(params, "sticker")
		if err != nil {
			return nil, err
		}
		return encode(c.bot.SendSticker(ctx, tu.Sticker(chat, file)))

	case "sendLocation":
		return encode(c.bot.SendLocation(ctx, tu.Location(chat, params.Float("latitude"), params.Float("longitude"))))

	case "sendVenue":
		return encode(c.bot.SendVenue(ctx, &telego.SendVenueParams{
			ChatID:    chat,
			Latitude:  params.Float("latitude"),
			Longitude: params.Float("longitude"),
			Title:     params.String("title"),
			Address:   params.String("address"),
		}))

	case "sendContact":
		return encode(c.bot.SendContact(ctx, &telego.SendContactParams{
			ChatID:      chat,
			PhoneNumber: params.String("phone_number"),
			FirstName:   params.String("first_name"),
			LastName:    params.String("last_name"),
		}))

	case "sendChatAction":
		return done(c.bot.SendChatAction(ctx, tu.ChatAction(chat, params.String("action"))))

	case "forwardMessage":
		return encode(c.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
			ChatID:     chat,
			FromChatID: tu.ID(params.Int64("from_chat_id")),
			MessageID:  int(params.Int64("message_id")),
		}))

	case "editMessageText":
		return encode(c.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
			ChatID:    chat,
			MessageID: int(params.Int64("message_id")),
			Text:      params.String("text"),
			ParseMode: params.String("parse_mode"),
		}))

	case "deleteMessage":
		return done(c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
			ChatID:    chat,
			MessageID: int(params.Int64("message_id")),
		}))

	case "answerCallbackQuery":
		return done(c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
			CallbackQueryID: params.String("callback_query_id"),
			Text:            params.String("text"),
			ShowAlert:       params.Bool("show_alert"),
			URL:             params.String("url"),
			CacheTime:       int(params.Int64("cache_time")),
		}))
	}

	c.log.Warn("Unsupported method for telego client", "method", method)
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

func encode(result *telego.Message, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	data, err := gojson.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}

func done(err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	return okResult, nil
}

// openFiles tracks local uploads opened for one call.
type openFiles []io.Closer

func (f *openFiles) input(params channel.Params, key string) (telego.InputFile, error) {
	ref, ok := params.File(key)
	if !ok {
		return telego.InputFile{}, fmt.Errorf("%s is required", key)
	}

	switch {
	case ref.ID != "":
		return tu.FileFromID(ref.ID), nil
	case ref.URL != "":
		return tu.FileFromURL(ref.URL), nil
	}

	file, err := os.Open(ref.Path)
	if err != nil {
		return telego.InputFile{}, fmt.Errorf("open %s: %w", key, err)
	}
	*f = append(*f, file)
	return tu.File(file), nil
}

func (f openFiles) close() {
	for _, file := range f {
		_ = file.Close()
	}
}
