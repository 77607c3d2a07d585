package channel

import (
	"context"
	"encoding/json"
)

// Sink accepts one raw update payload from a source.
type Sink func(ctx context.Context, payload []byte) error

// Source delivers raw updates from one external transport, for example
// Telegram long polling or a webhook.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// Caller executes one outbound Bot API method and returns its raw result.
type Caller interface {
	Call(ctx context.Context, method string, params Params) (json.RawMessage, error)
}

// Params holds method parameters. Values are strings, numbers, booleans or
// InputFile.
type Params map[string]any

// InputFile references a file to send: an existing remote id, a URL the
// remote service fetches, or a local path to upload.
type InputFile struct {
	ID   string
	URL  string
	Path string
}

// MarshalJSON encodes remote references as plain strings.
func (f InputFile) MarshalJSON() ([]byte, error) {
	switch {
	case f.ID != "":
		return json.Marshal(f.ID)
	case f.URL != "":
		return json.Marshal(f.URL)
	default:
		return json.Marshal("attach://" + f.Path)
	}
}

// Int64 reads an integer parameter.
func (p Params) Int64(key string) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Float reads a floating point parameter.
func (p Params) Float(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// String reads a string parameter.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Bool reads a boolean parameter.
func (p Params) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// File reads a file parameter. Plain strings are treated as remote ids.
func (p Params) File(key string) (InputFile, bool) {
	switch v := p[key].(type) {
	case InputFile:
		return v, true
	case *InputFile:
		if v != nil {
			return *v, true
		}
	case string:
		if v != "" {
			return InputFile{ID: v}, true
		}
	}
	return InputFile{}, false
}

// Files returns the parameters that need a multipart upload.
func (p Params) Files() map[string]string {
	var uploads map[string]string
	for key := range p {
		file, ok := p[key].(InputFile)
		if !ok || file.ID != "" || file.URL != "" || file.Path == "" {
			continue
		}
		if uploads == nil {
			uploads = make(map[string]string)
		}
		uploads[key] = file.Path
	}
	return uploads
}
