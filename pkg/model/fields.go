package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// incidentalKeys are wire fields the parser accepts without modelling them.
var incidentalKeys = map[string]struct{}{
	"entities":                       {},
	"caption_entities":               {},
	"edit_date":                      {},
	"author_signature":               {},
	"forward_signature":              {},
	"forward_sender_name":            {},
	"forward_from_message_id":        {},
	"forward_origin":                 {},
	"media_group_id":                 {},
	"has_protected_content":          {},
	"has_media_spoiler":              {},
	"link_preview_options":           {},
	"message_thread_id":              {},
	"is_topic_message":               {},
	"is_automatic_forward":           {},
	"is_bot":                         {},
	"is_premium":                     {},
	"is_forum":                       {},
	"language_code":                  {},
	"added_to_attachment_menu":       {},
	"all_members_are_administrators": {},
	"reply_markup":                   {},
	"via_bot":                        {},
	"sender_chat":                    {},
	"thumbnail":                      {},
	"thumb":                          {},
}

// fields wraps one wire object and records which keys were consumed.
type fields struct {
	path string
	data map[string]any
	used map[string]struct{}
}

func newFields(path string, data map[string]any) *fields {
	return &fields{path: path, data: data, used: make(map[string]struct{}, len(data))}
}

func (f *fields) at(key string) string {
	if f.path == "" {
		return key
	}
	return f.path + "." + key
}

func (f *fields) has(key string) bool {
	value, ok := f.data[key]
	return ok && value != nil
}

func (f *fields) consume(key string) (any, bool) {
	value, ok := f.data[key]
	f.used[key] = struct{}{}
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

func (f *fields) int64(key string, required bool) (int64, error) {
	value, ok := f.consume(key)
	if !ok {
		if required {
			return 0, NewError(ErrorMissingField, f.at(key), "expected number")
		}
		return 0, nil
	}

	n, err := toInt64(value)
	if err != nil {
		return 0, NewError(ErrorShape, f.at(key), err.Error())
	}
	return n, nil
}

func (f *fields) float(key string, required bool) (float64, error) {
	value, ok := f.consume(key)
	if !ok {
		if required {
			return 0, NewError(ErrorMissingField, f.at(key), "expected number")
		}
		return 0, nil
	}

	n, err := toFloat(value)
	if err != nil {
		return 0, NewError(ErrorShape, f.at(key), err.Error())
	}
	return n, nil
}

func (f *fields) string(key string, required bool) (string, error) {
	value, ok := f.consume(key)
	if !ok {
		if required {
			return "", NewError(ErrorMissingField, f.at(key), "expected string")
		}
		return "", nil
	}

	s, isString := value.(string)
	if !isString {
		return "", NewError(ErrorShape, f.at(key), fmt.Sprintf("expected string, got %T", value))
	}
	return s, nil
}

func (f *fields) bool(key string) (bool, error) {
	value, ok := f.consume(key)
	if !ok {
		return false, nil
	}

	b, isBool := value.(bool)
	if !isBool {
		return false, NewError(ErrorShape, f.at(key), fmt.Sprintf("expected boolean, got %T", value))
	}
	return b, nil
}

func (f *fields) object(key string, required bool) (map[string]any, error) {
	value, ok := f.consume(key)
	if !ok {
		if required {
			return nil, NewError(ErrorMissingField, f.at(key), "expected object")
		}
		return nil, nil
	}

	obj, isObject := value.(map[string]any)
	if !isObject {
		return nil, NewError(ErrorShape, f.at(key), fmt.Sprintf("expected object, got %T", value))
	}
	return obj, nil
}

func (f *fields) array(key string, required bool) ([]any, error) {
	value, ok := f.consume(key)
	if !ok {
		if required {
			return nil, NewError(ErrorMissingField, f.at(key), "expected array")
		}
		return nil, nil
	}

	arr, isArray := value.([]any)
	if !isArray {
		return nil, NewError(ErrorShape, f.at(key), fmt.Sprintf("expected array, got %T", value))
	}
	return arr, nil
}

// finish reports leftover keys in strict mode.
func (f *fields) finish(strict bool) error {
	if !strict {
		return nil
	}

	var leftover []string
	for key := range f.data {
		if _, ok := f.used[key]; ok {
			continue
		}
		if _, ok := incidentalKeys[key]; ok {
			continue
		}
		leftover = append(leftover, key)
	}
	if len(leftover) == 0 {
		return nil
	}

	sort.Strings(leftover)
	return NewError(ErrorUnknownField, f.path, fmt.Sprintf("unrecognized fields %v", leftover))
}

type integer interface {
	Int64() (int64, error)
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	case integer:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case fmt.Stringer:
		n, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
}
