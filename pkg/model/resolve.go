package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolveChat normalizes a chat reference to its numeric id.
func ResolveChat(v any) (int64, error) {
	switch ref := v.(type) {
	case int:
		return int64(ref), nil
	case int32:
		return int64(ref), nil
	case int64:
		return ref, nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
		if err != nil {
			return 0, NewError(ErrorResolution, "", fmt.Sprintf("chat reference %q is not numeric", ref))
		}
		return id, nil
	case Chat:
		return ref.ID, nil
	case *Chat:
		if ref != nil {
			return ref.ID, nil
		}
	case *Message:
		if ref != nil {
			return ref.Chat.ID, nil
		}
	}

	return 0, NewError(ErrorResolution, "", fmt.Sprintf("cannot resolve chat from %T", v))
}

// ResolveFile normalizes a file reference to its remote id.
func ResolveFile(v any) (string, error) {
	switch ref := v.(type) {
	case string:
		if strings.TrimSpace(ref) != "" {
			return ref, nil
		}
	case File:
		return ref.ID, nil
	case *File:
		if ref != nil {
			return ref.ID, nil
		}
	case Image:
		return ref.ID, nil
	case *Image:
		if ref != nil {
			return ref.ID, nil
		}
	case *Photo:
		if ref != nil {
			return ref.Best.ID, nil
		}
	}

	return "", NewError(ErrorResolution, "", fmt.Sprintf("cannot resolve file from %T", v))
}

// ResolveMessage normalizes a message reference to its numeric id.
func ResolveMessage(v any) (int64, error) {
	switch ref := v.(type) {
	case int:
		return int64(ref), nil
	case int32:
		return int64(ref), nil
	case int64:
		return ref, nil
	case Message:
		return ref.ID, nil
	case *Message:
		if ref != nil {
			return ref.ID, nil
		}
	}

	return 0, NewError(ErrorResolution, "", fmt.Sprintf("cannot resolve message from %T", v))
}
