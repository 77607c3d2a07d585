// Package botapi calls the Telegram Bot API over plain HTTP with resty. Any
// method name is accepted and results are returned undecoded.
package botapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"botline/pkg/channel"
	"botline/pkg/config"
)

const defaultBaseURL = "https://api.telegram.org"

// APIError is a failure reported by the Bot API itself.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: api error %d: %s", e.Method, e.Code, e.Description)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %ds)", e.RetryAfter)
	}
	return msg
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type Client struct {
	http    *resty.Client
	token   string
	baseURL string
	log     *slog.Logger
}

// NewClient builds an HTTP Bot API client from the Telegram channel config.
func NewClient(cfg config.TelegramConfig, log *slog.Logger) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}
	if log == nil {
		log = slog.Default()
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}

	httpClient := resty.New().
		SetTimeout(time.Duration(cfg.PollTimeoutSeconds)*time.Second+30*time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		http:    httpClient,
		token:   token,
		baseURL: base,
		log:     log.With("component", "channel.botapi"),
	}, nil
}

// Call posts method with params. Parameters holding local files are sent as
// multipart form data, everything else as a JSON body.
func (c *Client) Call(ctx context.Context, method string, params channel.Params) (json.RawMessage, error) {
	requestID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID)

	if uploads := params.Files(); len(uploads) > 0 {
		form, err := formData(params, uploads)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", method)
		}
		req.SetFiles(uploads).SetFormData(form)
	} else {
		if params == nil {
			params = channel.Params{}
		}
		req.SetHeader("Content-Type", "application/json").SetBody(params)
	}

	resp, err := req.Post(c.methodURL(method))
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}

	var env envelope
	if err := gojson.Unmarshal(resp.Body(), &env); err != nil {
		return nil, errors.Wrapf(err, "decode %s response (status %d)", method, resp.StatusCode())
	}
	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode()
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		c.log.Debug("Bot API call failed", "method", method, "request_id", requestID, "code", apiErr.Code)
		return nil, apiErr
	}

	return env.Result, nil
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

// formData flattens the non-upload parameters into form fields.
func formData(params channel.Params, uploads map[string]string) (map[string]string, error) {
	form := make(map[string]string, len(params))
	for key, value := range params {
		if _, ok := uploads[key]; ok {
			continue
		}

		switch v := value.(type) {
		case string:
			form[key] = v
		case bool:
			form[key] = strconv.FormatBool(v)
		case int:
			form[key] = strconv.Itoa(v)
		case int64:
			form[key] = strconv.FormatInt(v, 10)
		case float64:
			form[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case channel.InputFile:
			if v.ID != "" {
				form[key] = v.ID
			} else {
				form[key] = v.URL
			}
		default:
			data, err := gojson.Marshal(v)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s", key)
			}
			form[key] = string(data)
		}
	}
	return form, nil
}
