package botapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	gojson "github.com/goccy/go-json"

	"botline/pkg/channel"
)

const pollRetryDelay = 2 * time.Second

// Poller is a long-polling update source built on getUpdates.
type Poller struct {
	client  *Client
	timeout int
	offset  int64
	log     *slog.Logger
}

func NewPoller(client *Client, timeoutSeconds int) (*Poller, error) {
	if client == nil {
		return nil, errors.New("bot api client is required")
	}
	if timeoutSeconds < 0 {
		timeoutSeconds = 0
	}

	return &Poller{
		client:  client,
		timeout: timeoutSeconds,
		log:     client.log.With("source", "getUpdates"),
	}, nil
}

func (p *Poller) Name() string {
	return "telegram.http"
}

// Run polls until ctx is done. Each raw update goes to sink unchanged and the
// offset advances past it whether or not sink accepts it.
func (p *Poller) Run(ctx context.Context, sink channel.Sink) error {
	if sink == nil {
		return errors.New("sink is required")
	}

	p.log.Info("Bot API polling started", "timeout", p.timeout)
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := p.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, raw := range updates {
			var head struct {
				UpdateID int64 `json:"update_id"`
			}
			if err := gojson.Unmarshal(raw, &head); err != nil {
				p.log.Warn("Skipping undecodable update", "error", err)
				continue
			}
			if head.UpdateID >= p.offset {
				p.offset = head.UpdateID + 1
			}

			if err := sink(ctx, raw); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.log.Debug("Update not accepted", "update_id", head.UpdateID, "error", err)
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) ([]json.RawMessage, error) {
	params := channel.Params{"timeout": p.timeout}
	if p.offset > 0 {
		params["offset"] = p.offset
	}

	result, err := p.client.Call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []json.RawMessage
	if err := gojson.Unmarshal(result, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
