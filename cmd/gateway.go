package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"botline/pkg/bot"
	"botline/pkg/bus"
	"botline/pkg/channel"
	"botline/pkg/channel/botapi"
	"botline/pkg/channel/telegram"
	"botline/pkg/channel/webhook"
	"botline/pkg/config"
	"botline/pkg/gateway"
	"botline/pkg/keychain"
	"botline/pkg/logger"
	"botline/pkg/store"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the bot with health and readiness endpoints",
	Long:  "Runs Botline against the Telegram Bot API using polling or a webhook, serving health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig(keychain.Get)
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.gateway")
		gin.SetMode(gin.ReleaseMode)

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conversations, err := openStore(cfg.Store)
		if err != nil {
			log.Error("Failed to open conversation store", "driver", cfg.Store.Driver, "error", err)
			return
		}

		caller, sources, err := buildTransport(cfg, appLogger)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return
		}

		mb := bus.NewMessageBus()
		mb.SetLogger(appLogger.With("component", "bus"))
		defer mb.Close()

		b, err := bot.New(caller, mb, bot.Options{
			Strict:      cfg.Bot.Strict,
			Immediate:   cfg.Bot.Immediate,
			Username:    cfg.Bot.Username,
			Store:       conversations,
			CallTimeout: time.Duration(cfg.Bot.CallTimeoutSeconds) * time.Second,
			Logger:      appLogger,
		})
		if err != nil {
			log.Error("Failed to initialize bot", "error", err)
			return
		}
		registerHandlers(b, appLogger)

		svc, err := gateway.NewService(cfg, mb, b, sources, appLogger)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Gateway started",
			"sources", sourceNames(sources),
			"client", cfg.Channels.Telegram.Client,
			"strict", cfg.Bot.Strict,
			"store", cfg.Store.Driver,
		)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

// buildTransport picks the outbound caller and the inbound sources from config.
func buildTransport(cfg *config.Config, log *slog.Logger) (channel.Caller, []channel.Source, error) {
	tg := cfg.Channels.Telegram

	var caller channel.Caller
	var poller channel.Source
	switch tg.Client {
	case config.ClientHTTP:
		client, err := botapi.NewClient(tg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("configure http client: %w", err)
		}
		caller = client
		if poller, err = botapi.NewPoller(client, tg.PollTimeoutSeconds); err != nil {
			return nil, nil, err
		}
	default:
		client, err := telegram.NewClient(tg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("configure telegram client: %w", err)
		}
		if caller, err = telegram.NewCaller(client, log); err != nil {
			return nil, nil, err
		}
		if poller, err = telegram.NewSource(client, tg, log); err != nil {
			return nil, nil, err
		}
	}

	if tg.Mode == config.ModeWebhook {
		return caller, []channel.Source{webhook.New(cfg.Webhook, log)}, nil
	}
	return caller, []channel.Source{poller}, nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StorePostgres:
		db, err := store.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.StoreMemory, "":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func sourceNames(sources []channel.Source) string {
	names := make([]string, 0, len(sources))
	for _, source := range sources {
		names = append(names, source.Name())
	}

	return strings.Join(names, ",")
}
