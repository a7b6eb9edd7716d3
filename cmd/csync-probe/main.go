// Command csync-probe logs into a homeserver with csync, runs a handful of
// sync iterations, and prints what landed in each room. It exists to
// exercise the library against a real server by hand, not as a Matrix
// client for end users.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"go.mau.fi/csync"
)

type probeConfig struct {
	Homeserver string            `yaml:"homeserver"`
	UserID     string            `yaml:"user_id"`
	Password   string            `yaml:"password"`
	DeviceID   string            `yaml:"device_id"`
	LogConfig  zeroconfig.Config `yaml:"log_config"`
}

func defaultConfig() probeConfig {
	return probeConfig{
		LogConfig: zeroconfig.Config{
			Writers: []zeroconfig.WriterConfig{{
				Type:   zeroconfig.WriterTypeStdout,
				Format: zeroconfig.LogFormatPrettyColored,
			}},
		},
	}
}

func loadConfig(path string) (probeConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "csync-probe.yaml", "path to the probe's YAML config")
	iterations := flag.Int("iterations", 5, "number of sync iterations to run before exiting")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := cfg.LogConfig.Compile()
	if err != nil {
		fmt.Fprintln(os.Stderr, "compiling log config:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, *log, *iterations); err != nil {
		log.Error().Err(err).Msg("probe run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg probeConfig, log zerolog.Logger, iterations int) error {
	client, err := csync.NewClient(csync.LoginData{Homeserver: cfg.Homeserver}, nil, log)
	if err != nil {
		return fmt.Errorf("constructing client: %w", err)
	}

	if err := client.PasswordLogin(ctx, cfg.UserID, cfg.Password, "csync-probe", cfg.DeviceID); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	log.Info().Str("user_id", string(client.UserID())).Msg("logged in")

	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		start := time.Now()
		if err := client.Sync(ctx, 30000, csync.PresenceOnline); err != nil {
			return fmt.Errorf("sync iteration %d: %w", i, err)
		}
		log.Info().
			Int("iteration", i).
			Dur("elapsed", time.Since(start)).
			Int("joined_rooms", len(client.JoinedRooms())).
			Int("invited_rooms", len(client.InvitedState())).
			Msg("sync complete")
	}

	backfillHistory(ctx, client, log)
	return nil
}

// backfillHistory walks a little way backward from the oldest known event
// of each joined room, to exercise the hole-filling traversal against a
// real homeserver rather than only through sync.
func backfillHistory(ctx context.Context, client *csync.Client, log zerolog.Logger) {
	for roomID, room := range client.JoinedRooms() {
		first, err := room.Timeline.First()
		if err != nil {
			continue
		}
		enum := client.EnumerateBackward(room.Timeline, first)
		for steps := 0; steps < 10; steps++ {
			handle, ok, err := enum.Next(ctx)
			if err != nil {
				log.Warn().Err(err).Str("room_id", string(roomID)).Msg("backfill step failed")
				break
			}
			if !ok {
				break
			}
			ews, err := handle.EventWithState()
			if err != nil {
				log.Warn().Err(err).Str("room_id", string(roomID)).Msg("resolving backfilled handle")
				break
			}
			log.Info().
				Str("room_id", string(roomID)).
				Str("event_id", string(handle.EventID())).
				Str("sender", string(ews.Event.Sender)).
				Msg("backfilled event")
		}
	}
}
