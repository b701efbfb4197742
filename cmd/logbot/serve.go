package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"logbot-service/internal/actions"
	"logbot-service/internal/api"
	"logbot-service/internal/config"
	"logbot-service/internal/core"
	"logbot-service/internal/hardware"
	"logbot-service/internal/logger"
	"logbot-service/internal/messaging"
	"logbot-service/internal/types"
)

func serveCmd() *cobra.Command {
	var (
		listen    string
		logLevel  string
		redisHost string
		redisPort int
		noRedis   bool
		simulate  bool
		grace     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Listen = listen
			}
			if flags.Changed("log") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("redis-host") {
				cfg.Redis.Host = redisHost
			}
			if flags.Changed("redis-port") {
				cfg.Redis.Port = redisPort
			}
			if noRedis {
				cfg.Redis.Enabled = false
			}
			if flags.Changed("simulate") {
				cfg.Simulate = simulate
			}
			if flags.Changed("grace") {
				cfg.GracePeriod = grace
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address")
	cmd.Flags().StringVar(&logLevel, "log", "", "log level (0-4 or none, error, warn, info, debug)")
	cmd.Flags().StringVar(&redisHost, "redis-host", "", "Redis host")
	cmd.Flags().IntVar(&redisPort, "redis-port", 0, "Redis port")
	cmd.Flags().BoolVar(&noRedis, "no-redis", false, "run without Redis")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "run against simulated hardware")
	cmd.Flags().DurationVar(&grace, "grace", 0, "how long a cancelled action may take to stop")
	return cmd
}

func serve(cfg config.Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	l := logger.NewStdoutLogger(level)
	l.Infof("Starting logbot service...")

	var bot *hardware.Logbot
	if cfg.Simulate {
		bot, _ = hardware.NewSimulated(l)
	} else if bot, err = hardware.Open(cfg.Hardware, l); err != nil {
		l.Fatalf("Failed to open hardware: %v", err)
	}
	defer func() {
		if err := bot.Close(); err != nil {
			l.Errorf("Failed to release hardware: %v", err)
		}
	}()

	set := actions.NewSet(bot, cfg.Actions, l)

	var ctrl *core.Controller
	var redis *messaging.RedisClient
	var publisher core.MessagingClient
	if cfg.Redis.Enabled {
		redis = messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, l.WithTag("redis"), messaging.Callbacks{
			ActionCallback: func(name string) (string, error) {
				kind, err := types.ParseAction(name)
				if err != nil {
					return "", err
				}
				data, err := json.Marshal(api.NewDispatchResponse(ctrl.Dispatch(kind)))
				return string(data), err
			},
		})
		if err := redis.Connect(); err != nil {
			l.Warnf("Continuing without Redis: %v", err)
			redis.Close()
			redis = nil
		} else {
			publisher = redis
		}
	}

	ctrl, err = core.NewController(core.NewRobotLock(), set.ByKind(), core.Options{
		Grace:     cfg.GracePeriod,
		Messaging: publisher,
		Logger:    l.WithTag("controller"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Start(ctx); err != nil {
		l.Fatalf("Failed to start controller: %v", err)
	}

	server := api.NewServer(ctrl, l.WithTag("api"))
	ctrl.OnChange(server.PublishStatus)

	if redis != nil {
		if err := redis.StartListening(); err != nil {
			l.Errorf("Failed to start Redis listener: %v", err)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Listen(cfg.Listen)
	}()

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var listenErr error
	select {
	case sig := <-sigChan:
		l.Infof("Received signal %v, shutting down...", sig)
	case listenErr = <-serverErr:
		l.Errorf("HTTP server stopped: %v", listenErr)
	}

	if err := server.Shutdown(); err != nil {
		l.Warnf("Failed to stop HTTP server: %v", err)
	}
	// The controller flushes its last state to Redis on Close
	if err := ctrl.Close(); err != nil {
		l.Errorf("Failed to stop controller: %v", err)
	}
	if redis != nil {
		redis.Close()
	}
	l.Infof("Shutdown complete")
	return listenErr
}
