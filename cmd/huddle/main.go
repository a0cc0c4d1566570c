package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/adapters/rtc"
	"github.com/edulab/huddle/internal/adapters/ws"
	"github.com/edulab/huddle/internal/app/session"
	"github.com/edulab/huddle/internal/config"
	"github.com/edulab/huddle/internal/core"
	"github.com/edulab/huddle/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	channel := ws.NewChannel(ws.Options{
		URL:        cfg.Agent.SignalURL,
		Backoff:    cfg.Agent.Backoff,
		PingPeriod: cfg.Agent.PingPeriod,
		ReadLimit:  cfg.Agent.ReadLimit,
	})
	source := rtc.NewSyntheticSource(ctx)

	rtcConfig := rtc.DefaultConfig(cfg.Agent.STUNServers)
	links := func(peer domain.ParticipantID) (core.PeerLink, error) {
		return rtc.NewLink(rtcConfig, peer)
	}

	hooks := session.Hooks{
		Chat: func(msg session.ChatMessage) {
			log.Info().Str("from", msg.Username).Str("content", msg.Content).Msg("chat")
		},
		Roster: func(participants []domain.Participant) {
			log.Info().Int("count", len(participants)).Msg("roster updated")
		},
	}

	sess := session.New(channel, source, links, hooks)
	if err := sess.Join(ctx, cfg.Agent.Room, cfg.Agent.DisplayName); err != nil {
		log.Fatal().Err(err).Msg("failed to join room")
	}

	// Run blocks until shutdown; teardown closes every peer link before
	// returning, so no negotiation survives the signal.
	sess.Run(ctx)
	log.Info().Msg("agent exited gracefully")
}
