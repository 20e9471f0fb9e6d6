package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordeko/internal/config"
	"github.com/robalobadob/wordeko/internal/httpserver"
	"github.com/robalobadob/wordeko/internal/migrations"
	"github.com/robalobadob/wordeko/internal/store"
	"github.com/robalobadob/wordeko/internal/words"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !cfg.Production() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer db.Close()
	if err := migrations.Apply(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	dict := words.NewDictionary(cfg.DictionarySource())
	mem := store.NewMemoryStore()
	srv := httpserver.New(cfg, mem, db, dict)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go store.Janitor(ctx, mem, cfg.SessionIdle, time.Minute)

	go func() {
		log.Info().Str("port", cfg.Port).Int("tickRate", cfg.TickRate).Msg("starting wordeko server")
		if err := srv.Start(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
	n := len(mem.Sweep(shutdownCtx, -time.Hour))
	srv.Close()
	log.Info().Int("sessions", n).Msg("stopped")
}
