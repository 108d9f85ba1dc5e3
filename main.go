package main

import (
	"github.com/rapidloop/skv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/publicidadxacarlos-cell/FinanzaAI/config"
	"github.com/publicidadxacarlos-cell/FinanzaAI/gemini"
	"github.com/publicidadxacarlos-cell/FinanzaAI/goals"
	"github.com/publicidadxacarlos-cell/FinanzaAI/ledger"
	"github.com/publicidadxacarlos-cell/FinanzaAI/notify"
	"github.com/publicidadxacarlos-cell/FinanzaAI/server"
	"github.com/publicidadxacarlos-cell/FinanzaAI/syncer"
	"github.com/publicidadxacarlos-cell/FinanzaAI/tracing"
)

func main() {
	shutdown, err := tracing.InitTraceProvider("finanzaai")
	if err != nil {
		log.Fatal().Err(err).Msg("Tracing error")
	}
	defer shutdown()

	config.Init()

	kv, err := skv.Open(viper.GetString("store"))
	if err != nil {
		log.Fatal().Err(err).Msgf("Failed to open store: %s", viper.GetString("store"))
	}
	defer kv.Close()

	notifications := notify.New()

	srv := &server.Server{
		Ledger:        ledger.Open(kv),
		Goals:         goals.Open(kv),
		Syncer:        syncer.New(kv, notifications),
		Notifications: notifications,
	}
	if ai, err := gemini.New(); err != nil {
		log.Warn().Err(err).Msg("Gemini disabled")
	} else {
		srv.Gemini = ai
	}

	log.Info().Msgf("Server running on port %s", viper.GetString("port"))
	if err := srv.Engine().Run(":" + viper.GetString("port")); err != nil {
		log.Fatal().Err(err).Msg("Server Error")
	}
}
