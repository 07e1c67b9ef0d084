package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/rs/zerolog/log"

	"github.com/MikhailRaia/paylink/internal/app"
	"github.com/MikhailRaia/paylink/internal/config"
	"github.com/MikhailRaia/paylink/internal/logger"
)

var memprofile = flag.String("memprofile", "", "write memory profile to `file` on exit")

func writeHeapProfile(path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to create memory profile")
		return
	}
	defer f.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Error().Err(err).Msg("Failed to write memory profile")
	}
}

func main() {
	cfg := config.NewConfig()
	logger.InitLogger(cfg.LogLevel)

	application, err := app.NewApp(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	runErr := application.Run(context.Background())

	if *memprofile != "" {
		writeHeapProfile(*memprofile)
	}

	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Error running application")
	}
}
