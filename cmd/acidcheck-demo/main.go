// Command acidcheck-demo runs one headless verification session against a
// backend, using fake platform capabilities. Useful for exercising a
// backend deployment without a browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/cloudspacetechs/acidcheck"
	"github.com/cloudspacetechs/acidcheck/capability/capfakes"
	"github.com/cloudspacetechs/acidcheck/devicetrust"
	"github.com/cloudspacetechs/acidcheck/devicetrust/sqlitestore"
	"github.com/cloudspacetechs/acidcheck/telemetry/telemetryfakes"
	"github.com/cloudspacetechs/acidcheck/ui/uifakes"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running demo: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := acidcheck.NewConfig()
	if err != nil {
		return err
	}
	displayAppname(cfg.AppName)

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	subjectID := os.Getenv("ACIDCHECK_SUBJECT")
	if subjectID == "" {
		subjectID = "demo-subject"
	}

	store, closeStore, err := openTrustStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	presenter := uifakes.NewRecorder()
	verifier, err := acidcheck.New(cfg, subjectID, acidcheck.Capabilities{
		Authenticator: capfakes.NewFakeAuthenticator(),
		Camera:        capfakes.NewFakeCamera(),
		Collector:     telemetryfakes.NewFakeCollector(),
		Presenter:     presenter,
		TrustStore:    store,
	}, acidcheck.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := verifier.Start(context.Background()); err != nil {
		return err
	}

	logger.Info().Stringer("state", verifier.State()).Msg("session state after trust check")
	for _, call := range presenter.Calls() {
		logger.Info().Str("op", call.Op).Str("text", call.Text).Msg("presenter call")
	}
	return nil
}

func openTrustStore(cfg *acidcheck.Config) (devicetrust.Store, func(), error) {
	if cfg.TrustStorePath == "" {
		return devicetrust.NewInMemoryStore(), func() {}, nil
	}
	store, err := sqlitestore.Open(cfg.TrustStorePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
