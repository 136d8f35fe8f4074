// Command animeduel runs the session server for the two-player anime
// guessing game. It pairs connected clients into shared games over a
// websocket, relays round signals (start, pass, extend, next anime)
// to both members, and tears a game down when a player disconnects.
//
// Configuration comes from flags or their environment counterparts
// (ADDR, FRONTEND_URL, CATALOG_URL, DEBUG, NGROK_*); a .env file in
// the working directory is loaded if present. An optional ngrok
// tunnel can expose the server for development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/arakiyama/animeduel/api"
	"github.com/arakiyama/animeduel/game/catalog"
	"github.com/arakiyama/animeduel/game/coordinator"
	"github.com/arakiyama/animeduel/game/lobby"
	"github.com/arakiyama/animeduel/metrics"
	"github.com/arakiyama/animeduel/transport/websocket"
)

const (
	Version = "1.0.0"
	AppName = "animeduel"
)

func main() {
	// Best effort: absence of a .env file is the normal case.
	godotenv.Load()

	cmd := &cli.Command{
		Name:    AppName,
		Usage:   "session server for the two-player anime guessing game",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   "0.0.0.0:3000",
				Usage:   "listen address",
				Sources: cli.EnvVars("ADDR"),
			},
			&cli.StringFlag{
				Name:    "frontend-url",
				Usage:   "allowed CORS origin of the game frontend",
				Sources: cli.EnvVars("FRONTEND_URL"),
			},
			&cli.StringFlag{
				Name:    "catalog-url",
				Value:   catalog.DefaultBaseURL,
				Usage:   "base URL of the anime catalog API",
				Sources: cli.EnvVars("CATALOG_URL"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "expose the server through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cmd.Bool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	lob := lobby.New()
	metrics.RegisterActiveGames(lob.Count)

	provider := catalog.NewClient(cmd.String("catalog-url"))

	hub := websocket.NewHub()
	coord := coordinator.New(lob, provider, hub)
	hub.SetHandler(coord)
	go hub.Run()

	server := api.NewServer(hub, cmd.String("frontend-url"))

	addr := cmd.String("addr")
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 2)

	go func() {
		log.Info().Str("addr", addr).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	if cmd.Bool("ngrok") {
		go func() {
			if err := serveNgrok(ctx, cmd, server); err != nil {
				errc <- fmt.Errorf("ngrok tunnel: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// serveNgrok exposes the HTTP surface through an ngrok tunnel for
// development. Websocket traffic flows through it unchanged.
func serveNgrok(ctx context.Context, cmd *cli.Command, handler http.Handler) error {
	token := cmd.String("ngrok-auth")
	if token == "" {
		return errors.New("no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
	}

	opts := []ngrokConfig.HTTPEndpointOption{}
	if domain := cmd.String("ngrok-domain"); domain != "" {
		opts = append(opts, ngrokConfig.WithDomain(domain))
	}

	tun, err := ngrok.Listen(ctx,
		ngrokConfig.HTTPEndpoint(opts...),
		ngrok.WithAuthtoken(token),
	)
	if err != nil {
		return err
	}

	log.Info().Str("url", tun.URL()).Msg("ngrok tunnel established")
	return http.Serve(tun, handler)
}
