// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Dragon-token-mock is a development stand-in for the call token
// service. It accepts the client's token request exactly (POST
// /api/token with roomName and participantName) and answers with an
// HS256 JWT carrying LiveKit-style video grants, signed with the API
// secret the local media server is configured with.
//
// Nothing is authenticated: anyone who can reach the port can mint a
// token. Run it on loopback only.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/pflag"

	"github.com/dragon-chat/dragon/calltoken"
	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/clock"
	"github.com/dragon-chat/dragon/lib/process"
	"github.com/dragon-chat/dragon/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		listen    string
		apiKey    string
		apiSecret string
		ttl       time.Duration
	)
	flagSet := pflag.NewFlagSet("dragon-token-mock", pflag.ContinueOnError)
	flagSet.StringVar(&listen, "listen", "127.0.0.1:7881", "address to listen on")
	flagSet.StringVar(&apiKey, "api-key", "devkey", "media server API key (the token issuer)")
	flagSet.StringVar(&apiSecret, "api-secret", "secret", "media server API secret (the HS256 signing key)")
	flagSet.DurationVar(&ttl, "ttl", 6*time.Hour, "token lifetime")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print(os.Stdout, "dragon-token-mock")
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if apiSecret == "" {
		return clienterr.New(clienterr.Validation, "dragon-token-mock", "--api-secret is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	issuer := &tokenIssuer{
		apiKey: apiKey,
		secret: []byte(apiSecret),
		ttl:    ttl,
		clock:  clock.Real(),
		logger: logger,
	}
	app := newApp(issuer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- app.Listen(listen)
	}()
	logger.Info("token mock running", "listen", listen, "issuer", apiKey, "ttl", ttl)

	select {
	case err := <-serveDone:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	return app.ShutdownWithTimeout(5 * time.Second)
}

// newApp builds the HTTP surface. Split from run so tests drive it with
// app.Test.
func newApp(issuer *tokenIssuer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "dragon-token-mock",
		DisableStartupMessage: true,
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Post(calltoken.TokenPath, issuer.handleToken)
	return app
}

type errorResponse struct {
	Error string `json:"error"`
}

// videoGrant is the subset of the media server's grant claim the
// client needs to join and publish.
type videoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type mediaClaims struct {
	Name  string     `json:"name,omitempty"`
	Video videoGrant `json:"video"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	apiKey string
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

func (issuer *tokenIssuer) handleToken(c *fiber.Ctx) error {
	var request calltoken.Request
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if request.RoomName == "" || request.ParticipantName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "roomName and participantName are required"})
	}

	token, err := issuer.mint(request.RoomName, request.ParticipantName)
	if err != nil {
		issuer.logger.Error("signing token failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "signing failed"})
	}
	issuer.logger.Info("token issued", "room", request.RoomName, "participant", request.ParticipantName)
	return c.JSON(calltoken.Response{Token: token})
}

func (issuer *tokenIssuer) mint(room, participant string) (string, error) {
	now := issuer.clock.Now()
	claims := mediaClaims{
		Name: participant,
		Video: videoGrant{
			Room:         room,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer.apiKey,
			Subject:   participant,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(issuer.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.secret)
}
