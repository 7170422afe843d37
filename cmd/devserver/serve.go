package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"patient-chat/internal/app"
)

const (
	correlationHeader = "X-Correlation-Id"
	bodyLimit         = 10 * 1024 * 1024
	shutdownTimeout   = 30 * time.Second
)

// proxyHandler is the API Gateway handler the dev server fronts.
type proxyHandler interface {
	Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API locally over HTTP",
		RunE:  runServeCmd,
	}
	cmd.Flags().Int("port", 0, "listen port (overrides PORT)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Port = port
	}

	container, err := app.NewContainer(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	srv := newApp(container.Handler, log)
	addr := ":" + strconv.Itoa(cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info("dev server listening", "addr", addr, "document_source", cfg.Documents.Source)
		errCh <- srv.Listen(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("dev server: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	}
	return srv.ShutdownWithTimeout(shutdownTimeout)
}

func newApp(h proxyHandler, log *slog.Logger) *fiber.App {
	srv := fiber.New(fiber.Config{
		AppName:               "patient-chat",
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
	})
	srv.Use(recover.New())
	srv.Use(requestid.New(requestid.Config{
		Header:    correlationHeader,
		Generator: uuid.NewString,
	}))
	srv.Use(cors.New(cors.Config{
		AllowHeaders:  "Origin, Content-Type, Accept, " + correlationHeader,
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: correlationHeader,
	}))
	srv.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${method} ${path} | ${respHeader:" + correlationHeader + "}\n",
	}))
	srv.All("/*", proxy(h, log))
	return srv
}

// proxy turns a fiber request into the API Gateway event the Lambda receives
// and writes the handler's response back.
func proxy(h proxyHandler, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := h.Handle(c.UserContext(), toProxyRequest(c))
		if err != nil {
			log.Error("handler returned error", "err", err)
			return fiber.ErrInternalServerError
		}
		for k, v := range resp.Headers {
			c.Set(k, v)
		}
		return c.Status(resp.StatusCode).SendString(resp.Body)
	}
}

func toProxyRequest(c *fiber.Ctx) events.APIGatewayProxyRequest {
	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(k, v []byte) {
		headers[string(k)] = string(v)
	})
	// requestid has already echoed or generated the ID on the response.
	if id := c.GetRespHeader(correlationHeader); id != "" {
		headers[correlationHeader] = id
	}
	return events.APIGatewayProxyRequest{
		HTTPMethod:            c.Method(),
		Path:                  c.Path(),
		Headers:               headers,
		QueryStringParameters: c.Queries(),
		Body:                  base64.StdEncoding.EncodeToString(c.Body()),
		IsBase64Encoded:       true,
	}
}
