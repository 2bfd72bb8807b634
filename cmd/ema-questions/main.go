// Command ema-questions serves interview question generation over HTTP.
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

	"github.com/koscakluka/ema-interview/core/llms/groq"
	"github.com/koscakluka/ema-interview/core/questions"
	"github.com/koscakluka/ema-interview/core/store"
	"github.com/koscakluka/ema-interview/internal/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

var logger = otelslog.NewLogger("github.com/koscakluka/ema-interview/cmd/ema-questions")

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadQuestions()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	interviews, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer interviews.Close()

	llm, err := groq.NewClient(cfg.GroqAPIKey, groq.WithModel(cfg.GroqModel))
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}

	service := questions.NewService(llm, interviews)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelhttp.NewHandler(questions.NewRouter(service), "ema-questions"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "serving question generation", "addr", cfg.Addr, "model", llm.Model())
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
