package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/validation"
)

func main() {
	var baseURL string
	flag.StringVar(&baseURL, "url", "http://localhost:8081", "Base URL for API validation")
	flag.Parse()

	logger.Init("info", "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	validator := validation.NewAPIValidator(baseURL)
	if err := validator.ValidateAll(ctx); err != nil {
		logger.Fatal("Validation failed", "error", err)
	}
}
