package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"aisle/internal/messaging"
	"aisle/internal/orders"
	"aisle/internal/recommend"
	"aisle/internal/resolver"
	"aisle/internal/sms"
	"aisle/internal/telemetry"
	"aisle/internal/woolworths"
	"aisle/internal/worker"
)

// stdinPrompter is the default human-in-the-loop code entry: it blocks on
// the worker's terminal until someone types the code the site displayed on
// their phone.
type stdinPrompter struct{}

func (stdinPrompter) Prompt(ctx context.Context, message string) (string, error) {
	fmt.Print(message)

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			errs <- err
			return
		}
		lines <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errs:
		return "", err
	case line := <-lines:
		return line, nil
	}
}

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "aisle-worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	smsRepo := sms.NewRepository(db)

	retailer, err := woolworths.New(woolworths.Config{
		Email:    os.Getenv("WOOLWORTHS_EMAIL"),
		Password: os.Getenv("WOOLWORTHS_PASSWORD"),
		CardCVV:  os.Getenv("WOOLWORTHS_CARD_CVV"),
		Headless: os.Getenv("HEADLESS") == "true",
	}, smsRepo, stdinPrompter{}, logger)
	if err != nil {
		logger.Error("failed to configure retailer", "error", err)
		os.Exit(1)
	}

	advisorClient := &http.Client{
		Timeout:   120 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	advisor := recommend.NewClient(os.Getenv("OLLAMA_URL"), os.Getenv("OLLAMA_MODEL"), advisorClient, logger)

	orderRepo := orders.NewOrderRepository(db)
	placementRepo := orders.NewPlacementRepository(db)

	listResolver := resolver.New(retailer, orderRepo, advisor, logger)
	placementHandler := worker.NewPlacementHandler(listResolver, retailer, orderRepo, placementRepo, logger)

	brokers := strings.Split(kafkaBrokers, ",")
	consumer := messaging.NewConsumer(brokers, "placement.requested", "placement-worker")
	defer func() { _ = consumer.Close() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting placement worker", "brokers", brokers)

	if err := consumer.Consume(runCtx, placementHandler.Handle); err != nil {
		if runCtx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
