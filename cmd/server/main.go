package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repair-marketplace/internal/config"
	"repair-marketplace/internal/database"
	"repair-marketplace/internal/handlers"
	"repair-marketplace/internal/kafka"
	"repair-marketplace/internal/logger"
	"repair-marketplace/internal/models"
	"repair-marketplace/internal/redis"
	"repair-marketplace/internal/services"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	migrateDatabase  = func(ctx context.Context, db *database.DB) error { return db.Migrate(ctx) }
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	engines  *services.FeeEngineProvider
	mux      *http.ServeMux
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting platform fee service...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app.close(ctx)
	app.log.Info("Server exited")
}

// close останавливает сервер и освобождает подключения.
func (a *application) close(ctx context.Context) {
	_ = a.consumer.Stop()
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = a.producer.Close()
	_ = a.redis.Close()
	_ = a.db.Close()
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := migrateDatabase(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	ruleService := services.NewFeeRuleService(db, log)
	engines := services.NewFeeEngineProvider(
		ruleService,
		redisClient,
		services.NewServiceFeePolicy(&cfg.Fees),
		time.Duration(cfg.Fees.RuleCacheTTLSeconds)*time.Second,
		log,
	)
	engines.Engine(ctx)
	quoteService := services.NewQuotePricingService(engines, log)

	feeHandler := handlers.NewFeeHandler(engines, quoteService, producer, log)
	feeRuleHandler := handlers.NewFeeRuleHandler(ruleService, engines, producer, log)
	healthHandler := handlers.NewHealthHandler(db, redisClient, engines, cfg.Kafka.Brokers, kafkaHealthCheck)

	registerEventHandlers(consumer, engines, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(feeHandler, feeRuleHandler, healthHandler)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		engines:  engines,
		mux:      mux,
		server:   server,
	}, nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(feeHandler *handlers.FeeHandler, feeRuleHandler *handlers.FeeRuleHandler, healthHandler *handlers.HealthHandler) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(healthHandler.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(healthHandler.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(healthHandler.Liveness))

	// Fee calculation endpoints
	mux.HandleFunc("/api/fees/calculate", corsMiddleware(feeHandler.CalculateFee))
	mux.HandleFunc("/api/fees/simulate", corsMiddleware(feeHandler.SimulateFees))
	mux.HandleFunc("/api/fees/rules/active", corsMiddleware(feeHandler.ActiveRules))
	mux.HandleFunc("/api/quotes/price", corsMiddleware(feeHandler.PriceQuote))
	mux.HandleFunc("/api/line-items/validate", corsMiddleware(feeHandler.ValidateLineItems))

	// Fee rule administration
	mux.HandleFunc("/api/admin/fees/rules", corsMiddleware(handleFeeRulesRoute(feeRuleHandler)))
	mux.HandleFunc("/api/admin/fees/rules/", corsMiddleware(handleFeeRuleRoute(feeRuleHandler)))

	return mux
}

// handleFeeRulesRoute обрабатывает коллекцию правил комиссии
func handleFeeRulesRoute(handler *handlers.FeeRuleHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListFeeRules(w, r)
		case http.MethodPost:
			handler.CreateFeeRule(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleFeeRuleRoute обрабатывает отдельное правило комиссии
func handleFeeRuleRoute(handler *handlers.FeeRuleHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.GetFeeRule(w, r)
		case http.MethodPut:
			handler.UpdateFeeRule(w, r)
		case http.MethodDelete:
			handler.DeleteFeeRule(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

type engineInvalidator interface {
	Invalidate(ctx context.Context) error
}

// registerEventHandlers регистрирует обработчики событий Kafka.
// Изменение правила на любом экземпляре приводит к пересборке движка на всех экземплярах;
// если событие потеряно, движок перечитает правила по истечении TTL.
func registerEventHandlers(consumer *kafka.Consumer, engines engineInvalidator, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeFeeRuleChanged, func(ctx context.Context, event *models.Event) error {
		var data models.FeeRuleChangedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("invalid fee rule event payload: %w", err)
		}

		log.WithFields(map[string]interface{}{
			"event_id": event.ID.String(),
			"rule_id":  data.RuleID.String(),
			"action":   string(data.Action),
		}).Info("Processing fee rule changed event")

		return engines.Invalidate(ctx)
	})
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
