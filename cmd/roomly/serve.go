package main

import (
	"context"
	"fmt"

	"roomly/internal/bookings/conflict"
	"roomly/internal/bookings/events"
	bookinghandler "roomly/internal/bookings/handler"
	bookingrepo "roomly/internal/bookings/repository"
	bookingservice "roomly/internal/bookings/service"
	"roomly/internal/bookings/token"
	bookingvalidator "roomly/internal/bookings/validator"
	"roomly/internal/health"
	migrations "roomly/internal/migrations/mongo"
	roomhandler "roomly/internal/rooms/handler"
	roomrepo "roomly/internal/rooms/repository"
	roomservice "roomly/internal/rooms/service"
	roomvalidator "roomly/internal/rooms/validator"
	schedulehandler "roomly/internal/schedule/handler"
	scheduleservice "roomly/internal/schedule/service"
	userhandler "roomly/internal/users/handler"
	userrepo "roomly/internal/users/repository"
	userservice "roomly/internal/users/service"
	uservalidator "roomly/internal/users/validator"
	"roomly/pkg/app"
	"roomly/pkg/auth"
	"roomly/pkg/clock"
	"roomly/pkg/config"
	"roomly/pkg/contracts"
	"roomly/pkg/kafka"
	kafka_config "roomly/pkg/kafka/config"
	kafka_middleware "roomly/pkg/kafka/middleware"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(ServiceName)
			if err := cfg.Validate(); err != nil {
				return err
			}
			cfg.LogConfiguration()

			cfg.Log.Info("Starting roomly API")
			cfg.SetMongo()

			if migrateUp {
				if err := migrations.RunMigration(cmd.Context(), cfg.Client.Mongo.Client, cfg.MongoDatabaseName, cfg.Log); err != nil {
					cfg.GracefulShutdown()
					return fmt.Errorf("migration failed: %w", err)
				}
			}

			serverApp := app.NewApplication(cfg)
			manager, handlers, err := initServices(cfg, serverApp)
			if err != nil {
				cfg.GracefulShutdown()
				return err
			}

			serverApp.SetApp(health.NewHandler(cfg.Client.Mongo.Client, cfg.Log), manager, handlers...)
			serverApp.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "apply database migrations before serving")
	return cmd
}

func initServices(cfg *config.Config, serverApp *app.Application) (*auth.Manager, []contracts.Handler, error) {
	clk := clock.System(cfg.Location)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL, clk.Now)
	sessions := auth.NewSessionStore([]byte(cfg.CookieHashKey), []byte(cfg.CookieBlockKey), cfg.JWTTTL)
	manager := auth.NewManager(tokens, sessions, cfg.Log)

	roomRepo := roomrepo.NewMongoRoomRepository(cfg)
	userRepo := userrepo.NewMongoUserRepository(cfg)
	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	lockRepo := bookingrepo.NewBookingLockRepository(cfg)

	publisher, err := newPublisher(cfg)
	if err != nil {
		return nil, nil, err
	}
	serverApp.OnShutdown("booking-events", publisher.Close)

	bookingValidator := bookingvalidator.NewBookingValidator(
		conflict.NewDetector(bookingRepo),
		bookingvalidator.Policy{
			WindowDays:  cfg.BookingWindowDays,
			MaxDuration: cfg.MaxBookingDuration,
			Location:    cfg.Location,
		},
		cfg.Log,
	)
	bookingService := bookingservice.NewBookingService(
		bookingRepo,
		lockRepo,
		bookingValidator,
		token.NewIssuer(),
		roomRepo,
		userRepo,
		publisher,
		clk,
		cfg,
	)
	roomService := roomservice.NewRoomService(roomRepo, bookingRepo, roomvalidator.NewRoomValidator(), cfg)
	userService := userservice.NewUserService(userRepo, uservalidator.NewUserValidator(), tokens, clk, cfg)
	scheduleService := scheduleservice.NewScheduleService(roomRepo, bookingRepo, userRepo, clk, cfg)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName, "events", cfg.KafkaEnabled())

	return manager, []contracts.Handler{
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		roomhandler.NewRoomHandler(roomService, cfg.Log),
		userhandler.NewUserHandler(userService, sessions, cfg.Log),
		schedulehandler.NewScheduleHandler(scheduleService, cfg.Log),
	}, nil
}

// newPublisher returns a Kafka backed publisher, or a no-op one when no
// brokers are configured.
func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if !cfg.KafkaEnabled() {
		cfg.Log.Info("KAFKA_BROKERS not set, booking events are disabled")
		return events.Noop(), nil
	}

	kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
	if err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaBookingTopic, dlqTopic(cfg.KafkaBookingTopic), cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	return events.NewKafkaPublisher(producer, cfg.Log), nil
}

func dlqTopic(topic string) string {
	return topic + ".dlq"
}

// withMongo runs fn with a connected client and disconnects afterwards.
func withMongo(ctx context.Context, cfg *config.Config, fn func(ctx context.Context) error) error {
	cfg.SetMongo()
	defer cfg.GracefulShutdown()
	return fn(ctx)
}
