package main

import (
	"context"
	"os"
	"time"

	bookingrepo "hostel/internal/booking/repository"
	bookingservice "hostel/internal/booking/service"
	bookingvalidator "hostel/internal/booking/validator"
	financerepo "hostel/internal/finance/repository"
	financeservice "hostel/internal/finance/service"
	notifyrepo "hostel/internal/notify/repository"
	notifyservice "hostel/internal/notify/service"
	paymentrepo "hostel/internal/payment/repository"
	roomrepo "hostel/internal/room/repository"
	studentrepo "hostel/internal/student/repository"
	sweeperservice "hostel/internal/sweeper/service"
	"hostel/pkg/config"
	"hostel/pkg/kafka"
	kafka_config "hostel/pkg/kafka/config"
)

const ServiceName = "hostel-sweeper"

const runTimeout = 10 * time.Minute

// One-shot expiry sweep, meant to run from cron. Overlapping runs are safe:
// the status-guarded transition makes each booking expire exactly once.
func main() {
	cfg := config.Load(ServiceName)

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	producer := initProducer(cfg)
	if producer != nil {
		defer producer.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	sweeper := initSweeper(cfg, producer)
	summary, err := sweeper.Run(ctx)
	if err != nil {
		cfg.Log.Error("Sweep failed",
			"scanned", summary.Scanned,
			"expired", summary.Expired,
			"failed", summary.Failed,
			"error", err,
		)
		os.Exit(1)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func initProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Warn("Kafka configuration invalid, expiry notices will not be delivered", "error", err)
		return nil
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.NotificationTopic, cfg.NotificationDLQTopic)
	if err != nil {
		cfg.Log.Warn("Failed to create notification producer, expiry notices will not be delivered", "error", err)
		return nil
	}

	return producer
}

func initSweeper(cfg *config.Config, producer *kafka.Producer) *sweeperservice.Sweeper {
	studentRepo := studentrepo.NewMongoStudentRepository(cfg)
	hostelRepo := roomrepo.NewMongoHostelRepository(cfg)
	roomRepo := roomrepo.NewMongoRoomRepository(cfg)
	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	lockRepo := bookingrepo.NewMongoLockRepository(cfg)
	paymentRepo := paymentrepo.NewMongoPaymentRepository(cfg)
	financeRepo := financerepo.NewMongoFinanceRepository(cfg)
	notificationRepo := notifyrepo.NewMongoNotificationRepository(cfg)

	financeService := financeservice.NewFinanceService(financeRepo, cfg)
	emitter := notifyservice.NewKafkaEmitter(notificationRepo, producer, cfg.Log)

	bookingService := bookingservice.NewBookingService(
		bookingRepo,
		lockRepo,
		roomRepo,
		hostelRepo,
		studentRepo,
		paymentRepo,
		financeService,
		emitter,
		notificationRepo,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)

	return sweeperservice.NewSweeper(bookingRepo, bookingService, cfg)
}
