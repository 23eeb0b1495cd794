package main

import (
	bookinghandler "hostel/internal/booking/handler"
	bookingrepo "hostel/internal/booking/repository"
	bookingservice "hostel/internal/booking/service"
	bookingvalidator "hostel/internal/booking/validator"
	financehandler "hostel/internal/finance/handler"
	financerepo "hostel/internal/finance/repository"
	financeservice "hostel/internal/finance/service"
	notifyhandler "hostel/internal/notify/handler"
	notifyrepo "hostel/internal/notify/repository"
	notifyservice "hostel/internal/notify/service"
	paymenthandler "hostel/internal/payment/handler"
	paymentrepo "hostel/internal/payment/repository"
	paymentservice "hostel/internal/payment/service"
	paymentvalidator "hostel/internal/payment/validator"
	roomhandler "hostel/internal/room/handler"
	roomrepo "hostel/internal/room/repository"
	roomservice "hostel/internal/room/service"
	studenthandler "hostel/internal/student/handler"
	studentrepo "hostel/internal/student/repository"
	studentservice "hostel/internal/student/service"
	studentvalidator "hostel/internal/student/validator"
	"hostel/pkg/app"
	"hostel/pkg/config"
	"hostel/pkg/contracts"
	"hostel/pkg/kafka"
	kafka_config "hostel/pkg/kafka/config"
)

const ServiceName = "hostel-api"

func main() {
	cfg := config.Load(ServiceName)

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	producer := initProducer(cfg)
	if producer != nil {
		defer producer.Close()
	}

	handlers := initHandlers(cfg, producer)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handlers...)
	serverApp.Run()
}

// initProducer builds the notification producer. A missing broker only
// degrades delivery; notices are still stored, so startup continues.
func initProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Warn("Kafka configuration invalid, notifications will not be delivered", "error", err)
		return nil
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.NotificationTopic, cfg.NotificationDLQTopic)
	if err != nil {
		cfg.Log.Warn("Failed to create notification producer, notifications will not be delivered", "error", err)
		return nil
	}

	return producer
}

func initHandlers(cfg *config.Config, producer *kafka.Producer) []contracts.Handler {
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

	paymentService := paymentservice.NewPaymentService(
		paymentRepo,
		bookingRepo,
		lockRepo,
		roomRepo,
		financeService,
		bookingService,
		emitter,
		paymentvalidator.NewPaymentValidator(cfg.Log),
		cfg,
	)

	studentService := studentservice.NewStudentService(
		studentRepo,
		studentvalidator.NewStudentValidator(cfg.Log),
		cfg,
	)

	roomService := roomservice.NewRoomService(roomRepo, hostelRepo, bookingRepo, cfg)
	notificationService := notifyservice.NewNotificationService(notificationRepo, cfg)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return []contracts.Handler{
		studenthandler.NewStudentHandler(studentService, cfg.Log),
		roomhandler.NewRoomHandler(roomService, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		paymenthandler.NewPaymentHandler(paymentService, cfg.Log),
		financehandler.NewFinanceHandler(financeService, bookingService, cfg.Log),
		notifyhandler.NewNotificationHandler(notificationService, cfg.Log),
	}
}
