package main

import (
	"context"
	"os/signal"
	"syscall"

	notifyrepo "hostel/internal/notify/repository"
	notifyservice "hostel/internal/notify/service"
	studentrepo "hostel/internal/student/repository"
	"hostel/pkg/config"
	"hostel/pkg/kafka"
	kafka_config "hostel/pkg/kafka/config"
)

const ServiceName = "hostel-notifier"

// Consumes notification intents and attempts delivery on every channel the
// student has. Unresolvable intents go to the DLQ instead of blocking the
// partition.
func main() {
	cfg := config.Load(ServiceName)

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	notificationRepo := notifyrepo.NewMongoNotificationRepository(cfg)
	studentRepo := studentrepo.NewMongoStudentRepository(cfg)
	dispatcher := notifyservice.NewLogDispatcher(cfg.Log)
	intentHandler := notifyservice.NewIntentHandler(notificationRepo, studentRepo, dispatcher, cfg.Log)

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.Log,
		cfg.NotificationTopic,
		cfg.NotifierGroupID,
		cfg.NotificationDLQTopic,
		intentHandler.Handle,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create notification consumer", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Notifier started",
		"topic", cfg.NotificationTopic,
		"group_id", cfg.NotifierGroupID,
	)

	if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}

	cfg.Log.Info("Notifier stopped")
}
