package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "hostel"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 20
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Token payment that opens a prebooking, in whole shillings.
	DefaultTokenPaymentAmount = 2500
	// Days a prebooking may stay unpaid before the sweeper expires it.
	DefaultPrebookExpiryDays = 14
	// Advisory locks auto-expire after this long.
	DefaultLockTTL = 10 * time.Second

	DefaultSweeperBatchSize = 200

	DefaultNotificationTopic    = "hostel.notifications"
	DefaultNotificationDLQTopic = "hostel.notifications.dlq"
	DefaultNotifierGroupID      = "hostel-notifier"

	DefaultPaginationLimit = 100
)
