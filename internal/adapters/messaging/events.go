package messaging

// Темы и типы событий движка синхронизации
const (
	SyncEventsTopic = "catalog-sync-events"

	ListingPushedEvent      = "listing_pushed"
	PriceDriftDetectedEvent = "price_drift_detected"
	JobStartedEvent         = "job_started"
	JobCompletedEvent       = "job_completed"
	JobFailedEvent          = "job_failed"
)
