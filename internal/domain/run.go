package domain

import "time"

// Run records the outcome of one full pipeline execution.
type Run struct {
	ID                string
	StartedAt         time.Time
	FinishedAt        time.Time
	Discovered        int
	Enriched          int
	AvatarsDownloaded int
	AvatarsPruned     int
}
