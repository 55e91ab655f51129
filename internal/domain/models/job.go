package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobState представляет состояние фонового задания массового обновления
type JobState string

const (
	JobStateIdle       JobState = "IDLE"
	JobStateStarting   JobState = "STARTING"
	JobStateProcessing JobState = "PROCESSING"
	JobStateCompleted  JobState = "COMPLETED"
	JobStateError      JobState = "ERROR"
)

// Terminal сообщает, завершено ли задание
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateError
}

// BulkRow представляет одну строку массового обновления:
// SKU, цены по рынкам и флаг активности
type BulkRow struct {
	SKU    string                     `json:"sku"`
	Prices map[string]decimal.Decimal `json:"prices"`
	Active string                     `json:"active"`
}

// JobStatus представляет снимок состояния текущего задания.
// Снимок отдаётся внешним опрашивающим клиентам только по значению.
type JobStatus struct {
	ID         string    `json:"id,omitempty"`
	State      JobState  `json:"state"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Success    int       `json:"success"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	CurrentSKU string    `json:"current_sku,omitempty"`
	// Errors ограничен первыми N сообщениями, остальные только считаются
	Errors     []string  `json:"errors,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
