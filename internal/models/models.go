package models

import (
	"time"
)

// ChartData is one point of the dashboard chart
type ChartData struct {
	Timestamp int64   `json:"timestamp"`
	TVL       float64 `json:"tvl"`
	DAU       float64 `json:"dau"`
	TRX       float64 `json:"trx"`
}

// MetricPoint is a single synthetic metric value
type MetricPoint struct {
	Metric string `json:"metric"`
	Value  int64  `json:"value"`
}

// Profile is an ecosystem user profile
type Profile struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Email         string    `db:"email" json:"email"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	UniqueName    string    `db:"unique_name" json:"unique_name"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
