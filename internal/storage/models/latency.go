package models

import "time"

// LatencyTest represents a latency test result
type LatencyTest struct {
	ID           int64     `json:"id"`
	ProfileName  string    `json:"profile_name"`
	Server       string    `json:"server"`
	LatencyMS    *int      `json:"latency_ms,omitempty"` // NULL if failed
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	TestStrategy string    `json:"test_strategy"` // tcp, socks
	TestedAt     time.Time `json:"tested_at"`
}
