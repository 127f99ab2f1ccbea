package model

import "time"

type TimeCount struct {
	Time  string `json:"time"`
	Count int    `json:"count"`
}

type Stats struct {
	InstructorID   string         `json:"instructor_id,omitempty"`
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	Total          int            `json:"total"`
	ByStatus       map[Status]int `json:"by_status"`
	RevenueCents   int64          `json:"revenue_cents"`
	CompletionRate float64        `json:"completion_rate"`
	PopularTimes   []TimeCount    `json:"popular_times"`
	ByWeekday      [7]int         `json:"by_weekday"`
}
