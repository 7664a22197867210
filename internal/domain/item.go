package domain

import "time"

// Set is a named collection of items owned by one account.
type Set struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Item is a single question/answer image pair.
// The image URLs are opaque references; the binary objects live elsewhere.
type Item struct {
	ID               string
	SetID            string
	OwnerID          string
	QuestionImageURL string
	AnswerImageURL   string
	CreatedAt        time.Time
}

// ReviewState is the scheduling state kept for every item.
type ReviewState struct {
	LastAnsweredAt *time.Time
	NextDueAt      time.Time
	IntervalDays   int
	EaseFactor     float64
	LapseCount     int
}

// Outcome is the result of a single review of an item.
type Outcome struct {
	Remembered bool
	At         time.Time
}

// DueItem pairs an item id with the review state it was selected by.
type DueItem struct {
	ItemID string
	State  ReviewState
}
