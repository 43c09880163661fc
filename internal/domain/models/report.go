package models

import "time"

// ScrapeReport summarizes one batch run of the menu scraper. It is stored
// in MongoDB and optionally appended to the operational report sheet.
type ScrapeReport struct {
	Date         time.Time `bson:"date" json:"date"`
	ItemsSeen    int       `bson:"items_seen" json:"items_seen"`
	ItemsNew     int       `bson:"items_new" json:"items_new"`
	StepsSkipped int       `bson:"steps_skipped" json:"steps_skipped"`
	Halls        []string  `bson:"halls" json:"halls"`
	Duration     float64   `bson:"duration_seconds" json:"duration_seconds"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}
