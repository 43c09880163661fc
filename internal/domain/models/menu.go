package models

// MenuItem is the catalog record for a dish, keyed by its title. Items are
// created the first time the scraper sees a title and are never deleted;
// ratings accumulate on the same record across days.
type MenuItem struct {
	Title           string            `bson:"title" json:"title"`
	DiningHall      string            `bson:"dining_hall" json:"dining_hall"`
	MealPeriod      string            `bson:"meal_period" json:"meal_period"`
	TableCaption    string            `bson:"table_caption" json:"table_caption"`
	PortionSize     string            `bson:"portion_size" json:"portion_size"`
	NutritionalInfo map[string]string `bson:"nutritional_info" json:"nutritional_info"`
	Labels          []string          `bson:"labels" json:"labels"`
	Rating          float64           `bson:"rating" json:"rating"`
	RatingCount     int64             `bson:"rating_count" json:"rating_count"`
}

// AverageRating derives the displayed average from the running sum.
func (m MenuItem) AverageRating() float64 {
	if m.RatingCount == 0 {
		return 0
	}
	return m.Rating / float64(m.RatingCount)
}

// Dietary labels recognized on the menu page.
const (
	LabelVegan   = "vegan"
	LabelGluten  = "gluten"
	LabelProtein = "protein"
)

// DailyIndexEntry records that a title is on today's menu. The whole index
// is dropped and rebuilt at the start of every scrape run.
type DailyIndexEntry struct {
	Title string `bson:"title" json:"title"`
}
