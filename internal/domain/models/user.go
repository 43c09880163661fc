package models

// Macros holds a user's accumulated daily macro totals. Values are clamped
// to be non-negative after every update.
type Macros struct {
	Calories int64 `bson:"calories" json:"calories"`
	Protein  int64 `bson:"protein" json:"protein"`
	Carbs    int64 `bson:"carbs" json:"carbs"`
	Fat      int64 `bson:"fat" json:"fat"`
}

// UserRecord is the per-user rating ledger, keyed by uid. RatedFood is an
// append log of titles the user has rated; a title appears at most once.
type UserRecord struct {
	UID       string   `bson:"uid" json:"uid"`
	RatedFood []string `bson:"ratedFood" json:"ratedFood"`
	Macros    Macros   `bson:"macros" json:"macros"`
}

// HasRated reports whether the user already rated the given title.
func (u UserRecord) HasRated(title string) bool {
	for _, t := range u.RatedFood {
		if t == title {
			return true
		}
	}
	return false
}
