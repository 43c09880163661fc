package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kzich/nudining/internal/domain/models"
)

const (
	catalogCollection = "foodItems"
	dailyCollection   = "todaysFood"
	usersCollection   = "users"
	runsCollection    = "scrapeRuns"
)

// Repository provides MongoDB-backed access to the menu catalog, the daily
// index, the per-user rating ledger and the scrape-run log.
//
// Lookup methods return (nil, nil) when the requested document does not
// exist; services translate absence into their own not-found errors.
type Repository struct {
	client *mongo.Client
	dbName string
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, uri string, dbName string) (*Repository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Repository{client: client, dbName: dbName}, nil
}

// Close closes the MongoDB connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *Repository) collection(name string) *mongo.Collection {
	return r.client.Database(r.dbName).Collection(name)
}

// GetByTitle fetches a catalog item by its title.
func (r *Repository) GetByTitle(ctx context.Context, title string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.collection(catalogCollection).FindOne(ctx, bson.M{"title": title}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find item %q: %w", title, err)
	}
	return &item, nil
}

// Exists reports whether a catalog item with the given title is stored.
func (r *Repository) Exists(ctx context.Context, title string) (bool, error) {
	count, err := r.collection(catalogCollection).CountDocuments(ctx, bson.M{"title": title}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count item %q: %w", title, err)
	}
	return count > 0, nil
}

// InsertIfAbsent stores the item unless a document with the same title
// already exists. Existing documents are never touched, so accumulated
// ratings survive re-scrapes of the same dish. Returns whether a new
// document was inserted.
func (r *Repository) InsertIfAbsent(ctx context.Context, item models.MenuItem) (bool, error) {
	res, err := r.collection(catalogCollection).UpdateOne(ctx,
		bson.M{"title": item.Title},
		bson.M{"$setOnInsert": item},
		options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("upsert item %q: %w", item.Title, err)
	}
	return res.UpsertedCount > 0, nil
}

// IncrementRating atomically adds value to the item's rating sum and bumps
// rating_count, returning the post-update document.
func (r *Repository) IncrementRating(ctx context.Context, title string, value float64) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.collection(catalogCollection).FindOneAndUpdate(ctx,
		bson.M{"title": title},
		bson.M{"$inc": bson.M{"rating": value, "rating_count": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("increment rating for %q: %w", title, err)
	}
	return &item, nil
}

// CorrectRating replaces the item's rating sum, but only if the stored
// sum/count still match what the caller observed. Returns false when the
// document changed underneath the caller, who is expected to retry.
func (r *Repository) CorrectRating(ctx context.Context, title string, prevSum float64, prevCount int64, newSum float64) (bool, error) {
	res, err := r.collection(catalogCollection).UpdateOne(ctx,
		bson.M{"title": title, "rating": prevSum, "rating_count": prevCount},
		bson.M{"$set": bson.M{"rating": newSum}})
	if err != nil {
		return false, fmt.Errorf("correct rating for %q: %w", title, err)
	}
	return res.MatchedCount > 0, nil
}

// ResetDailyIndex unconditionally drops every entry of the daily index.
// Called once at the start of each scrape run.
func (r *Repository) ResetDailyIndex(ctx context.Context) error {
	if _, err := r.collection(dailyCollection).DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("reset daily index: %w", err)
	}
	return nil
}

// AddDailyTitle records a title as being on today's menu.
func (r *Repository) AddDailyTitle(ctx context.Context, title string) error {
	if _, err := r.collection(dailyCollection).InsertOne(ctx, models.DailyIndexEntry{Title: title}); err != nil {
		return fmt.Errorf("insert daily title %q: %w", title, err)
	}
	return nil
}

// DailyTitles returns the distinct titles currently in the daily index.
func (r *Repository) DailyTitles(ctx context.Context) ([]string, error) {
	raw, err := r.collection(dailyCollection).Distinct(ctx, "title", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("load daily titles: %w", err)
	}

	titles := make([]string, 0, len(raw))
	for _, v := range raw {
		if title, ok := v.(string); ok {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

// ItemsByTitles fetches every catalog item whose title is in titles.
func (r *Repository) ItemsByTitles(ctx context.Context, titles []string) ([]models.MenuItem, error) {
	cursor, err := r.collection(catalogCollection).Find(ctx, bson.M{"title": bson.M{"$in": titles}})
	if err != nil {
		return nil, fmt.Errorf("load items by title: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.MenuItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

// GetUser fetches a user's rating ledger.
func (r *Repository) GetUser(ctx context.Context, uid string) (*models.UserRecord, error) {
	var user models.UserRecord
	err := r.collection(usersCollection).FindOne(ctx, bson.M{"uid": uid}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", uid, err)
	}
	return &user, nil
}

// CreateUser inserts an empty ledger for the uid unless one already exists.
// Returns whether a new record was created.
func (r *Repository) CreateUser(ctx context.Context, uid string) (bool, error) {
	record := models.UserRecord{UID: uid, RatedFood: []string{}}
	res, err := r.collection(usersCollection).UpdateOne(ctx,
		bson.M{"uid": uid},
		bson.M{"$setOnInsert": record},
		options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("create user %q: %w", uid, err)
	}
	return res.UpsertedCount > 0, nil
}

// AddRatedFood appends the title to the user's rated-food log. $addToSet
// keeps the at-most-once invariant even under concurrent submissions.
func (r *Repository) AddRatedFood(ctx context.Context, uid string, title string) error {
	if _, err := r.collection(usersCollection).UpdateOne(ctx,
		bson.M{"uid": uid},
		bson.M{"$addToSet": bson.M{"ratedFood": title}}); err != nil {
		return fmt.Errorf("append rated food for %q: %w", uid, err)
	}
	return nil
}

// RemoveRatedFood deletes the title from the user's rated-food log. Used to
// undo a ledger append whose matching aggregate update failed.
func (r *Repository) RemoveRatedFood(ctx context.Context, uid string, title string) error {
	if _, err := r.collection(usersCollection).UpdateOne(ctx,
		bson.M{"uid": uid},
		bson.M{"$pull": bson.M{"ratedFood": title}}); err != nil {
		return fmt.Errorf("remove rated food for %q: %w", uid, err)
	}
	return nil
}

// AddMacros atomically adds the delta to the user's macro accumulators, then
// clamps every accumulator at zero. Returns the post-clamp totals.
func (r *Repository) AddMacros(ctx context.Context, uid string, delta models.Macros) (*models.Macros, error) {
	users := r.collection(usersCollection)

	if _, err := users.UpdateOne(ctx,
		bson.M{"uid": uid},
		bson.M{"$inc": bson.M{
			"macros.calories": delta.Calories,
			"macros.protein":  delta.Protein,
			"macros.carbs":    delta.Carbs,
			"macros.fat":      delta.Fat,
		}}); err != nil {
		return nil, fmt.Errorf("accumulate macros for %q: %w", uid, err)
	}

	var user models.UserRecord
	err := users.FindOneAndUpdate(ctx,
		bson.M{"uid": uid},
		bson.M{"$max": bson.M{
			"macros.calories": int64(0),
			"macros.protein":  int64(0),
			"macros.carbs":    int64(0),
			"macros.fat":      int64(0),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clamp macros for %q: %w", uid, err)
	}
	return &user.Macros, nil
}

// ResetMacros zeroes all four macro accumulators for the uid.
func (r *Repository) ResetMacros(ctx context.Context, uid string) error {
	if _, err := r.collection(usersCollection).UpdateOne(ctx,
		bson.M{"uid": uid},
		bson.M{"$set": bson.M{"macros": models.Macros{}}}); err != nil {
		return fmt.Errorf("reset macros for %q: %w", uid, err)
	}
	return nil
}

// SaveScrapeReport stores the summary of a scrape run.
func (r *Repository) SaveScrapeReport(ctx context.Context, report models.ScrapeReport) error {
	report.CreatedAt = time.Now().UTC()
	if _, err := r.collection(runsCollection).InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to insert scrape report: %w", err)
	}
	return nil
}
