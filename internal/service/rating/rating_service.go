package rating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/domain/models"
)

// ErrValidation indicates a missing or out-of-range request field.
var ErrValidation = errors.New("invalid request")

// ErrUserNotFound indicates no ledger exists for the uid; users must be
// created explicitly before rating.
var ErrUserNotFound = errors.New("user not found")

// ErrItemNotFound indicates the rated title is not in the catalog.
var ErrItemNotFound = errors.New("item not found")

// ErrNeverRated indicates a correction against an item whose rating_count
// is still zero; there is no prior aggregate to subtract from.
var ErrNeverRated = errors.New("item has never been rated")

// ErrConflict indicates the correction lost every compare-and-swap attempt
// against concurrent updates.
var ErrConflict = errors.New("rating update conflicted, retry")

// Ratings come from a five-star widget.
const (
	minRating = 1.0
	maxRating = 5.0
)

const correctionAttempts = 3

// CatalogStore is the per-item aggregate surface the reconciler mutates.
// Lookups return (nil, nil) for absent items; IncrementRating must be a
// single atomic storage operation.
type CatalogStore interface {
	GetByTitle(ctx context.Context, title string) (*models.MenuItem, error)
	IncrementRating(ctx context.Context, title string, value float64) (*models.MenuItem, error)
	CorrectRating(ctx context.Context, title string, prevSum float64, prevCount int64, newSum float64) (bool, error)
}

// UserStore is the per-user ledger surface.
type UserStore interface {
	GetUser(ctx context.Context, uid string) (*models.UserRecord, error)
	CreateUser(ctx context.Context, uid string) (bool, error)
	AddRatedFood(ctx context.Context, uid string, title string) error
	RemoveRatedFood(ctx context.Context, uid string, title string) error
	AddMacros(ctx context.Context, uid string, delta models.Macros) (*models.Macros, error)
	ResetMacros(ctx context.Context, uid string) error
}

// Service reconciles rating submissions against the per-item aggregates and
// the per-user ledger, and accumulates macro totals.
type Service struct {
	catalog CatalogStore
	users   UserStore
	logger  *zap.Logger
}

// NewService wires a reconciler instance.
func NewService(catalog CatalogStore, users UserStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, users: users, logger: logger}
}

// SubmitRating applies one rating submission. First-time ratings increment
// the item's running sum and count atomically and append the title to the
// user's ledger. Re-rates take the correction path: the user's prior
// contribution is approximated by the current average and replaced with the
// new value, leaving the count unchanged. Returns the post-update item.
func (s *Service) SubmitRating(ctx context.Context, title, uid string, value float64) (*models.MenuItem, error) {
	if title == "" || uid == "" {
		return nil, fmt.Errorf("%w: title and uid are required", ErrValidation)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < minRating || value > maxRating {
		return nil, fmt.Errorf("%w: rating value must be between %g and %g", ErrValidation, minRating, maxRating)
	}

	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, uid)
	}

	if user.HasRated(title) {
		return s.correctRating(ctx, title, uid, value)
	}

	// The ledger entry goes in before the increment so a failed increment
	// can be rolled back without touching the aggregate. The reverse order
	// would let a retry after a ledger failure re-enter the first-time
	// path and count the user twice.
	if err := s.users.AddRatedFood(ctx, uid, title); err != nil {
		return nil, err
	}

	item, err := s.catalog.IncrementRating(ctx, title, value)
	if err != nil || item == nil {
		if rbErr := s.users.RemoveRatedFood(ctx, uid, title); rbErr != nil {
			s.logger.Error("rated-food rollback failed",
				zap.String("title", title),
				zap.String("uid", uid),
				zap.Error(rbErr))
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, title)
	}

	s.logger.Debug("rating recorded",
		zap.String("title", title),
		zap.String("uid", uid),
		zap.Float64("value", value))
	return item, nil
}

// correctRating replaces the user's prior contribution, approximated by the
// item's current average. The read-compute-write runs as a bounded
// compare-and-swap loop so concurrent corrections retry instead of losing
// updates.
func (s *Service) correctRating(ctx context.Context, title, uid string, value float64) (*models.MenuItem, error) {
	for attempt := 0; attempt < correctionAttempts; attempt++ {
		item, err := s.catalog.GetByTitle(ctx, title)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, title)
		}
		if item.RatingCount == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNeverRated, title)
		}

		prevAverage := item.Rating / float64(item.RatingCount)
		newSum := item.Rating + value - prevAverage

		swapped, err := s.catalog.CorrectRating(ctx, title, item.Rating, item.RatingCount, newSum)
		if err != nil {
			return nil, err
		}
		if swapped {
			s.logger.Debug("rating corrected",
				zap.String("title", title),
				zap.String("uid", uid),
				zap.Float64("value", value),
				zap.Float64("previous_average", prevAverage))
			item.Rating = newSum
			return item, nil
		}

		s.logger.Debug("rating correction raced, retrying", zap.String("title", title), zap.Int("attempt", attempt+1))
	}
	return nil, fmt.Errorf("%w: %s", ErrConflict, title)
}

// LogMacros accumulates the four tracked nutrients from a food item's raw
// nutrition text into the user's macro totals, scaled by servingSize.
// Amounts without a leading numeric token ("less than 1 gram") coerce to
// zero. Accumulators are clamped at zero after the update.
func (s *Service) LogMacros(ctx context.Context, uid string, servingSize float64, nutrition map[string]string) (*models.Macros, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", ErrValidation)
	}
	if math.IsNaN(servingSize) || math.IsInf(servingSize, 0) || servingSize < 0 {
		return nil, fmt.Errorf("%w: servingSize must be a non-negative number", ErrValidation)
	}

	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, uid)
	}

	// One headline entry per tracked nutrient; sub-entries and repeats
	// never accumulate.
	var delta models.Macros
	logged := map[string]bool{}
	for name, amount := range nutrition {
		bucket := trackedNutrient(name)
		if bucket == "" || logged[bucket] {
			continue
		}
		logged[bucket] = true

		total := int64(math.Round(leadingNumber(amount) * servingSize))
		switch bucket {
		case "calories":
			delta.Calories = total
		case "protein":
			delta.Protein = total
		case "carbs":
			delta.Carbs = total
		case "fat":
			delta.Fat = total
		}
	}

	macros, err := s.users.AddMacros(ctx, uid, delta)
	if err != nil {
		return nil, err
	}
	if macros == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, uid)
	}
	return macros, nil
}

// ResetMacros zeroes the user's macro accumulators.
func (s *Service) ResetMacros(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: uid is required", ErrValidation)
	}

	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, uid)
	}

	return s.users.ResetMacros(ctx, uid)
}

// CreateUser creates an empty ledger for the uid; calling it again for the
// same uid is a no-op. Returns whether a new record was created.
func (s *Service) CreateUser(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, fmt.Errorf("%w: uid is required", ErrValidation)
	}
	return s.users.CreateUser(ctx, uid)
}

// RatedFood returns the titles the user has rated, in submission order.
func (s *Service) RatedFood(ctx context.Context, uid string) ([]string, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", ErrValidation)
	}

	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, uid)
	}
	if user.RatedFood == nil {
		return []string{}, nil
	}
	return user.RatedFood, nil
}

// trackedNutrient buckets a free-text nutrient name into one of the four
// tracked macros. Only the headline line for a nutrient counts: qualified
// sub-entries such as "Saturated Fat (g)", "Trans Fat (g)" and
// "Calories from Fat" sit underneath the headline value in the nutrition
// table and must not be added on top of it.
func trackedNutrient(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "total ")
	if strings.Contains(n, "from") {
		return ""
	}
	switch {
	case strings.HasPrefix(n, "calories"):
		return "calories"
	case strings.HasPrefix(n, "protein"):
		return "protein"
	case strings.HasPrefix(n, "carbohydrate") || strings.HasPrefix(n, "carbs"):
		return "carbs"
	case strings.HasPrefix(n, "fat"):
		return "fat"
	}
	return ""
}

// leadingNumber parses the leading numeric token of a raw amount string.
// Text without a leading number ("less than 1 gram") yields zero.
func leadingNumber(amount string) float64 {
	trimmed := strings.TrimSpace(amount)
	end := 0
	for end < len(trimmed) {
		c := trimmed[end]
		if (c >= '0' && c <= '9') || c == '.' {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0
	}
	value, err := strconv.ParseFloat(trimmed[:end], 64)
	if err != nil {
		return 0
	}
	return value
}
