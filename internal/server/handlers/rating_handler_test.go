package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzich/nudining/internal/domain/models"
	"github.com/kzich/nudining/internal/server/handlers"
	"github.com/kzich/nudining/internal/service/rating"
)

type mapCatalog struct {
	items map[string]*models.MenuItem
}

func (c *mapCatalog) GetByTitle(_ context.Context, title string) (*models.MenuItem, error) {
	item, ok := c.items[title]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (c *mapCatalog) IncrementRating(_ context.Context, title string, value float64) (*models.MenuItem, error) {
	item, ok := c.items[title]
	if !ok {
		return nil, nil
	}
	item.Rating += value
	item.RatingCount++
	copied := *item
	return &copied, nil
}

func (c *mapCatalog) CorrectRating(_ context.Context, title string, prevSum float64, prevCount int64, newSum float64) (bool, error) {
	item, ok := c.items[title]
	if !ok || item.Rating != prevSum || item.RatingCount != prevCount {
		return false, nil
	}
	item.Rating = newSum
	return true, nil
}

type mapUsers struct {
	users map[string]*models.UserRecord
}

func (u *mapUsers) GetUser(_ context.Context, uid string) (*models.UserRecord, error) {
	user, ok := u.users[uid]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (u *mapUsers) CreateUser(_ context.Context, uid string) (bool, error) {
	if _, ok := u.users[uid]; ok {
		return false, nil
	}
	u.users[uid] = &models.UserRecord{UID: uid, RatedFood: []string{}}
	return true, nil
}

func (u *mapUsers) AddRatedFood(_ context.Context, uid string, title string) error {
	user := u.users[uid]
	user.RatedFood = append(user.RatedFood, title)
	return nil
}

func (u *mapUsers) RemoveRatedFood(_ context.Context, uid string, title string) error {
	user := u.users[uid]
	kept := user.RatedFood[:0]
	for _, t := range user.RatedFood {
		if t != title {
			kept = append(kept, t)
		}
	}
	user.RatedFood = kept
	return nil
}

func (u *mapUsers) AddMacros(_ context.Context, uid string, delta models.Macros) (*models.Macros, error) {
	user, ok := u.users[uid]
	if !ok {
		return nil, nil
	}
	user.Macros.Calories += delta.Calories
	user.Macros.Protein += delta.Protein
	user.Macros.Carbs += delta.Carbs
	user.Macros.Fat += delta.Fat
	copied := user.Macros
	return &copied, nil
}

func (u *mapUsers) ResetMacros(_ context.Context, uid string) error {
	u.users[uid].Macros = models.Macros{}
	return nil
}

func testEngine(catalog *mapCatalog, users *mapUsers) *gin.Engine {
	return testEngineAs("", catalog, users)
}

// testEngineAs builds the routes with a stand-in for the identity
// middleware that resolved verifiedUID; empty means no verifier configured.
func testEngineAs(verifiedUID string, catalog *mapCatalog, users *mapUsers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := rating.NewService(catalog, users, nil)
	ratingHandler := handlers.NewRatingHandler(svc, nil)
	userHandler := handlers.NewUserHandler(svc, nil)

	r := gin.New()
	if verifiedUID != "" {
		r.Use(func(c *gin.Context) {
			c.Set("uid", verifiedUID)
			c.Next()
		})
	}
	r.POST("/ratings", ratingHandler.SubmitRating)
	r.POST("/macros/log", ratingHandler.LogMacros)
	r.POST("/macros/reset", ratingHandler.ResetMacros)
	r.GET("/users/:uid/ratedFood", userHandler.RatedFood)
	r.POST("/users", userHandler.Create)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitRatingEndpoint(t *testing.T) {
	catalog := &mapCatalog{items: map[string]*models.MenuItem{
		"Pancakes": {Title: "Pancakes", Rating: 10, RatingCount: 2},
	}}
	users := &mapUsers{users: map[string]*models.UserRecord{
		"u1": {UID: "u1", RatedFood: []string{}},
	}}
	r := testEngine(catalog, users)

	w := post(r, "/ratings", `{"title":"Pancakes","uid":"u1","value":4}`)
	require.Equal(t, http.StatusOK, w.Code)

	var item models.MenuItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, float64(14), item.Rating)
	assert.Equal(t, int64(3), item.RatingCount)
}

func TestSubmitRatingEndpointErrors(t *testing.T) {
	catalog := &mapCatalog{items: map[string]*models.MenuItem{}}
	users := &mapUsers{users: map[string]*models.UserRecord{
		"u1": {UID: "u1", RatedFood: []string{}},
	}}
	r := testEngine(catalog, users)

	assert.Equal(t, http.StatusBadRequest, post(r, "/ratings", `{"title":`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/ratings", `{"title":"X","uid":"u1","value":9}`).Code)
	assert.Equal(t, http.StatusNotFound, post(r, "/ratings", `{"title":"X","uid":"ghost","value":3}`).Code)
	assert.Equal(t, http.StatusNotFound, post(r, "/ratings", `{"title":"Unknown","uid":"u1","value":3}`).Code)
}

func TestLogMacrosEndpoint(t *testing.T) {
	users := &mapUsers{users: map[string]*models.UserRecord{
		"u1": {UID: "u1", RatedFood: []string{}},
	}}
	r := testEngine(&mapCatalog{items: map[string]*models.MenuItem{}}, users)

	w := post(r, "/macros/log", `{"uid":"u1","servingSize":2,"foodItem":{"title":"Pancakes","nutritional_info":{"Calories":"150 calories","Protein (g)":"less than 1 gram"}}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Macros models.Macros `json:"macros"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(300), resp.Macros.Calories)
	assert.Equal(t, int64(0), resp.Macros.Protein)

	assert.Equal(t, http.StatusNotFound, post(r, "/macros/reset", `{"uid":"ghost"}`).Code)
	assert.Equal(t, http.StatusOK, post(r, "/macros/reset", `{"uid":"u1"}`).Code)
	assert.Equal(t, models.Macros{}, users.users["u1"].Macros)
}

func TestVerifiedUIDMustMatchRequest(t *testing.T) {
	catalog := &mapCatalog{items: map[string]*models.MenuItem{
		"Pancakes": {Title: "Pancakes", Rating: 10, RatingCount: 2},
	}}
	users := &mapUsers{users: map[string]*models.UserRecord{
		"u1": {UID: "u1", RatedFood: []string{}},
		"u2": {UID: "u2", RatedFood: []string{}},
	}}
	r := testEngineAs("u1", catalog, users)

	// A valid token for u1 must not let the caller act as u2.
	assert.Equal(t, http.StatusForbidden, post(r, "/ratings", `{"title":"Pancakes","uid":"u2","value":4}`).Code)
	assert.Equal(t, http.StatusForbidden, post(r, "/macros/log", `{"uid":"u2","servingSize":1,"foodItem":{"title":"Pancakes","nutritional_info":{}}}`).Code)
	assert.Equal(t, http.StatusForbidden, post(r, "/macros/reset", `{"uid":"u2"}`).Code)
	assert.Equal(t, http.StatusForbidden, post(r, "/users", `{"uid":"u2"}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/users/u2/ratedFood", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// A matching uid still goes through.
	assert.Equal(t, http.StatusOK, post(r, "/ratings", `{"title":"Pancakes","uid":"u1","value":4}`).Code)
	assert.Equal(t, int64(3), catalog.items["Pancakes"].RatingCount)
}

func TestCreateUserEndpoint(t *testing.T) {
	users := &mapUsers{users: map[string]*models.UserRecord{}}
	r := testEngine(&mapCatalog{items: map[string]*models.MenuItem{}}, users)

	assert.Equal(t, http.StatusCreated, post(r, "/users", `{"uid":"u1"}`).Code)
	assert.Equal(t, http.StatusOK, post(r, "/users", `{"uid":"u1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/users", `{"uid":""}`).Code)
}

func TestRatedFoodEndpoint(t *testing.T) {
	users := &mapUsers{users: map[string]*models.UserRecord{
		"u1": {UID: "u1", RatedFood: []string{"Soup", "Pancakes"}},
	}}
	r := testEngine(&mapCatalog{items: map[string]*models.MenuItem{}}, users)

	req := httptest.NewRequest(http.MethodGet, "/users/u1/ratedFood", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RatedFood []string `json:"ratedFood"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Soup", "Pancakes"}, resp.RatedFood)

	req = httptest.NewRequest(http.MethodGet, "/users/ghost/ratedFood", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
