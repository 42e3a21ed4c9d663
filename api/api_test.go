package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/AUrban/DeliciousFood/api"
	"github.com/AUrban/DeliciousFood/dao"
	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/db/sqlite"
	"github.com/AUrban/DeliciousFood/service"
	"github.com/AUrban/DeliciousFood/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv   *httptest.Server
	store *db.Store
}

type testCalories struct{}

func (testCalories) Calories(ctx context.Context, title string) (float64, error) {
	return 52, nil
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	sqlDB, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})
	require.NoError(t, dao.InitSchema(sqlDB))

	store := db.NewStore(sqlDB)
	tokens := token.Provider{
		Secret:      []byte("test secret"),
		AccessTTL:   20 * time.Minute,
		RefreshTTL:  12 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
	}

	srv := httptest.NewServer(api.New(store, tokens, testCalories{}, nil).Routes())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, store: store}
}

func (ts *testServer) seedUser(t *testing.T, login string, password string, mask dao.Policy) *dao.User {
	t.Helper()

	var security service.SecurityProvider
	hash, err := security.HashPassword(password)
	require.NoError(t, err)

	users := db.NewEntityRepository(ts.store, dao.UserBinding)
	user := users.Create()
	user.Login = login
	user.PasswordHash = hash
	user.Name = login
	user.PolicyMask = mask

	provider := db.NewDataAccessProvider(ts.store.DB)
	ctx := db.WithStorage(context.Background(), db.NewStorage())
	require.NoError(t, provider.Run(ctx, func(ctx context.Context) error {
		return users.Save(ctx, user)
	}))
	return user
}

// request performs a JSON request and decodes the response body into out, if
// out is non-nil.
func (ts *testServer) request(t *testing.T, method string, path string, accessToken string, body any, out any) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reqBody)
	require.NoError(t, err)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (ts *testServer) login(t *testing.T, login string, password string) service.TokenViewModel {
	t.Helper()

	var tokens service.TokenViewModel
	resp := ts.request(t, http.MethodPost, "/login", "", service.LoginViewModel{Login: login, Password: password}, &tokens)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return tokens
}

func Test_API_Login(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "Secret#1", dao.PolicyUsers)

	tokens := ts.login(t, "alice", "Secret#1")
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func Test_API_LoginBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "Secret#1", dao.PolicyUsers)

	var body map[string][]string
	resp := ts.request(t, http.MethodPost, "/login", "", service.LoginViewModel{Login: "alice", Password: "wrong"}, &body)

	assert := assert.New(t)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Equal([]string{"Invalid login or password!"}, body["User"])
}

func Test_API_RefreshAndLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "Secret#1", dao.PolicyUsers)
	tokens := ts.login(t, "alice", "Secret#1")

	var refreshed service.TokenViewModel
	resp := ts.request(t, http.MethodGet, "/refresh?refreshToken="+tokens.RefreshToken, "", nil, &refreshed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, refreshed.AccessToken)

	resp = ts.request(t, http.MethodGet, "/logout?refreshToken="+tokens.RefreshToken, "", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// after logout the refresh token is dead
	resp = ts.request(t, http.MethodGet, "/refresh?refreshToken="+tokens.RefreshToken, "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func Test_API_AuthRequired(t *testing.T) {
	ts := newTestServer(t)

	testCases := []struct {
		name  string
		token string
	}{
		{name: "no token", token: ""},
		{name: "garbage token", token: "not.a.token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := ts.request(t, http.MethodGet, "/foods", tc.token, nil, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func Test_API_RefreshTokenIsNotAnAccessToken(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "Secret#1", dao.PolicyUsers)
	tokens := ts.login(t, "alice", "Secret#1")

	resp := ts.request(t, http.MethodGet, "/foods", tokens.RefreshToken, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func Test_API_UsersRequireModeratorPolicy(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "Secret#1", dao.PolicyUsers)
	tokens := ts.login(t, "alice", "Secret#1")

	resp := ts.request(t, http.MethodGet, "/users", tokens.AccessToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func Test_API_UserCRUD(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "mod", "Secret#1", dao.PolicyModerators)
	tokens := ts.login(t, "mod", "Secret#1")

	assert := assert.New(t)

	var created service.UserEditModel
	resp := ts.request(t, http.MethodPost, "/users", tokens.AccessToken, service.UserEditModel{
		Login:      "bob",
		Password:   "Secret#2",
		Name:       "Bob",
		PolicyList: []string{"Users"},
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, created.ID)
	assert.Empty(created.Password)

	var view service.UserViewModel
	resp = ts.request(t, http.MethodGet, fmt.Sprintf("/users/%d", *created.ID), tokens.AccessToken, nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal("bob", view.Login)
	assert.Equal("Users", view.PolicyDescription)

	var updated service.UserEditModel
	resp = ts.request(t, http.MethodPut, fmt.Sprintf("/users/%d", *created.ID), tokens.AccessToken, service.UserEditModel{
		ID:         created.ID,
		Login:      "bob",
		Name:       "Robert",
		PolicyList: []string{"Users"},
	}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal("Robert", updated.Name)

	resp = ts.request(t, http.MethodDelete, fmt.Sprintf("/users/%d", *created.ID), tokens.AccessToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]string
	resp = ts.request(t, http.MethodGet, fmt.Sprintf("/users/%d", *created.ID), tokens.AccessToken, nil, &body)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	assert.Contains(body, "id")
}

func Test_API_FoodCRUD(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.seedUser(t, "alice", "Secret#1", dao.PolicyUsers)
	tokens := ts.login(t, "alice", "Secret#1")
	base := fmt.Sprintf("/users/%d/foods", alice.ID)

	assert := assert.New(t)

	var created service.FoodEditModel
	calories := 100.0
	resp := ts.request(t, http.MethodPost, base, tokens.AccessToken, service.FoodEditModel{
		Title:            "1 green apple",
		Type:             dao.Breakfast,
		NumberOfCalories: &calories,
		Country:          "USA",
		IsPublic:         true,
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, created.ID)

	var list []service.FoodViewModel
	resp = ts.request(t, http.MethodGet, base, tokens.AccessToken, nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal("1 green apple", list[0].Title)
	assert.Equal("alice", list[0].UserDescription)

	// a filter narrows the listing
	resp = ts.request(t, http.MethodGet, base+`?filter=numberofcalories+gt+500`, tokens.AccessToken, nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(list)

	// a malformed filter is a 400
	var body map[string][]string
	resp = ts.request(t, http.MethodGet, base+`?filter=wings+eq+2`, tokens.AccessToken, nil, &body)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Contains(body, "FilterModel")

	resp = ts.request(t, http.MethodDelete, fmt.Sprintf("%s/%d", base, *created.ID), tokens.AccessToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func Test_API_ForeignFoodsAreForbidden(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "alice", "Secret#1", dao.PolicyUsers)
	bob := ts.seedUser(t, "bob", "Secret#1", dao.PolicyUsers)
	tokens := ts.login(t, "alice", "Secret#1")

	resp := ts.request(t, http.MethodGet, fmt.Sprintf("/users/%d/foods", bob.ID), tokens.AccessToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func Test_API_AdminsReachForeignFoods(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.seedUser(t, "alice", "Secret#1", dao.PolicyUsers)
	ts.seedUser(t, "root", "Secret#1", dao.PolicyAdmins)
	tokens := ts.login(t, "root", "Secret#1")

	resp := ts.request(t, http.MethodGet, fmt.Sprintf("/users/%d/foods", alice.ID), tokens.AccessToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func Test_API_PublicAndDelicious(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.seedUser(t, "alice", "Secret#1", dao.PolicyUsers)
	ts.seedUser(t, "bob", "Secret#1", dao.PolicyUsers)
	aliceTokens := ts.login(t, "alice", "Secret#1")
	bobTokens := ts.login(t, "bob", "Secret#1")

	assert := assert.New(t)

	var created service.FoodEditModel
	calories := 250.0
	resp := ts.request(t, http.MethodPost, fmt.Sprintf("/users/%d/foods", alice.ID), aliceTokens.AccessToken, service.FoodEditModel{
		Title:            "burger",
		Type:             dao.Lunch,
		NumberOfCalories: &calories,
		Country:          "USA",
		IsPublic:         true,
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// bob sees alice's public record
	var public []service.FoodViewModel
	resp = ts.request(t, http.MethodGet, "/foods/public", bobTokens.AccessToken, nil, &public)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, public, 1)
	assert.Equal("burger", public[0].Title)

	// and can mark it delicious
	var marked service.FoodViewModel
	resp = ts.request(t, http.MethodPost, "/foods/delicious", bobTokens.AccessToken, service.DeliciousEditModel{FoodID: *created.ID}, &marked)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal("burger", marked.Title)

	var delicious []service.FoodViewModel
	resp = ts.request(t, http.MethodGet, "/foods/delicious", bobTokens.AccessToken, nil, &delicious)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, delicious, 1)
	assert.Equal("burger", delicious[0].Title)

	// marking a nonexistent record is a 404 on foodId
	var body map[string][]string
	resp = ts.request(t, http.MethodPost, "/foods/delicious", bobTokens.AccessToken, service.DeliciousEditModel{FoodID: 9999}, &body)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	assert.Contains(body, "foodId")
}

func Test_API_MalformedBody(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "mod", "Secret#1", dao.PolicyModerators)
	tokens := ts.login(t, "mod", "Secret#1")

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/users", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
