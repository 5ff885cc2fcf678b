package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/conduitapp/conduit/internal/auth"
	"github.com/conduitapp/conduit/internal/infrastructure/config"
	"github.com/conduitapp/conduit/internal/infrastructure/logging"
	"github.com/conduitapp/conduit/internal/store"
)

const testSecret = "test-secret-test-secret-test-secret!"

// fakeUsers is an in-memory UserStore.
type fakeUsers struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]store.User
	follows map[[2]int64]bool
	err     error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		nextID:  1,
		users:   make(map[int64]store.User),
		follows: make(map[[2]int64]bool),
	}
}

func (f *fakeUsers) add(username, email, hash string) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := store.User{ID: f.nextID, Username: username, Email: email, PasswordHash: hash}
	f.users[u.ID] = u
	f.nextID++
	return u
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Register(_ context.Context, username, email, hash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return store.User{}, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			return store.User{}, store.ErrEmailTaken
		}
		if u.Username == username {
			return store.User{}, store.ErrUsernameTaken
		}
	}
	u := store.User{ID: f.nextID, Username: username, Email: email, PasswordHash: hash}
	f.users[u.ID] = u
	f.nextID++
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, id int64, username, email, bio, image *string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return store.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	if username != nil {
		u.Username = *username
	}
	if email != nil {
		u.Email = *email
	}
	if bio != nil {
		u.Bio = bio
	}
	if image != nil {
		u.Image = image
	}
	f.users[id] = u
	return u, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return 0, nil
	}
	u.PasswordHash = hash
	f.users[id] = u
	return 1, nil
}

func (f *fakeUsers) GetProfile(_ context.Context, viewerID int64, username string) (*store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Username == username {
			return &store.Profile{
				UserID:    u.ID,
				Username:  u.Username,
				Bio:       u.Bio,
				Image:     u.Image,
				Following: f.follows[[2]int64{u.ID, viewerID}],
			}, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Follow(_ context.Context, userID, followerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows[[2]int64{userID, followerID}] = true
	return f.err
}

func (f *fakeUsers) Unfollow(_ context.Context, userID, followerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.follows, [2]int64{userID, followerID})
	return f.err
}

// fakeArticles is an in-memory ArticleStore.
type fakeArticles struct {
	mu        sync.Mutex
	nextID    int64
	articles  map[int64]store.ArticleDetails
	favorites map[[2]int64]bool
	err       error
}

func newFakeArticles() *fakeArticles {
	return &fakeArticles{
		nextID:    1,
		articles:  make(map[int64]store.ArticleDetails),
		favorites: make(map[[2]int64]bool),
	}
}

func (f *fakeArticles) add(author store.Profile, title string, tags []string) store.ArticleDetails {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tags == nil {
		tags = []string{}
	}
	a := store.ArticleDetails{
		ID:      f.nextID,
		Slug:    store.Slugify(title),
		Title:   title,
		TagList: tags,
		Author:  author,
	}
	f.articles[a.ID] = a
	f.nextID++
	return a
}

func (f *fakeArticles) view(a store.ArticleDetails, viewerID int64) store.ArticleDetails {
	a.Favorited = f.favorites[[2]int64{viewerID, a.ID}]
	var count int64
	for key, ok := range f.favorites {
		if ok && key[1] == a.ID {
			count++
		}
	}
	a.FavoritesCount = count
	return a
}

func (f *fakeArticles) GetBySlug(_ context.Context, viewerID int64, slug string) (*store.ArticleDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.articles {
		if a.Slug == slug {
			v := f.view(a, viewerID)
			return &v, nil
		}
	}
	return nil, nil
}

func (f *fakeArticles) GetByID(_ context.Context, viewerID, id int64) (*store.ArticleDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.articles[id]; ok {
		v := f.view(a, viewerID)
		return &v, nil
	}
	return nil, nil
}

func (f *fakeArticles) List(_ context.Context, viewerID int64, limit, offset int64) ([]store.ArticleDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []store.ArticleDetails{}
	for id := f.nextID - 1; id >= 1; id-- {
		a, ok := f.articles[id]
		if !ok {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		if int64(len(out)) >= limit {
			break
		}
		out = append(out, f.view(a, viewerID))
	}
	return out, nil
}

func (f *fakeArticles) Feed(ctx context.Context, userID int64, limit, offset int64) ([]store.ArticleDetails, error) {
	return f.List(ctx, userID, limit, offset)
}

func (f *fakeArticles) Create(_ context.Context, authorID int64, title, description, body string, tags []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if tags == nil {
		tags = []string{}
	}
	a := store.ArticleDetails{
		ID:          f.nextID,
		Slug:        store.Slugify(title),
		Title:       title,
		Description: description,
		Body:        body,
		TagList:     tags,
		Author:      store.Profile{UserID: authorID},
	}
	f.articles[a.ID] = a
	f.nextID++
	return a.ID, nil
}

func (f *fakeArticles) Update(_ context.Context, id int64, slug string, title, description, body *string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	a, ok := f.articles[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Slug = slug
	if title != nil {
		a.Title = *title
	}
	if description != nil {
		a.Description = *description
	}
	if body != nil {
		a.Body = *body
	}
	if tags != nil {
		a.TagList = tags
	}
	f.articles[id] = a
	return nil
}

func (f *fakeArticles) Delete(_ context.Context, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if _, ok := f.articles[id]; !ok {
		return 0, nil
	}
	delete(f.articles, id)
	return 1, nil
}

func (f *fakeArticles) Favorite(_ context.Context, userID, articleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favorites[[2]int64{userID, articleID}] = true
	return f.err
}

func (f *fakeArticles) Unfavorite(_ context.Context, userID, articleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.favorites, [2]int64{userID, articleID})
	return f.err
}

// fakeComments is an in-memory CommentStore.
type fakeComments struct {
	mu       sync.Mutex
	nextID   int64
	comments map[int64]store.CommentDetails
	articles map[int64]int64
	err      error
}

func newFakeComments() *fakeComments {
	return &fakeComments{
		nextID:   1,
		comments: make(map[int64]store.CommentDetails),
		articles: make(map[int64]int64),
	}
}

func (f *fakeComments) GetByID(_ context.Context, _, commentID int64) (*store.CommentDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.comments[commentID]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeComments) ListBySlug(_ context.Context, _ int64, _ string) ([]store.CommentDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []store.CommentDetails{}
	for id := f.nextID - 1; id >= 1; id-- {
		if c, ok := f.comments[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComments) Create(_ context.Context, articleID, userID int64, body string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	c := store.CommentDetails{ID: f.nextID, Body: body, Author: store.Profile{UserID: userID}}
	f.comments[c.ID] = c
	f.articles[c.ID] = articleID
	f.nextID++
	return c.ID, nil
}

func (f *fakeComments) Delete(_ context.Context, commentID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if _, ok := f.comments[commentID]; !ok {
		return 0, nil
	}
	delete(f.comments, commentID)
	return 1, nil
}

// fakeTags is a fixed TagStore.
type fakeTags struct {
	tags []string
	err  error
}

func (f *fakeTags) List(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tags, nil
}

// fakeDB is a scriptable HealthChecker.
type fakeDB struct {
	mu  sync.Mutex
	err error
}

func (f *fakeDB) HealthCheck(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// testEnv bundles a server and its fakes.
type testEnv struct {
	server   *Server
	handler  http.Handler
	users    *fakeUsers
	articles *fakeArticles
	comments *fakeComments
	tags     *fakeTags
	db       *fakeDB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:    newFakeUsers(),
		articles: newFakeArticles(),
		comments: newFakeComments(),
		tags:     &fakeTags{tags: []string{}},
		db:       &fakeDB{},
	}

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 8080},
		Security: config.SecurityConfig{JWT: config.JWTConfig{
			Secret:       testSecret,
			TokenTTLDays: 21,
		}},
		Logger:   logging.Default(),
		Users:    env.users,
		Articles: env.articles,
		Comments: env.comments,
		Tags:     env.tags,
		DB:       env.db,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.server = srv
	env.handler = srv.buildRouter()
	return env
}

// tokenFor mints a valid token for the given user ID.
func tokenFor(t *testing.T, id int64) string {
	t.Helper()
	token, err := auth.GenerateToken(id, testSecret, auth.DefaultTokenTTL)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

// do runs a request through the router and returns the recorder.
func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", tokenPrefix+token)
	}

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

// decode unpacks a JSON response body, failing the test on malformed
// output.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// registerUser registers through the API and returns the issued token.
func (env *testEnv) registerUser(t *testing.T, username, email, password string) string {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/users", "", map[string]any{
		"user": map[string]string{"username": username, "email": email, "password": password},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %s", username, rec.Code, rec.Body.String())
	}

	var resp struct {
		User userResponse `json:"user"`
	}
	decode(t, rec, &resp)
	if resp.User.Token == "" {
		t.Fatal("register returned empty token")
	}
	return resp.User.Token
}

// assertStatus fails with the response body when the status differs.
func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, want, rec.Body.String())
	}
}

// mustContain fails unless the response body contains the substring.
func mustContain(t *testing.T, rec *httptest.ResponseRecorder, substr string) {
	t.Helper()
	if !strings.Contains(rec.Body.String(), substr) {
		t.Fatalf("body %q does not contain %q", rec.Body.String(), substr)
	}
}
