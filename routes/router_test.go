package routes

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yatube-project/yatube/models"
	"github.com/yatube-project/yatube/utils"
)

func TestMain(m *testing.M) {
	mr, err := miniredis.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
		os.Exit(1)
	}

	tmp, err := os.MkdirTemp("", "yatube-test")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("REDIS_HOST", mr.Host())
	os.Setenv("REDIS_PORT", mr.Port())
	os.Setenv("TEMPLATES_GLOB", filepath.Join("..", "templates", "*.html"))
	os.Setenv("GIN_PATH", filepath.Join(tmp, "gin.log"))
	os.Setenv("GIN_MODE", "test")

	code := m.Run()
	mr.Close()
	os.RemoveAll(tmp)
	os.Exit(code)
}

// fakeClock drives the in-memory page cache deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB, *fakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a pooled second connection would see a different :memory: database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Post{},
		&models.Comment{},
		&models.Follow{},
		&models.PageView{},
	))

	clock := newFakeClock()
	return SetupRouter(db, utils.NewMemoryCache(clock.Now)), db, clock
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	user := models.User{Username: username, PasswordHash: hash}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createPost(t *testing.T, db *gorm.DB, author models.User, text string, pubDate time.Time) models.Post {
	t.Helper()
	post := models.Post{Text: text, AuthorID: author.ID, PubDate: pubDate}
	require.NoError(t, db.Create(&post).Error)
	return post
}

func authCookie(t *testing.T, user models.User) *http.Cookie {
	t.Helper()
	token, err := utils.GenerateToken(user.ID, user.Username, time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: utils.AuthCookieName, Value: token}
}

func doGet(r *gin.Engine, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doPostForm(r *gin.Engine, path string, cookie *http.Cookie, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Post{}).Count(&n).Error)
	return n
}

func TestIndexRendersPosts(t *testing.T) {
	r, db, _ := setupRouter(t)
	bob := createUser(t, db, "bob")
	createPost(t, db, bob, "hello from bob", time.Now())

	w := doGet(r, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello from bob")
}

func TestUnknownPathIsNotFound(t *testing.T) {
	r, _, _ := setupRouter(t)
	w := doGet(r, "/no/such/page/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGroupFeed(t *testing.T) {
	r, db, _ := setupRouter(t)
	bob := createUser(t, db, "bob")
	group := models.Group{Title: "Cats", Slug: "cats", Description: "cat talk"}
	require.NoError(t, db.Create(&group).Error)

	post := models.Post{Text: "a cat post", AuthorID: bob.ID, GroupID: &group.ID, PubDate: time.Now()}
	require.NoError(t, db.Create(&post).Error)
	createPost(t, db, bob, "groupless post", time.Now())

	w := doGet(r, "/group/cats/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a cat post")
	assert.NotContains(t, w.Body.String(), "groupless post")

	w = doGet(r, "/group/dogs/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfilePagination(t *testing.T) {
	r, db, _ := setupRouter(t)
	bob := createUser(t, db, "bob")
	base := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 13; i++ {
		createPost(t, db, bob, fmt.Sprintf("post number %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	w := doGet(r, "/profile/bob/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, strings.Count(w.Body.String(), "Read more"))

	w = doGet(r, "/profile/bob/?page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, strings.Count(w.Body.String(), "Read more"))

	// Past-the-end page numbers clamp to the last page.
	w = doGet(r, "/profile/bob/?page=99", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, strings.Count(w.Body.String(), "Read more"))
}

func TestProfileUnknownUserIsNotFound(t *testing.T) {
	r, _, _ := setupRouter(t)
	w := doGet(r, "/profile/nobody/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePostRequiresLogin(t *testing.T) {
	r, db, _ := setupRouter(t)

	w := doPostForm(r, "/create/", nil, url.Values{"text": {"anonymous post"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next=%2Fcreate%2F", w.Header().Get("Location"))
	assert.Equal(t, int64(0), postCount(t, db))
}

func TestCreatePost(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")

	w := doPostForm(r, "/create/", authCookie(t, alice), url.Values{"text": {"my very first post"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/alice/", w.Header().Get("Location"))

	var post models.Post
	require.NoError(t, db.First(&post).Error)
	assert.Equal(t, alice.ID, post.AuthorID)
	assert.Equal(t, "my very first post", post.Text)
	assert.False(t, post.PubDate.IsZero())
	assert.Equal(t, int64(1), postCount(t, db))
}

func TestCreatePostEmptyTextRejected(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")

	w := doPostForm(r, "/create/", authCookie(t, alice), url.Values{"text": {"   "}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Text is required")
	assert.Equal(t, int64(0), postCount(t, db))
}

func TestEditPostByAuthor(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")
	post := createPost(t, db, alice, "original text", time.Now())

	w := doPostForm(r, fmt.Sprintf("/posts/%d/edit/", post.ID), authCookie(t, alice), url.Values{"text": {"edited text"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var got models.Post
	require.NoError(t, db.First(&got, post.ID).Error)
	assert.Equal(t, "edited text", got.Text)
	assert.Equal(t, alice.ID, got.AuthorID)
}

func TestEditPostByNonAuthorIsSilentlyRedirected(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")
	carol := createUser(t, db, "carol")
	post := createPost(t, db, alice, "untouchable", time.Now())

	w := doPostForm(r, fmt.Sprintf("/posts/%d/edit/", post.ID), authCookie(t, carol), url.Values{"text": {"hijacked"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var got models.Post
	require.NoError(t, db.First(&got, post.ID).Error)
	assert.Equal(t, "untouchable", got.Text)
	assert.Equal(t, alice.ID, got.AuthorID)
}

func TestEditUnknownPostIsNotFound(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")

	w := doPostForm(r, "/posts/9999/edit/", authCookie(t, alice), url.Values{"text": {"whatever"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddComment(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	post := createPost(t, db, bob, "commentable", time.Now())

	w := doPostForm(r, fmt.Sprintf("/posts/%d/comment/", post.ID), authCookie(t, alice), url.Values{"text": {"nice post"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var comment models.Comment
	require.NoError(t, db.First(&comment).Error)
	assert.Equal(t, alice.ID, comment.AuthorID)
	assert.Equal(t, post.ID, comment.PostID)
	assert.Equal(t, "nice post", comment.Text)
}

func TestAddEmptyCommentSilentlyRedirects(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")
	post := createPost(t, db, alice, "quiet thread", time.Now())

	w := doPostForm(r, fmt.Sprintf("/posts/%d/comment/", post.ID), authCookie(t, alice), url.Values{"text": {"  "}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestCommentOnUnknownPostIsNotFound(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")

	w := doPostForm(r, "/posts/4242/comment/", authCookie(t, alice), url.Values{"text": {"hello?"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFollowIsIdempotent(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	cookie := authCookie(t, alice)

	for i := 0; i < 2; i++ {
		w := doGet(r, "/profile/bob/follow/", cookie)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/follow/", w.Header().Get("Location"))
	}

	var n int64
	require.NoError(t, db.Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", alice.ID, bob.ID).
		Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestSelfFollowIsRefused(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")

	w := doGet(r, "/profile/alice/follow/", authCookie(t, alice))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/alice/", w.Header().Get("Location"))

	var n int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestUnfollowRemovesRowAndFeedEntries(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	createPost(t, db, bob, "bob writes things", time.Now())
	cookie := authCookie(t, alice)

	doGet(r, "/profile/bob/follow/", cookie)
	w := doGet(r, "/follow/", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bob writes things")

	w = doGet(r, "/profile/bob/unfollow/", cookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/follow/", w.Header().Get("Location"))

	var n int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)

	w = doGet(r, "/follow/", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "bob writes things")
}

func TestUnfollowWithoutFollowIsNotFound(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")
	createUser(t, db, "carol")

	w := doGet(r, "/profile/carol/unfollow/", authCookie(t, alice))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFollowFeedScopedToFollowedAuthors(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")
	createPost(t, db, bob, "followed author post", time.Now())
	createPost(t, db, carol, "stranger post", time.Now())
	cookie := authCookie(t, alice)

	doGet(r, "/profile/bob/follow/", cookie)

	w := doGet(r, "/follow/", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "followed author post")
	assert.NotContains(t, w.Body.String(), "stranger post")
}

func TestFollowFeedRequiresLogin(t *testing.T) {
	r, _, _ := setupRouter(t)
	w := doGet(r, "/follow/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next=%2Ffollow%2F", w.Header().Get("Location"))
}

func TestProfileShowsFollowState(t *testing.T) {
	r, db, _ := setupRouter(t)
	alice := createUser(t, db, "alice")
	createUser(t, db, "bob")
	cookie := authCookie(t, alice)

	w := doGet(r, "/profile/bob/", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/profile/bob/follow/")

	doGet(r, "/profile/bob/follow/", cookie)

	w = doGet(r, "/profile/bob/", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/profile/bob/unfollow/")
}

func TestHomePageCacheServesStaleUntilExpiry(t *testing.T) {
	r, db, clock := setupRouter(t)
	bob := createUser(t, db, "bob")
	createPost(t, db, bob, "before the cache fill", time.Now())

	first := doGet(r, "/", nil)
	require.Equal(t, http.StatusOK, first.Code)
	require.Contains(t, first.Body.String(), "before the cache fill")

	createPost(t, db, bob, "written into a warm cache", time.Now())

	second := doGet(r, "/", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.NotContains(t, second.Body.String(), "written into a warm cache")

	clock.Advance(21 * time.Second)

	third := doGet(r, "/", nil)
	require.Equal(t, http.StatusOK, third.Code)
	assert.Contains(t, third.Body.String(), "written into a warm cache")
}

func TestSignupCreatesUserAndLogsIn(t *testing.T) {
	r, db, _ := setupRouter(t)

	w := doPostForm(r, "/auth/signup/", nil, url.Values{
		"username": {"newcomer"},
		"password": {"password123"},
		"confirm":  {"password123"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	var user models.User
	require.NoError(t, db.Where("username = ?", "newcomer").First(&user).Error)
	assert.NotEmpty(t, user.PasswordHash)

	cookies := w.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == utils.AuthCookieName && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found, "session cookie should be set")
}

func TestSignupRejectsMismatchedPasswords(t *testing.T) {
	r, db, _ := setupRouter(t)

	w := doPostForm(r, "/auth/signup/", nil, url.Values{
		"username": {"newcomer"},
		"password": {"password123"},
		"confirm":  {"different"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Passwords do not match")

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestLoginHonorsNextTarget(t *testing.T) {
	r, db, _ := setupRouter(t)
	createUser(t, db, "alice")

	w := doPostForm(r, "/auth/login/", nil, url.Values{
		"username": {"alice"},
		"password": {"password123"},
		"next":     {"/create/"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/create/", w.Header().Get("Location"))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r, db, _ := setupRouter(t)
	createUser(t, db, "alice")

	w := doPostForm(r, "/auth/login/", nil, url.Values{
		"username": {"alice"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password")
}

func TestLoginRefusesExternalNextTarget(t *testing.T) {
	r, db, _ := setupRouter(t)
	createUser(t, db, "alice")

	w := doPostForm(r, "/auth/login/", nil, url.Values{
		"username": {"alice"},
		"password": {"password123"},
		"next":     {"https://evil.example/"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestPostDetailShowsComments(t *testing.T) {
	r, db, _ := setupRouter(t)
	bob := createUser(t, db, "bob")
	post := createPost(t, db, bob, "discussed post", time.Now())
	comment := models.Comment{PostID: post.ID, AuthorID: bob.ID, Text: "self reply"}
	require.NoError(t, db.Create(&comment).Error)

	w := doGet(r, fmt.Sprintf("/posts/%d/", post.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "discussed post")
	assert.Contains(t, w.Body.String(), "self reply")

	w = doGet(r, "/posts/31337/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
