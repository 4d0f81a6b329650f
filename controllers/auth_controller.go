package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/yatube-project/yatube/config"
	"github.com/yatube-project/yatube/models"
	"github.com/yatube-project/yatube/utils"
)

// AuthController handles the user directory: local signup/login plus
// third-party OAuth providers. Sessions are JWT cookies.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	passwordRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// SignupPage renders the registration form.
func (a *AuthController) SignupPage(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "signup.html", pageData(ctx, gin.H{"Title": "Sign up"}))
}

// Signup registers a local account with a bcrypt password hash and logs the
// new user in.
func (a *AuthController) Signup(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.PostForm("username"))
	password := ctx.PostForm("password")
	confirm := ctx.PostForm("confirm")

	fail := func(msg string) {
		ctx.HTML(http.StatusOK, "signup.html", pageData(ctx, gin.H{
			"Title":    "Sign up",
			"Error":    msg,
			"Username": username,
		}))
	}

	if l := len([]rune(username)); l < 2 || l > 30 || !usernameRe.MatchString(username) {
		fail("Username must be 2-30 characters: letters, digits, '-', '_' or '.'")
		return
	}
	if password != confirm {
		fail("Passwords do not match")
		return
	}
	if len(password) < 6 || len(password) > 30 || !passwordRe.MatchString(password) {
		fail("Password must be 6-30 characters: letters, digits, '-', '_' or '.'")
		return
	}

	var existing models.User
	if err := a.db.Where("username = ?", username).First(&existing).Error; err == nil {
		fail("Username already taken")
		return
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		renderServerError(ctx)
		return
	}

	user := models.User{Username: username, PasswordHash: hash}
	if err := a.db.Create(&user).Error; err != nil {
		renderServerError(ctx)
		return
	}

	a.startSession(ctx, user, "/")
}

// LoginPage renders the login form, keeping the next return target.
func (a *AuthController) LoginPage(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "login.html", pageData(ctx, gin.H{
		"Title": "Log in",
		"Next":  ctx.Query("next"),
	}))
}

// Login checks credentials and starts a session, returning the user to the
// page that sent them here when a next target is present.
func (a *AuthController) Login(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.PostForm("username"))
	password := ctx.PostForm("password")
	next := ctx.PostForm("next")

	fail := func() {
		ctx.HTML(http.StatusOK, "login.html", pageData(ctx, gin.H{
			"Title":    "Log in",
			"Error":    "Invalid username or password",
			"Username": username,
			"Next":     next,
		}))
	}

	var user models.User
	if err := a.db.Where("username = ?", username).First(&user).Error; err != nil {
		fail()
		return
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		fail()
		return
	}

	a.startSession(ctx, user, next)
}

// Logout blacklists the session token until its natural expiry, clears the
// cookie and sends the user home.
func (a *AuthController) Logout(ctx *gin.Context) {
	if token, err := ctx.Cookie(utils.AuthCookieName); err == nil && token != "" {
		if claims, err := utils.ParseToken(token); err == nil {
			expiresAt := time.Now().Add(utils.SessionDuration)
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Time
			}
			utils.BlacklistToken(token, expiresAt)
		}
	}
	ctx.SetCookie(utils.AuthCookieName, "", -1, "/", "", false, true)
	ctx.Redirect(http.StatusFound, "/")
}

// OAuthRedirect sends the browser to the provider's authorization page.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	provider := ctx.Param("provider")
	cfg, err := a.oauthConfig(provider)
	if err != nil {
		renderNotFound(ctx)
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	ctx.Redirect(http.StatusFound, cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

// OAuthCallback exchanges the provider code, resolves or creates the local
// account, and starts a session.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := ctx.Param("provider")
	code := ctx.Query("code")
	state := ctx.Query("state")

	if code == "" || state == "" || !utils.ConsumeState(state) {
		ctx.Redirect(http.StatusFound, "/auth/login/")
		return
	}

	cfg, err := a.oauthConfig(provider)
	if err != nil {
		renderNotFound(ctx)
		return
	}

	token, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		ctx.Redirect(http.StatusFound, "/auth/login/")
		return
	}

	userInfo, err := a.fetchOAuthUser(provider, token)
	if err != nil {
		renderServerError(ctx)
		return
	}

	user, err := a.findOrCreateOAuthUser(provider, userInfo)
	if err != nil {
		renderServerError(ctx)
		return
	}

	a.startSession(ctx, *user, "/")
}

// startSession issues the session token, sets the cookie and redirects to
// next when it is a local path.
func (a *AuthController) startSession(ctx *gin.Context, user models.User, next string) {
	token, err := utils.GenerateToken(user.ID, user.Username, utils.SessionDuration)
	if err != nil {
		renderServerError(ctx)
		return
	}
	ctx.SetCookie(utils.AuthCookieName, token, int(utils.SessionDuration.Seconds()), "/", "", false, true)

	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	ctx.Redirect(http.StatusFound, next)
}

func (a *AuthController) oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	switch strings.ToLower(provider) {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  fmt.Sprintf("%s/auth/oauth/github/callback/", cfg.OAuthRedirectBase),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/auth/oauth/google/callback/", cfg.OAuthRedirectBase),
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type oauthUser struct {
	ID        string
	Username  string
	Email     string
	AvatarURL string
}

func (a *AuthController) fetchOAuthUser(provider string, token *oauth2.Token) (*oauthUser, error) {
	switch strings.ToLower(provider) {
	case "github":
		return fetchGitHubUser(token)
	case "google":
		return fetchGoogleUser(token)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func (a *AuthController) findOrCreateOAuthUser(provider string, data *oauthUser) (*models.User, error) {
	var user models.User
	err := a.db.Where("provider = ? AND provider_id = ?", provider, data.ID).First(&user).Error
	if err == nil {
		_ = a.db.Model(&user).Updates(map[string]interface{}{
			"email":      strings.TrimSpace(data.Email),
			"avatar_url": data.AvatarURL,
		})
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		Username:   a.ensureUniqueUsername(data.Username, provider, data.ID),
		Email:      strings.TrimSpace(data.Email),
		Provider:   provider,
		ProviderID: data.ID,
		AvatarURL:  data.AvatarURL,
	}
	if err := a.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ensureUniqueUsername derives a free username from the provider handle.
func (a *AuthController) ensureUniqueUsername(base, provider, id string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = provider + "-" + id
	}
	candidate := base
	for i := 0; i < 10; i++ {
		var existing models.User
		if err := a.db.Where("username = ?", candidate).First(&existing).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, i+2)
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

func fetchGitHubUser(token *oauth2.Token) (*oauthUser, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := fetchJSON("https://api.github.com/user", token.AccessToken, &payload); err != nil {
		return nil, err
	}
	return &oauthUser{
		ID:        fmt.Sprintf("%d", payload.ID),
		Username:  payload.Login,
		Email:     payload.Email,
		AvatarURL: payload.AvatarURL,
	}, nil
}

func fetchGoogleUser(token *oauth2.Token) (*oauthUser, error) {
	var payload struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := fetchJSON("https://www.googleapis.com/oauth2/v3/userinfo", token.AccessToken, &payload); err != nil {
		return nil, err
	}
	return &oauthUser{
		ID:        payload.Sub,
		Username:  payload.Name,
		Email:     payload.Email,
		AvatarURL: payload.Picture,
	}, nil
}

func fetchJSON(url, accessToken string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	client := http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("user info request failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
