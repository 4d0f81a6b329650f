package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yatube-project/yatube/config"
	"github.com/yatube-project/yatube/models"
	"github.com/yatube-project/yatube/utils"
)

// maxImageSize bounds uploaded post images.
const maxImageSize = 10 * 1024 * 1024

// PostController manages the post and comment mutation handlers.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// postForm carries the submitted create/edit fields back into the template
// when validation fails.
type postForm struct {
	Text    string
	GroupID string
	Error   string
}

// CreatePostPage renders the empty post form.
func (p *PostController) CreatePostPage(ctx *gin.Context) {
	p.renderPostForm(ctx, http.StatusOK, postForm{}, nil)
}

// CreatePost stores a new post authored by the requester and redirects to
// their profile. Validation failures re-render the form without persisting.
func (p *PostController) CreatePost(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		ctx.Redirect(http.StatusFound, "/auth/login/")
		return
	}

	form := postForm{
		Text:    strings.TrimSpace(ctx.PostForm("text")),
		GroupID: strings.TrimSpace(ctx.PostForm("group")),
	}
	if form.Text == "" {
		form.Error = "Text is required"
		p.renderPostForm(ctx, http.StatusOK, form, nil)
		return
	}

	groupID, err := p.resolveGroup(form.GroupID)
	if err != nil {
		form.Error = "Unknown group"
		p.renderPostForm(ctx, http.StatusOK, form, nil)
		return
	}

	image, err := p.saveImage(ctx)
	if err != nil {
		form.Error = err.Error()
		p.renderPostForm(ctx, http.StatusOK, form, nil)
		return
	}

	post := models.Post{
		Text:     utils.Sanitize(form.Text),
		AuthorID: uid,
		GroupID:  groupID,
		Image:    image,
	}
	if err := p.db.Create(&post).Error; err != nil {
		renderServerError(ctx)
		return
	}

	ctx.Redirect(http.StatusFound, "/profile/"+currentUsername(ctx)+"/")
}

// EditPostPage renders the edit form prefilled with the post's fields.
// Non-authors are redirected to the post detail view without an error.
func (p *PostController) EditPostPage(ctx *gin.Context) {
	post, ok := p.loadOwnPost(ctx)
	if !ok {
		return
	}
	form := postForm{Text: post.Text}
	if post.GroupID != nil {
		form.GroupID = strconv.FormatUint(uint64(*post.GroupID), 10)
	}
	p.renderPostForm(ctx, http.StatusOK, form, post)
}

// EditPost updates the submitted fields of the requester's own post. The
// author never changes on edit.
func (p *PostController) EditPost(ctx *gin.Context) {
	post, ok := p.loadOwnPost(ctx)
	if !ok {
		return
	}

	form := postForm{
		Text:    strings.TrimSpace(ctx.PostForm("text")),
		GroupID: strings.TrimSpace(ctx.PostForm("group")),
	}
	if form.Text == "" {
		form.Error = "Text is required"
		p.renderPostForm(ctx, http.StatusOK, form, post)
		return
	}

	groupID, err := p.resolveGroup(form.GroupID)
	if err != nil {
		form.Error = "Unknown group"
		p.renderPostForm(ctx, http.StatusOK, form, post)
		return
	}

	image, err := p.saveImage(ctx)
	if err != nil {
		form.Error = err.Error()
		p.renderPostForm(ctx, http.StatusOK, form, post)
		return
	}

	post.Text = utils.Sanitize(form.Text)
	post.GroupID = groupID
	if image != "" {
		post.Image = image
	}
	if err := p.db.Save(post).Error; err != nil {
		renderServerError(ctx)
		return
	}

	ctx.Redirect(http.StatusFound, postDetailPath(post.ID))
}

// AddComment attaches a comment to the target post. Invalid submissions are
// dropped silently; the handler always redirects to the post detail view.
func (p *PostController) AddComment(ctx *gin.Context) {
	var post models.Post
	if err := p.db.First(&post, "id = ?", ctx.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			renderNotFound(ctx)
			return
		}
		renderServerError(ctx)
		return
	}

	uid, ok := getUserID(ctx)
	if !ok {
		ctx.Redirect(http.StatusFound, "/auth/login/")
		return
	}

	if text := utils.Sanitize(strings.TrimSpace(ctx.PostForm("text"))); text != "" {
		comment := models.Comment{PostID: post.ID, AuthorID: uid, Text: text}
		if err := p.db.Create(&comment).Error; err != nil {
			renderServerError(ctx)
			return
		}
	}

	ctx.Redirect(http.StatusFound, postDetailPath(post.ID))
}

// loadOwnPost fetches the target post and enforces the authorship rule:
// a non-author is silently redirected to the detail view.
func (p *PostController) loadOwnPost(ctx *gin.Context) (*models.Post, bool) {
	var post models.Post
	if err := p.db.First(&post, "id = ?", ctx.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			renderNotFound(ctx)
			return nil, false
		}
		renderServerError(ctx)
		return nil, false
	}

	uid, ok := getUserID(ctx)
	if !ok || post.AuthorID != uid {
		ctx.Redirect(http.StatusFound, postDetailPath(post.ID))
		return nil, false
	}
	return &post, true
}

func (p *PostController) renderPostForm(ctx *gin.Context, status int, form postForm, editing *models.Post) {
	var groups []models.Group
	_ = p.db.Order("title ASC").Find(&groups).Error

	data := gin.H{
		"Title":  "New post",
		"Form":   form,
		"Groups": groups,
	}
	if editing != nil {
		data["Title"] = "Edit post"
		data["IsEdit"] = true
		data["PostID"] = editing.ID
	}
	ctx.HTML(status, "create_post.html", pageData(ctx, data))
}

// resolveGroup maps the submitted group field to a group id; empty means no
// group, anything else must reference an existing group.
func (p *PostController) resolveGroup(raw string) (*uint, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, errors.New("invalid group")
	}
	var group models.Group
	if err := p.db.First(&group, uint(id)).Error; err != nil {
		return nil, errors.New("unknown group")
	}
	gid := uint(id)
	return &gid, nil
}

// saveImage stores an optional uploaded image under the uploads directory
// and returns its public URL path. Returns "" when no file was submitted.
func (p *PostController) saveImage(ctx *gin.Context) (string, error) {
	file, err := ctx.FormFile("image")
	if err != nil {
		return "", nil
	}
	if file.Size > maxImageSize {
		return "", errors.New("image exceeds 10MB")
	}

	now := time.Now()
	subDir := filepath.Join(now.Format("2006"), now.Format("01"), now.Format("02"))
	baseDir := filepath.Join(config.Get().UploadsDir, subDir)
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", errors.New("failed to store image")
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	if err := ctx.SaveUploadedFile(file, filepath.Join(baseDir, name)); err != nil {
		return "", errors.New("failed to store image")
	}
	return "/" + filepath.ToSlash(filepath.Join(config.Get().UploadsDir, subDir, name)), nil
}

func postDetailPath(id uint) string {
	return fmt.Sprintf("/posts/%d/", id)
}
