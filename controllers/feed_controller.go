package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yatube-project/yatube/models"
)

// FeedController renders the read-only post listings: home feed, group feed,
// author profile and post detail.
type FeedController struct {
	db *gorm.DB
}

// NewFeedController creates a new FeedController instance.
func NewFeedController(db *gorm.DB) *FeedController {
	return &FeedController{db: db}
}

// Index renders the home feed over all posts. The route is wrapped by the
// page cache middleware, so the body may be up to the cache TTL stale.
func (f *FeedController) Index(ctx *gin.Context) {
	feed, err := paginateFeed(f.db.Model(&models.Post{}), ctx.Query("page"))
	if err != nil {
		renderServerError(ctx)
		return
	}
	ctx.HTML(http.StatusOK, "index.html", pageData(ctx, gin.H{
		"Title": "Latest updates",
		"Posts": feed.Posts,
		"Page":  feed.Page,
	}))
}

// GroupPosts renders the feed of a single group resolved by slug.
func (f *FeedController) GroupPosts(ctx *gin.Context) {
	slug := ctx.Param("slug")
	var group models.Group
	if err := f.db.Where("slug = ?", slug).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			renderNotFound(ctx)
			return
		}
		renderServerError(ctx)
		return
	}

	feed, err := paginateFeed(f.db.Model(&models.Post{}).Where("group_id = ?", group.ID), ctx.Query("page"))
	if err != nil {
		renderServerError(ctx)
		return
	}
	ctx.HTML(http.StatusOK, "group_list.html", pageData(ctx, gin.H{
		"Title": group.Title,
		"Group": group,
		"Posts": feed.Posts,
		"Page":  feed.Page,
	}))
}

// Profile renders an author's posts plus whether the requester follows them.
func (f *FeedController) Profile(ctx *gin.Context) {
	username := ctx.Param("username")
	var author models.User
	if err := f.db.Where("username = ?", username).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			renderNotFound(ctx)
			return
		}
		renderServerError(ctx)
		return
	}

	feed, err := paginateFeed(f.db.Model(&models.Post{}).Where("author_id = ?", author.ID), ctx.Query("page"))
	if err != nil {
		renderServerError(ctx)
		return
	}

	following := false
	if uid, ok := getUserID(ctx); ok {
		var cnt int64
		if err := f.db.Model(&models.Follow{}).
			Where("user_id = ? AND author_id = ?", uid, author.ID).
			Count(&cnt).Error; err == nil {
			following = cnt > 0
		}
	}

	ctx.HTML(http.StatusOK, "profile.html", pageData(ctx, gin.H{
		"Title":      "Posts by " + author.Username,
		"Author":     author,
		"Posts":      feed.Posts,
		"Page":       feed.Page,
		"PostsCount": feed.Page.Total,
		"Following":  following,
	}))
}

// PostDetail renders a single post with its comments and the comment form.
func (f *FeedController) PostDetail(ctx *gin.Context) {
	var post models.Post
	if err := f.db.Preload("Author").Preload("Group").First(&post, "id = ?", ctx.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			renderNotFound(ctx)
			return
		}
		renderServerError(ctx)
		return
	}

	var comments []models.Comment
	if err := f.db.Preload("Author").
		Where("post_id = ?", post.ID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		renderServerError(ctx)
		return
	}

	var postsCount int64
	_ = f.db.Model(&models.Post{}).Where("author_id = ?", post.AuthorID).Count(&postsCount).Error

	ctx.HTML(http.StatusOK, "post_detail.html", pageData(ctx, gin.H{
		"Title":      "Post by " + post.Author.Username,
		"Post":       post,
		"Comments":   comments,
		"PostsCount": postsCount,
	}))
}
