package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yatube-project/yatube/models"
)

// FollowController manages the follow relationship and the follow-based feed.
type FollowController struct {
	db *gorm.DB
}

// NewFollowController creates a new FollowController instance.
func NewFollowController(db *gorm.DB) *FollowController {
	return &FollowController{db: db}
}

// FollowIndex renders the feed of posts by authors the requester follows.
func (f *FollowController) FollowIndex(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		ctx.Redirect(http.StatusFound, "/auth/login/")
		return
	}

	followed := f.db.Model(&models.Follow{}).Select("author_id").Where("user_id = ?", uid)
	feed, err := paginateFeed(f.db.Model(&models.Post{}).Where("author_id IN (?)", followed), ctx.Query("page"))
	if err != nil {
		renderServerError(ctx)
		return
	}

	ctx.HTML(http.StatusOK, "follow.html", pageData(ctx, gin.H{
		"Title": "Followed authors",
		"Posts": feed.Posts,
		"Page":  feed.Page,
	}))
}

// ProfileFollow ensures a follow edge from the requester to the target
// author. Self-follow attempts redirect back to the requester's own profile
// without creating a row; repeated follows are a no-op.
func (f *FollowController) ProfileFollow(ctx *gin.Context) {
	author, uid, ok := f.loadTarget(ctx)
	if !ok {
		return
	}
	if author.ID == uid {
		ctx.Redirect(http.StatusFound, "/profile/"+author.Username+"/")
		return
	}

	var follow models.Follow
	if err := f.db.Where(models.Follow{UserID: uid, AuthorID: author.ID}).
		FirstOrCreate(&follow).Error; err != nil {
		renderServerError(ctx)
		return
	}

	ctx.Redirect(http.StatusFound, "/follow/")
}

// ProfileUnfollow removes the follow edge. Unfollowing an author the
// requester does not follow is a not-found outcome, matching the follow
// row lookup semantics.
func (f *FollowController) ProfileUnfollow(ctx *gin.Context) {
	author, uid, ok := f.loadTarget(ctx)
	if !ok {
		return
	}
	if author.ID == uid {
		ctx.Redirect(http.StatusFound, "/profile/"+author.Username+"/")
		return
	}

	var follow models.Follow
	if err := f.db.Where("user_id = ? AND author_id = ?", uid, author.ID).
		First(&follow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			renderNotFound(ctx)
			return
		}
		renderServerError(ctx)
		return
	}
	if err := f.db.Delete(&follow).Error; err != nil {
		renderServerError(ctx)
		return
	}

	ctx.Redirect(http.StatusFound, "/follow/")
}

func (f *FollowController) loadTarget(ctx *gin.Context) (*models.User, uint, bool) {
	uid, ok := getUserID(ctx)
	if !ok {
		ctx.Redirect(http.StatusFound, "/auth/login/")
		return nil, 0, false
	}

	var author models.User
	if err := f.db.Where("username = ?", ctx.Param("username")).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			renderNotFound(ctx)
			return nil, 0, false
		}
		renderServerError(ctx)
		return nil, 0, false
	}
	return &author, uid, true
}
