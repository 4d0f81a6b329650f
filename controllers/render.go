package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yatube-project/yatube/middleware"
	"github.com/yatube-project/yatube/models"
	"github.com/yatube-project/yatube/utils"
)

// feedPage is one paginated window of a post listing.
type feedPage struct {
	Posts []models.Post
	Page  utils.Page
}

// paginateFeed counts the scoped query, clamps the requested page number and
// loads one page of posts ordered newest first.
func paginateFeed(q *gorm.DB, pageStr string) (feedPage, error) {
	var total int64
	if err := q.Model(&models.Post{}).Count(&total).Error; err != nil {
		return feedPage{}, err
	}
	page := utils.Paginate(pageStr, total, utils.PostsPerPage)

	var posts []models.Post
	if err := q.Preload("Author").Preload("Group").
		Order("pub_date DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&posts).Error; err != nil {
		return feedPage{}, err
	}
	return feedPage{Posts: posts, Page: page}, nil
}

// pageData merges the current-user identity into template context.
func pageData(ctx *gin.Context, h gin.H) gin.H {
	if h == nil {
		h = gin.H{}
	}
	if uid, ok := getUserID(ctx); ok {
		h["UserID"] = uid
		h["Username"] = currentUsername(ctx)
	}
	return h
}

func renderNotFound(ctx *gin.Context) {
	ctx.HTML(http.StatusNotFound, "404.html", pageData(ctx, gin.H{"Title": "Page not found"}))
	ctx.Abort()
}

func renderServerError(ctx *gin.Context) {
	ctx.HTML(http.StatusInternalServerError, "500.html", pageData(ctx, gin.H{"Title": "Server error"}))
	ctx.Abort()
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func currentUsername(ctx *gin.Context) string {
	value, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return ""
	}
	username, _ := value.(string)
	return username
}
