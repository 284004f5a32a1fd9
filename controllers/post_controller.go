package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/transform"
	"github.com/cppla/photoshare/utils"
)

// PostController manages posts, their transformations and QR codes.
type PostController struct {
	posts       *services.PostService
	comments    *services.CommentService
	maxUploadMB int
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *services.PostService, comments *services.CommentService, maxUploadMB int) *PostController {
	return &PostController{posts: posts, comments: comments, maxUploadMB: maxUploadMB}
}

// CreatePost accepts a multipart form with image, title, description and tags.
// Tags may be repeated form values or a single comma separated value.
func (p *PostController) CreatePost(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	fh, err := ctx.FormFile("image")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "image is required")
		return
	}
	if fh.Size > int64(p.maxUploadMB)<<20 {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "cannot read image")
		return
	}
	defer f.Close()

	var tags []string
	for _, v := range ctx.PostFormArray("tags") {
		tags = append(tags, strings.Split(v, ",")...)
	}

	post, err := p.posts.Create(ctx.Request.Context(), actor, services.CreatePostInput{
		Title:       ctx.PostForm("title"),
		Description: ctx.PostForm("description"),
		Tags:        tags,
		FileName:    fh.Filename,
		File:        f,
		Size:        fh.Size,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"post": post})
}

// ListPosts searches posts by keyword and tag, paginated.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	keyword := strings.TrimSpace(ctx.Query("keyword"))
	tag := strings.ToLower(strings.TrimSpace(ctx.Query("tag")))
	sort := ctx.DefaultQuery("sort", "date")

	// Cache plain listings only, keyword searches would explode the key space
	cacheKey := ""
	if keyword == "" {
		cacheKey = fmt.Sprintf("%stag=%s:sort=%s:page=%d:size=%d", utils.PostListKeyPrefix, tag, sort, page, pageSize)
		if serveCached(ctx, cacheKey) {
			return
		}
	}

	result, err := p.posts.Search(ctx.Request.Context(), services.SearchQuery{
		Keyword:  keyword,
		Tag:      tag,
		Sort:     sort,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	payload := paginated(result)
	if cacheKey != "" {
		successCached(ctx, cacheKey, payload)
		return
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with its tags.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	cacheKey := utils.PostDetailKey(id)
	if serveCached(ctx, cacheKey) {
		return
	}
	post, err := p.posts.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	successCached(ctx, cacheKey, gin.H{"post": post})
}

// UpdatePost changes the description of a post.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Description string `json:"description" binding:"max=255"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx)
		return
	}
	post, err := p.posts.UpdateDescription(ctx.Request.Context(), actor, id, req.Description)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes a post and its assets.
func (p *PostController) DeletePost(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := p.posts.Delete(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// Transform applies an image transformation to the post's original image.
func (p *PostController) Transform(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var params transform.Params
	if err := ctx.ShouldBindJSON(&params); err != nil {
		badRequest(ctx)
		return
	}
	post, err := p.posts.Transform(ctx.Request.Context(), actor, id, params)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// GenerateQR renders a QR code pointing at the transformed image.
func (p *PostController) GenerateQR(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	post, err := p.posts.GenerateQR(ctx.Request.Context(), actor, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"transformed_image":    post.TransformedImage,
		"transformed_image_qr": post.TransformedImageQR,
	})
}

// TransformedLinks returns the transformed image and QR URLs.
func (p *PostController) TransformedLinks(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	links, err := p.posts.TransformedLinks(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, links)
}

// ListComments returns the comments of a post.
func (p *PostController) ListComments(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	comments, err := p.comments.ListByPost(ctx.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": comments})
}

// ListUserPosts returns posts created by a specific user (public)
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	result, err := p.posts.ListByUser(ctx.Request.Context(), id, page, pageSize)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, paginated(result))
}

func paginated(result *services.PostPage) gin.H {
	return gin.H{
		"items": result.Items,
		"pagination": gin.H{
			"page":        result.Page,
			"page_size":   result.PageSize,
			"total":       result.Total,
			"total_pages": int((result.Total + int64(result.PageSize) - 1) / int64(result.PageSize)),
		},
	}
}
