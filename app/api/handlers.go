package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/pressroom/app/database"
	"github.com/lysyi3m/pressroom/app/feed"
	"github.com/lysyi3m/pressroom/app/media"
	"github.com/lysyi3m/pressroom/app/publish"
	"github.com/lysyi3m/pressroom/app/tasks"
)

const (
	feedItemLimit    = 50
	defaultListLimit = 50
	maxListLimit     = 200

	maxMultipartMemory = 8 << 20
	formOverheadBytes  = 1 << 20
	maxRequestBytes    = publish.MaxImages*media.MaxImageBytes + media.MaxVideoBytes + formOverheadBytes
)

func NewHandler(articleRepo database.ArticleRepository, userRepo database.UserRepository,
	seeds SeedCounter, publisher tasks.Publisher, tracker *publish.Tracker,
	scheduler tasks.TaskSchedulerInterface, results *tasks.Results) *Handler {
	return &Handler{
		articleRepo: articleRepo,
		userRepo:    userRepo,
		seeds:       seeds,
		generator:   feed.NewGenerator(),
		publisher:   publisher,
		tracker:     tracker,
		scheduler:   scheduler,
		results:     results,
		limits: uploadLimits{
			request: maxRequestBytes,
			image:   media.MaxImageBytes,
			video:   media.MaxVideoBytes,
			pixels:  media.CheckImage,
		},
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	section := publish.NormalizeSection(c.Param("section"))
	if section == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	articles, err := h.articleRepo.ListArticles(c.Request.Context(), database.ArticleFilter{
		Section: section,
		Limit:   feedItemLimit,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "section", section, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(section, articles)
	if err != nil {
		slog.Error("RSS generation error", "section", section, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(articles)))
	c.Header("X-Feed-Section", section)

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if articleCount, err := h.articleRepo.GetArticleCount(ctx); err == nil {
		health["articles"] = articleCount
	}

	if userCount, err := h.userRepo.GetUserCount(ctx); err == nil {
		health["users"] = userCount
	}

	if h.seeds != nil {
		health["loaded_accounts"] = h.seeds.GetSeedCount()
	}

	health["upload"] = h.tracker.Snapshot()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APICreateArticle(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.request)
	if err := parseUploadForm(c.Request); err != nil {
		c.JSON(uploadErrorStatus(err), gin.H{"error": "Invalid upload", "details": err.Error()})
		return
	}

	authorID := strings.TrimSpace(c.PostForm("author_id"))
	if authorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "author_id is required"})
		return
	}

	user, err := h.userRepo.GetUser(c.Request.Context(), authorID)
	if err != nil {
		slog.Error("Database error", "operation", "get_user", "user", authorID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Author not found"})
		return
	}

	input, err := h.readMedia(c)
	if err != nil {
		c.JSON(uploadErrorStatus(err), gin.H{"error": "Invalid media", "details": err.Error()})
		return
	}

	payload := publish.UploadPayload{
		Title:   c.PostForm("title"),
		Content: c.PostForm("content"),
		Section: c.PostForm("section"),
		Tags:    splitTags(c.PostForm("tags")),
		Media:   input,
		Author: publish.AuthorInfo{
			ID:          user.ID,
			Name:        user.Name,
			Email:       user.Email,
			Nationality: user.Nationality,
			Verified:    user.Verified,
		},
	}

	if err := payload.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid article", "details": err.Error()})
		return
	}

	if c.Query("async") == "true" {
		h.enqueuePublish(c, payload)
		return
	}

	// A client disconnect must not abort the transaction half way
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := h.publisher.StartUpload(ctx, payload)
	if err != nil {
		stage, _ := publish.StageOf(err)
		c.JSON(statusFor(err), gin.H{
			"error":   publish.NoticeFor(err).Message,
			"stage":   stage,
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         result.ArticleID,
		"media_urls": result.MediaURLs,
		"message":    publish.NoticeFor(nil).Message,
	})
}

func (h *Handler) enqueuePublish(c *gin.Context, payload publish.UploadPayload) {
	task := tasks.NewPublishArticleTask(payload, h.publisher, h.results)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		task.Abandon(err)
		slog.Error("Error enqueueing publish task", "author", payload.Author.ID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue publish task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": task.ID,
		"type":    task.Type,
		"status":  tasks.TaskStatusQueued,
	})
}

func (h *Handler) APIListArticles(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxListLimit)
	}

	filter := database.ArticleFilter{
		AuthorID: c.Query("author_id"),
		Limit:    limit,
	}
	if section := c.Query("section"); section != "" {
		filter.Section = publish.NormalizeSection(section)
	}

	articles, err := h.articleRepo.ListArticles(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]ArticleResponse, 0, len(articles))
	for _, article := range articles {
		response = append(response, newArticleResponse(article))
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": response,
		"total":    len(response),
	})
}

func (h *Handler) APIGetArticle(c *gin.Context) {
	id := c.Param("id")

	article, err := h.articleRepo.GetArticle(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "article", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, newArticleResponse(*article))
}

func (h *Handler) APIGetUser(c *gin.Context) {
	id := c.Param("id")

	user, err := h.userRepo.GetUser(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_user", "user", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, newUserResponse(*user))
}

func (h *Handler) APIGetUploadProgress(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Snapshot())
}

// APIStreamUploadProgress sends one "progress" event per tracker change
// until the client goes away.
func (h *Handler) APIStreamUploadProgress(c *gin.Context) {
	updates, cancel := h.tracker.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case state, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("progress", state)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *Handler) APIGetTask(c *gin.Context) {
	id := c.Param("id")

	result, ok := h.results.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, publish.ErrUploadInProgress):
		return http.StatusConflict
	case errors.Is(err, publish.ErrUnknownAuthor):
		return http.StatusNotFound
	case errors.Is(err, publish.ErrInsufficientPoints):
		return http.StatusPaymentRequired
	}

	if stage, _ := publish.StageOf(err); stage == publish.StageStaging {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func parseUploadForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxMultipartMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	return fmt.Errorf("failed to parse form: %w", err)
}

func uploadErrorStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) ||
		errors.Is(err, media.ErrFileTooLarge) ||
		errors.Is(err, media.ErrImageTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (h *Handler) readMedia(c *gin.Context) (media.Input, error) {
	form := c.Request.MultipartForm
	if form == nil {
		return media.NoMedia{}, nil
	}

	images := make([]media.Blob, 0, len(form.File["images"]))
	for _, header := range form.File["images"] {
		blob, err := readBlob(header, media.ResourceImage, h.limits.image)
		if err != nil {
			return nil, err
		}
		if err := h.limits.pixels(blob); err != nil {
			return nil, err
		}
		images = append(images, blob)
	}

	var video *media.Blob
	if headers := form.File["video"]; len(headers) > 0 {
		blob, err := readBlob(headers[0], media.ResourceVideo, h.limits.video)
		if err != nil {
			return nil, err
		}
		video = &blob
	}

	return media.InputFrom(images, video), nil
}

func readBlob(header *multipart.FileHeader, kind media.ResourceType, limit int64) (media.Blob, error) {
	if header.Size > limit {
		return media.Blob{}, fmt.Errorf("%s is %d bytes, limit %d: %w", header.Filename, header.Size, limit, media.ErrFileTooLarge)
	}

	file, err := header.Open()
	if err != nil {
		return media.Blob{}, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return media.Blob{}, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}
	if int64(len(data)) > limit {
		return media.Blob{}, fmt.Errorf("%s %s exceeds %d bytes: %w", kind, header.Filename, limit, media.ErrFileTooLarge)
	}

	return media.Blob{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
