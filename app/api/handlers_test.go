package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/pressroom/app/account"
	"github.com/lysyi3m/pressroom/app/cfg"
	"github.com/lysyi3m/pressroom/app/database"
	"github.com/lysyi3m/pressroom/app/media"
	"github.com/lysyi3m/pressroom/app/publish"
	"github.com/lysyi3m/pressroom/app/tasks"
)

const testAPIKey = "secret"

type testApp struct {
	router   *gin.Engine
	handler  *Handler
	tracker  *publish.Tracker
	mediaDir string
}

func setupTestConfig(t *testing.T) {
	t.Helper()

	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	_, err := cfg.Load()
	require.NoError(t, err)
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	setupTestConfig(t)

	dir := t.TempDir()
	db, err := database.NewConnection(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	userRepo := database.NewUserRepository(db)
	articleRepo := database.NewArticleRepository(db)

	ctx := context.Background()
	_, err = userRepo.UpsertUser(ctx, database.UserSeed{
		ID: "alice", Name: "Alice", Email: "alice@example.com", Nationality: "FI", Verified: true, InitialPoints: 100,
	})
	require.NoError(t, err)
	_, err = userRepo.UpsertUser(ctx, database.UserSeed{
		ID: "bob", Name: "Bob", Email: "bob@example.com", Nationality: "SE", InitialPoints: 10,
	})
	require.NoError(t, err)

	mediaDir := filepath.Join(dir, "media")
	stager := media.NewStager(media.NewLocalStore(mediaDir, "http://localhost:8080"), nil, "posts")

	tracker := publish.NewTracker()
	rules := publish.DefaultRules()
	rules.ResetDelay = 0
	coordinator := publish.NewCoordinator(stager, userRepo, database.NewTxStore(db), tracker, nil, rules)

	seeds := account.NewSeedCache(filepath.Join(dir, "accounts"))
	scheduler := tasks.NewScheduler(seeds, userRepo, 0, 1)
	scheduler.Start()
	t.Cleanup(scheduler.Stop)

	handler := NewHandler(articleRepo, userRepo, seeds, coordinator, tracker, scheduler, tasks.NewResults(0))

	return &testApp{
		router:   NewServer(handler, testAPIKey, mediaDir),
		handler:  handler,
		tracker:  tracker,
		mediaDir: mediaDir,
	}
}

func (a *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-API-Key", testAPIKey)
	return a.do(t, req)
}

type upload struct {
	fields map[string]string
	images []string
	video  string
	files  map[string][]byte // extra images with explicit content
}

func (a *testApp) postArticle(t *testing.T, path string, u upload) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range u.fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, name := range u.images {
		part, err := writer.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("image:" + name))
		require.NoError(t, err)
	}
	for name, data := range u.files {
		part, err := writer.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if u.video != "" {
		part, err := writer.CreateFormFile("video", u.video)
		require.NoError(t, err)
		_, err = part.Write([]byte("video:" + u.video))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", testAPIKey)
	return a.do(t, req)
}

func articleFields(author string) map[string]string {
	return map[string]string{
		"author_id": author,
		"title":     "Harbour opens",
		"content":   "<p>The new harbour opened today.</p>",
		"section":   "News",
		"tags":      "city, #Harbour",
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestRootAndHealth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pressroom", decode(t, w)["service"])

	w = app.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	health := decode(t, w)
	assert.Equal(t, float64(0), health["articles"])
	assert.Equal(t, float64(2), health["users"])

	w = app.do(t, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAPIAuthentication(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, httptest.NewRequest(http.MethodGet, "/api/articles", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, app.do(t, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	assert.Equal(t, http.StatusOK, app.do(t, req).Code)
}

func TestCreateArticleWithImages(t *testing.T) {
	app := newTestApp(t)

	w := app.postArticle(t, "/api/articles", upload{
		fields: articleFields("alice"),
		images: []string{"first.jpg", "second.jpg"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, publish.MessagePublished, body["message"])
	urls := body["media_urls"].([]interface{})
	require.Len(t, urls, 2)
	for _, u := range urls {
		assert.True(t, strings.HasPrefix(u.(string), "http://localhost:8080/media/posts/"), u)
	}

	id := body["id"].(string)
	w = app.get(t, "/api/articles/"+id)
	require.Equal(t, http.StatusOK, w.Code)
	article := decode(t, w)
	assert.Equal(t, "news", article["section"])
	assert.Equal(t, float64(1000), article["priority_score"])
	assert.Equal(t, urls[0], article["media_url"])
	assert.Equal(t, []interface{}{"city", "harbour"}, article["tags"])
	assert.Equal(t, float64(0), article["like_count"])

	w = app.get(t, "/api/users/alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(80), decode(t, w)["points"])

	path := strings.TrimPrefix(urls[0].(string), "http://localhost:8080")
	w = app.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image:first.jpg", w.Body.String())

	assert.Equal(t, publish.State{}, app.tracker.Snapshot())
}

func TestCreateArticleWithoutMedia(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{}
	for k, v := range articleFields("alice") {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/articles", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-API-Key", testAPIKey)

	w := app.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Empty(t, decode(t, w)["media_urls"])
}

func TestCreateArticleErrors(t *testing.T) {
	app := newTestApp(t)

	t.Run("unknown author", func(t *testing.T) {
		w := app.postArticle(t, "/api/articles", upload{fields: articleFields("ghost")})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing title", func(t *testing.T) {
		fields := articleFields("alice")
		delete(fields, "title")
		w := app.postArticle(t, "/api/articles", upload{fields: fields})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too many images", func(t *testing.T) {
		w := app.postArticle(t, "/api/articles", upload{
			fields: articleFields("alice"),
			images: []string{"a.jpg", "b.jpg", "c.jpg"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("insufficient points", func(t *testing.T) {
		w := app.postArticle(t, "/api/articles", upload{
			fields: articleFields("bob"),
			images: []string{"a.jpg"},
		})
		require.Equal(t, http.StatusPaymentRequired, w.Code)
		body := decode(t, w)
		assert.Equal(t, publish.MessageNotEnoughPoints, body["error"])
		assert.Equal(t, string(publish.StagePreflight), body["stage"])

		entries, _ := os.ReadDir(app.mediaDir)
		assert.Empty(t, entries)
	})

	t.Run("upload in progress", func(t *testing.T) {
		require.NoError(t, app.tracker.Begin(5))
		defer app.tracker.Finish(0)

		w := app.postArticle(t, "/api/articles", upload{fields: articleFields("alice")})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	w := app.get(t, "/api/articles")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["total"])
}

func TestCreateArticleUploadLimits(t *testing.T) {
	app := newTestApp(t)
	defaults := app.handler.limits

	tests := []struct {
		name   string
		limits func(l *uploadLimits)
		upload upload
	}{
		{
			name:   "image over size limit",
			limits: func(l *uploadLimits) { l.image = 8 },
			upload: upload{fields: articleFields("alice"), images: []string{"first.jpg"}},
		},
		{
			name:   "video over size limit",
			limits: func(l *uploadLimits) { l.video = 8 },
			upload: upload{fields: articleFields("alice"), video: "clip.mp4"},
		},
		{
			name:   "request body over limit",
			limits: func(l *uploadLimits) { l.request = 64 },
			upload: upload{fields: articleFields("alice"), images: []string{"first.jpg"}},
		},
		{
			name:   "image over pixel limit",
			limits: func(l *uploadLimits) {},
			upload: upload{fields: articleFields("alice"), files: map[string][]byte{"tall.png": pngHeader(1000, 60000)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.handler.limits = defaults
			tt.limits(&app.handler.limits)

			w := app.postArticle(t, "/api/articles", tt.upload)
			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
			assert.Equal(t, publish.State{}, app.tracker.Snapshot())
		})
	}

	app.handler.limits = defaults

	w := app.get(t, "/api/articles")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["total"])

	w = app.get(t, "/api/users/alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(100), decode(t, w)["points"])
}

// pngHeader returns only the signature and IHDR chunk of a grayscale PNG
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], width)
	binary.BigEndian.PutUint32(ihdr[8:], height)
	ihdr[12] = 8

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestUploadErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusRequestEntityTooLarge, uploadErrorStatus(&http.MaxBytesError{Limit: 10}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, uploadErrorStatus(fmt.Errorf("x: %w", media.ErrFileTooLarge)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, uploadErrorStatus(fmt.Errorf("x: %w", media.ErrImageTooLarge)))
	assert.Equal(t, http.StatusBadRequest, uploadErrorStatus(errors.New("malformed")))
}

func TestCreateArticleAsync(t *testing.T) {
	app := newTestApp(t)

	w := app.postArticle(t, "/api/articles?async=true", upload{
		fields: articleFields("bob"),
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	taskID := decode(t, w)["task_id"].(string)

	var result map[string]interface{}
	assert.Eventually(t, func() bool {
		w := app.get(t, "/api/tasks/"+taskID)
		if w.Code != http.StatusOK {
			return false
		}
		result = decode(t, w)
		return result["status"] == string(tasks.TaskStatusFailed)
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, string(publish.StagePreflight), result["stage"])
	assert.Equal(t, publish.MessageNotEnoughPoints, result["message"])

	w = app.get(t, "/api/tasks/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListArticlesAndFeed(t *testing.T) {
	app := newTestApp(t)

	for i := 0; i < 2; i++ {
		fields := articleFields("alice")
		fields["title"] = fmt.Sprintf("Story %d", i)
		w := app.postArticle(t, "/api/articles", upload{fields: fields, video: "clip.mp4"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := app.get(t, "/api/articles?section=NEWS&limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	first := body["articles"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Story 1", first["title"])

	w = app.get(t, "/api/articles?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, httptest.NewRequest(http.MethodGet, "/feeds/News", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Feed-Items"))
	assert.Equal(t, "news", w.Header().Get("X-Feed-Section"))
	assert.Contains(t, w.Body.String(), "<title>Story 0</title>")
	assert.Contains(t, w.Body.String(), `type="video/mp4"`)
}

func TestGetUserNotFound(t *testing.T) {
	app := newTestApp(t)

	w := app.get(t, "/api/users/nobody")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.get(t, "/api/articles/nothing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadProgress(t *testing.T) {
	app := newTestApp(t)

	w := app.get(t, "/api/uploads/progress")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_uploading":false,"progress":0}`, w.Body.String())
}

func TestUploadProgressStream(t *testing.T) {
	app := newTestApp(t)

	server := httptest.NewServer(app.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/uploads/progress/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	next := func() publish.State {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(line, "data:"); ok {
				var state publish.State
				require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(data)), &state))
				return state
			}
		}
	}

	assert.Equal(t, publish.State{}, next())

	require.NoError(t, app.tracker.Begin(5))
	assert.Equal(t, publish.State{IsUploading: true, Progress: 5}, next())

	app.tracker.Finish(0)
	assert.Equal(t, publish.State{}, next())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{publish.ErrUploadInProgress, http.StatusConflict},
		{&publish.PublishError{Stage: publish.StagePreflight, Err: publish.ErrUnknownAuthor}, http.StatusNotFound},
		{&publish.PublishError{Stage: publish.StageDebit, Err: publish.ErrInsufficientPoints}, http.StatusPaymentRequired},
		{&publish.PublishError{Stage: publish.StageStaging, Err: errors.New("timeout")}, http.StatusBadGateway},
		{&publish.PublishError{Stage: publish.StagePersist, Err: errors.New("disk full")}, http.StatusInternalServerError},
		{&publish.PublishError{Stage: publish.StageDebit, Err: errors.New("locked")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
