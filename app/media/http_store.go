package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

var _ Store = (*HTTPStore)(nil)

// HTTPStore performs unsigned uploads against a hosted media API:
// POST {endpoint}/{resource_type}/upload with file, upload_preset and folder.
type HTTPStore struct {
	endpoint     string
	uploadPreset string
	userAgent    string
	timeout      time.Duration
	httpClient   *http.Client
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewHTTPStore(endpoint, uploadPreset, userAgent string, timeout time.Duration, httpClient *http.Client) *HTTPStore {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPStore{
		endpoint:     strings.TrimRight(endpoint, "/"),
		uploadPreset: uploadPreset,
		userAgent:    userAgent,
		timeout:      timeout,
		httpClient:   httpClient,
	}
}

func (s *HTTPStore) Upload(ctx context.Context, req UploadRequest) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	body, contentType, err := s.buildForm(req)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/upload", s.endpoint, req.ResourceType)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	if s.userAgent != "" {
		httpReq.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed uploadResponse
	jsonErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if jsonErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("media store rejected upload: %d %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if jsonErr != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", jsonErr)
	}
	if parsed.SecureURL == "" {
		return "", fmt.Errorf("upload response has no secure_url")
	}

	return parsed.SecureURL, nil
}

func (s *HTTPStore) buildForm(req UploadRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(req.Blob)))
	header.Set("Content-Type", contentTypeOf(req.Blob))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(req.Blob.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}

	fields := map[string]string{
		"upload_preset": s.uploadPreset,
		"folder":        req.Folder,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart form: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

func fileName(blob Blob) string {
	if blob.Name != "" {
		return blob.Name
	}
	return "upload"
}

func contentTypeOf(blob Blob) string {
	if blob.ContentType != "" {
		return blob.ContentType
	}
	return http.DetectContentType(blob.Data)
}
