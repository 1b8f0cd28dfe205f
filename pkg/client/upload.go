package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/diogo/perplexity-web-api-go/internal/metrics"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"go.uber.org/zap"
)

const (
	defaultContentType = "application/octet-stream"

	// imageBackendMarker identifies the image-processing storage backend.
	imageBackendMarker = "image/upload"
)

var signedUploadPath = regexp.MustCompile(`/private/s--.*?--/v\d+/user_uploads/`)

// UploadPath reads a file from disk and uploads it.
func (c *Client) UploadPath(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return c.Upload(ctx, models.FileFromBytes(filepath.Base(filePath), data))
}

// Upload stores a file and returns the attachment URL to send with a query.
// It negotiates a storage target, transfers the bytes there and normalises
// the resulting URL.
func (c *Client) Upload(ctx context.Context, file models.UploadFile) (string, error) {
	if !c.transport.HasCredentials() {
		return "", ErrFileUploadRequiresAuth
	}

	contentType := DetectContentType(file.Filename)

	target, err := c.negotiateUpload(ctx, file, contentType)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("unknown", "error").Inc()
		return "", err
	}

	backend := "object"
	if strings.Contains(target.S3ObjectURL, imageBackendMarker) {
		backend = "image"
	}

	url, err := c.transferUpload(ctx, file, contentType, target, backend == "image")
	metrics.UploadsTotal.WithLabelValues(backend, metrics.Status(err)).Inc()
	if err != nil {
		return "", err
	}

	c.log.Debug("file uploaded",
		zap.String("filename", file.Filename),
		zap.String("content_type", contentType),
		zap.Int("size", file.Size()),
		zap.String("backend", backend),
	)
	return url, nil
}

func (c *Client) negotiateUpload(ctx context.Context, file models.UploadFile, contentType string) (models.UploadURLResponse, error) {
	var target models.UploadURLResponse

	request := models.UploadURLRequest{
		ContentType: contentType,
		FileSize:    file.Size(),
		Filename:    file.Filename,
		ForceImage:  false,
		Source:      requestSource,
	}
	path := uploadPath + "?version=" + apiVersion + "&source=" + requestSource

	var body []byte
	err := c.runLeg(ctx, LegUploadNegotiation, c.timeouts.UploadNegotiation, func(ctx context.Context) error {
		resp, err := c.transport.PostJSON(ctx, path, request)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := checkStatus(LegUploadNegotiation, resp); err != nil {
			return err
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return target, uploadFailure(ErrUploadNegotiationFailed, err)
	}

	if err := json.Unmarshal(body, &target); err != nil {
		return target, fmt.Errorf("%w: invalid response: %w", ErrUploadNegotiationFailed, err)
	}
	if target.S3BucketURL == "" {
		return target, fmt.Errorf("%w: response has no s3_bucket_url", ErrUploadNegotiationFailed)
	}
	return target, nil
}

func (c *Client) transferUpload(ctx context.Context, file models.UploadFile, contentType string, target models.UploadURLResponse, image bool) (string, error) {
	part := FilePart{
		FieldName:   "file",
		Filename:    file.Filename,
		ContentType: contentType,
		Data:        file.Data,
	}

	var body []byte
	err := c.runLeg(ctx, LegStorageTransfer, c.timeouts.StorageTransfer, func(ctx context.Context) error {
		resp, err := c.transport.PostMultipart(ctx, target.S3BucketURL, target.Fields, part)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := checkStatus(LegStorageTransfer, resp); err != nil {
			return err
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return "", uploadFailure(ErrStorageTransferFailed, err)
	}

	if !image {
		if target.S3ObjectURL == "" {
			return "", fmt.Errorf("%w: negotiation returned no s3_object_url", ErrMissingStorageReference)
		}
		return target.S3ObjectURL, nil
	}

	var stored models.StorageUploadResponse
	if err := json.Unmarshal(body, &stored); err != nil || stored.SecureURL == "" {
		return "", ErrMissingStorageReference
	}

	normalized := rewriteSecureURL(stored.SecureURL)
	if normalized != stored.SecureURL {
		c.log.Debug("normalized image URL", zap.String("url", normalized))
	}
	return normalized, nil
}

// rewriteSecureURL drops the signature and version segments of an image
// delivery URL so it stays stable.
func rewriteSecureURL(secureURL string) string {
	return signedUploadPath.ReplaceAllLiteralString(secureURL, "/private/user_uploads/")
}

// DetectContentType detects MIME type from filename.
func DetectContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "":
		return defaultContentType
	}

	if t := mime.TypeByExtension(ext); t != "" {
		mediaType, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mediaType
		}
	}
	return defaultContentType
}
