package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	uploadTimeout = 2 * time.Minute
	// statementPrefix is the folder raw statements are archived under.
	statementPrefix = "statements"
)

// UploadFile uploads a local file to a GCS bucket under the given object name.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	return upload(ctx, bucketName, objectName, f, contentTypeFor(filePath))
}

// UploadBytes stores data under objectName and returns the object's gs:// URI.
func UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (string, error) {
	if err := upload(ctx, bucketName, objectName, bytes.NewReader(data), contentType); err != nil {
		return "", err
	}
	return GCSURI(bucketName, objectName), nil
}

func upload(ctx context.Context, bucketName, objectName string, src io.Reader, contentType string) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy data to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}

// GCSURI formats a bucket and object name as a gs:// URI.
func GCSURI(bucketName, objectName string) string {
	return "gs://" + bucketName + "/" + objectName
}

// StatementObjectName returns the object name a raw statement is archived
// under. Files with identical bytes share a folder.
func StatementObjectName(checksum, filename string) string {
	return path.Join(statementPrefix, checksum, path.Base(filename))
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
