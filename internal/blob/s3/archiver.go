package s3blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dkorolev/statarb/internal/domain"
)

// multipartThreshold is the artifact size above which uploads go through the
// multipart manager instead of a single PutObject.
const multipartThreshold int64 = 64 * 1024 * 1024

// Archiver uploads a run's artifact files to the object store under
// runs/<runID>/. It implements both domain.Archiver and domain.BlobWriter.
type Archiver struct {
	client   *s3.Client
	bucket   string
	uploader *manager.Uploader
}

// NewArchiver creates an Archiver writing to the client's artifact bucket.
func NewArchiver(c *Client) *Archiver {
	return &Archiver{
		client:   c.s3,
		bucket:   c.bucket,
		uploader: manager.NewUploader(c.s3),
	}
}

// Put uploads one object in a single request.
func (a *Archiver) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}

// putLarge streams one object through the multipart upload manager, which
// splits it into parts and uploads them concurrently.
func (a *Archiver) putLarge(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", path, err)
	}
	return nil
}

// ArchiveRun uploads every regular file in dir to runs/<runID>/<filename> and
// returns the number of objects uploaded. Subdirectories are skipped. Upload
// order is deterministic so retries after a partial failure re-cover the
// same prefix.
func (a *Archiver) ArchiveRun(ctx context.Context, runID string, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("s3blob: read artifact dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		local := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return uploaded, fmt.Errorf("s3blob: stat %s: %w", local, err)
		}

		f, err := os.Open(local)
		if err != nil {
			return uploaded, fmt.Errorf("s3blob: open %s: %w", local, err)
		}

		key := fmt.Sprintf("runs/%s/%s", runID, entry.Name())
		contentType := contentTypeFor(entry.Name())
		if info.Size() >= multipartThreshold {
			err = a.putLarge(ctx, key, f, contentType)
		} else {
			err = a.Put(ctx, key, f, contentType)
		}
		_ = f.Close()
		if err != nil {
			return uploaded, fmt.Errorf("s3blob: upload %s: %w", key, err)
		}
		uploaded++
	}
	return uploaded, nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Compile-time interface checks.
var (
	_ domain.Archiver   = (*Archiver)(nil)
	_ domain.BlobWriter = (*Archiver)(nil)
)
