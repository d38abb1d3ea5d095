package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps photos as objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore connects to bucket. Credentials come from credentialsJSON when
// set and from Application Default Credentials otherwise. Objects are written
// under prefix.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsJSON string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not accessible: %w", bucket, err)
	}

	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the underlying client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}

func (g *GCSStore) object(ref string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(path.Join(g.prefix, ref))
}

// Put implements Store.
func (g *GCSStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ref := NewRef(contentType)

	// DoesNotExist makes a ref collision fail instead of overwriting evidence.
	w := g.object(ref).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("uploading photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finishing photo upload: %w", err)
	}
	return ref, nil
}

// Get implements Store.
func (g *GCSStore) Get(ctx context.Context, ref string) ([]byte, string, error) {
	if err := checkRef(ref); err != nil {
		return nil, "", err
	}

	r, err := g.object(ref).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, "", fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	if err != nil {
		return nil, "", fmt.Errorf("opening photo: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("reading photo: %w", err)
	}
	return data, r.Attrs.ContentType, nil
}
