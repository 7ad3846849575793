package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
	"github.com/Lllllllleong/forensicdocumentflow/internal/retry"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

var _ ports.ObjectStore = (*ObjectStore)(nil)

// ObjectStore is the Cloud Storage implementation of ports.ObjectStore.
type ObjectStore struct {
	client *storage.Client
	retry  retry.Policy
}

func NewObjectStore(client *storage.Client) *ObjectStore {
	return &ObjectStore{client: client, retry: retry.Default()}
}

func objectErr(bucket, object string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gs://%s/%s: %w", bucket, object, ports.ErrObjectNotExist)
	}
	return fmt.Errorf("gs://%s/%s: %w", bucket, object, err)
}

// permanent reports whether a Cloud Storage error will not go away on retry.
func permanent(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusNotFound, http.StatusPreconditionFailed:
			return true
		}
	}
	return false
}

func markPermanent(err error) error {
	if err != nil && permanent(err) {
		return retry.Permanent(err)
	}
	return err
}

// Download reads the whole object, retrying transient failures. A missing
// object fails at once with ports.ErrObjectNotExist.
func (s *ObjectStore) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	data, err := retry.Do(ctx, s.retry, "download gs://"+bucket+"/"+object, func(ctx context.Context) ([]byte, error) {
		data, err := s.read(ctx, s.client.Bucket(bucket).Object(object))
		return data, markPermanent(err)
	})
	if err != nil {
		return nil, objectErr(bucket, object, err)
	}
	return data, nil
}

func (s *ObjectStore) read(ctx context.Context, obj *storage.ObjectHandle) ([]byte, error) {
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return data, nil
}

// Upload overwrites the object, retrying transient failures with backoff.
func (s *ObjectStore) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	return retry.Run(ctx, s.retry, "upload gs://"+bucket+"/"+object, func(ctx context.Context) error {
		return markPermanent(s.write(ctx, s.client.Bucket(bucket).Object(object), data, contentType))
	})
}

// UploadIfAbsent writes the object only if it does not already exist. An
// existing object is not an error: redelivered work finds its output in place.
// Transient failures are retried like Upload.
func (s *ObjectStore) UploadIfAbsent(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	obj := s.client.Bucket(bucket).Object(object).If(storage.Conditions{DoesNotExist: true})
	err := retry.Run(ctx, s.retry, "upload-if-absent gs://"+bucket+"/"+object, func(ctx context.Context) error {
		return markPermanent(s.write(ctx, obj, data, contentType))
	})
	if alreadyExists(err) {
		slog.Info("Object already exists. Skipping.", "gcsBucket", bucket, "gcsObject", object)
		return nil
	}
	return err
}

func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

func (s *ObjectStore) write(ctx context.Context, obj *storage.ObjectHandle, data []byte, contentType string) error {
	writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()

	w := obj.NewWriter(writeCtx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
	}
	return nil
}

func (s *ObjectStore) Copy(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	src := s.client.Bucket(srcBucket).Object(srcObject)
	dst := s.client.Bucket(dstBucket).Object(dstObject)
	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return objectErr(srcBucket, srcObject, err)
	}
	return nil
}

func (s *ObjectStore) Delete(ctx context.Context, bucket, object string) error {
	if err := s.client.Bucket(bucket).Object(object).Delete(ctx); err != nil {
		return objectErr(bucket, object, err)
	}
	return nil
}

func (s *ObjectStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (s *ObjectStore) Close() error {
	return s.client.Close()
}
