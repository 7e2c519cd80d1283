package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures a MinioStore.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// Prefix is prepended to every object key, e.g. "taskflow/cache".
	Prefix string

	// Client is used as-is when set; the connection fields are ignored.
	Client *minio.Client
}

// MinioStore is a Store over an S3-compatible bucket. Namespaces are key
// prefixes, so creating one is free.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects to the bucket described by cfg. The bucket must
// already exist.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio store: bucket is required")
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
	}

	ok, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, translateMinio(err))
	}
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, fs.ErrNotExist)
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *MinioStore) nsPrefix(ns string) string {
	if s.prefix == "" {
		return ns + "/"
	}
	return s.prefix + "/" + ns + "/"
}

func (s *MinioStore) object(ns string, key Key) string {
	return path.Join(s.prefix, ns, string(key)+entrySuffix)
}

func (s *MinioStore) Exists(ctx context.Context, ns string, key Key) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.object(ns, key), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	terr := translateMinio(err)
	if terr == fs.ErrNotExist {
		return false, nil
	}
	return false, fmt.Errorf("stat %s/%s: %w", ns, key.Short(), terr)
}

func (s *MinioStore) Read(ctx context.Context, ns string, key Key) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object(ns, key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", ns, key.Short(), translateMinio(err))
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", ns, key.Short(), translateMinio(err))
	}
	return data, nil
}

func (s *MinioStore) Write(ctx context.Context, ns string, key Key, data []byte) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		s.object(ns, key),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", ns, key.Short(), translateMinio(err))
	}
	return nil
}

func (s *MinioStore) Delete(ctx context.Context, ns string, key Key) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.object(ns, key), minio.RemoveObjectOptions{})
	if err != nil {
		if translateMinio(err) == fs.ErrNotExist {
			return nil
		}
		return fmt.Errorf("delete %s/%s: %w", ns, key.Short(), translateMinio(err))
	}
	return nil
}

func (s *MinioStore) List(ctx context.Context, ns string) ([]Key, error) {
	prefix := s.nsPrefix(ns)
	keys := []Key{}
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list %s: %w", ns, translateMinio(object.Err))
		}
		if k, ok := keyFromName(strings.TrimPrefix(object.Key, prefix)); ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (s *MinioStore) EnsureNamespace(context.Context, string) error {
	return nil
}

func (s *MinioStore) DropNamespace(ctx context.Context, ns string) error {
	return s.removePrefix(ctx, s.nsPrefix(ns))
}

func (s *MinioStore) DropAll(ctx context.Context) error {
	prefix := ""
	if s.prefix != "" {
		prefix = s.prefix + "/"
	}
	return s.removePrefix(ctx, prefix)
}

// removePrefix streams a recursive listing into the batch delete API.
func (s *MinioStore) removePrefix(ctx context.Context, prefix string) error {
	objectsCh := make(chan minio.ObjectInfo, 100)

	var listErr error
	go func() {
		defer close(objectsCh)
		for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if object.Err != nil {
				listErr = object.Err
				return
			}
			objectsCh <- object
		}
	}()

	var firstErr error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil && firstErr == nil {
			firstErr = rerr.Err
		}
	}

	if listErr != nil {
		return fmt.Errorf("list %q: %w", prefix, translateMinio(listErr))
	}
	if firstErr != nil {
		return fmt.Errorf("remove %q: %w", prefix, translateMinio(firstErr))
	}
	return nil
}

func translateMinio(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fs.ErrNotExist
	case "AccessDenied":
		return fs.ErrPermission
	}
	return fmt.Errorf("minio: %w", err)
}
