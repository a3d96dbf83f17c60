package deploy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/cloudbuild/apiv1/v2/cloudbuildpb"
	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	cfg := testConfig()
	tag := ImageTag(time.Date(2025, 11, 10, 8, 30, 0, 0, time.UTC))
	assert.Equal(t, "20251110-083000", tag)

	object := sourceObject(cfg, tag)
	assert.Equal(t, "source/sales-intelligence-api-20251110-083000.tgz", object)

	req := buildRequest(cfg, object, tag)
	assert.Equal(t, "sales-project", req.ProjectId)

	src := req.Build.GetSource().GetStorageSource()
	require.NotNil(t, src)
	assert.Equal(t, "sales-project_cloudbuild", src.Bucket)
	assert.Equal(t, object, src.Object)

	require.Len(t, req.Build.Steps, 1)
	assert.Equal(t, dockerBuilder, req.Build.Steps[0].Name)
	assert.Equal(t, []string{
		"build", "-f", "Dockerfile",
		"-t", "gcr.io/sales-project/sales-intelligence-api:20251110-083000",
		"-t", "gcr.io/sales-project/sales-intelligence-api:latest",
		".",
	}, req.Build.Steps[0].Args)
	assert.Equal(t, []string{
		"gcr.io/sales-project/sales-intelligence-api:20251110-083000",
		"gcr.io/sales-project/sales-intelligence-api:latest",
	}, req.Build.Images)
}

func TestBuiltImage(t *testing.T) {
	tagged := "gcr.io/sales-project/sales-intelligence-api:20251110-083000"

	build := &cloudbuildpb.Build{Results: &cloudbuildpb.Results{Images: []*cloudbuildpb.BuiltImage{
		{Name: "gcr.io/sales-project/sales-intelligence-api:latest", Digest: "sha256:aaa"},
		{Name: tagged, Digest: "sha256:bbb"},
	}}}
	assert.Equal(t, "gcr.io/sales-project/sales-intelligence-api@sha256:bbb", builtImage(build, tagged))

	assert.Equal(t, tagged, builtImage(&cloudbuildpb.Build{}, tagged))
}

func TestImageRepository(t *testing.T) {
	assert.Equal(t, "gcr.io/p/s", imageRepository("gcr.io/p/s:tag"))
	assert.Equal(t, "gcr.io/p/s", imageRepository("gcr.io/p/s"))
	assert.Equal(t, "localhost:5000/s", imageRepository("localhost:5000/s:tag"))
	assert.Equal(t, "localhost:5000/s", imageRepository("localhost:5000/s"))
}

type fakeWriter struct {
	ctx    context.Context
	buf    bytes.Buffer
	closed bool
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeBucket struct {
	attrsErr error
	created  *storage.BucketAttrs
	project  string
	writers  map[string]*fakeWriter
}

func (b *fakeBucket) Attrs(ctx context.Context) (*storage.BucketAttrs, error) {
	if b.attrsErr != nil {
		return nil, b.attrsErr
	}
	return &storage.BucketAttrs{}, nil
}

func (b *fakeBucket) Create(ctx context.Context, projectID string, attrs *storage.BucketAttrs) error {
	b.project = projectID
	b.created = attrs
	b.attrsErr = nil
	return nil
}

func (b *fakeBucket) NewWriter(ctx context.Context, object string) io.WriteCloser {
	if b.writers == nil {
		b.writers = map[string]*fakeWriter{}
	}
	w := &fakeWriter{ctx: ctx}
	b.writers[object] = w
	return w
}

func sourceDir(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))
	return dir
}

func TestUploadSource(t *testing.T) {
	t.Run("CreatesMissingBucket", func(t *testing.T) {
		cfg := testConfig()
		cfg.SourceDir = sourceDir(t)

		bucket := &fakeBucket{attrsErr: storage.ErrBucketNotExist}
		require.NoError(t, uploadSource(context.Background(), bucket, cfg, "source/a.tgz"))

		require.NotNil(t, bucket.created)
		assert.Equal(t, "sales-project", bucket.project)
		assert.Equal(t, cfg.Region, bucket.created.Location)

		w := bucket.writers["source/a.tgz"]
		require.NotNil(t, w)
		assert.True(t, w.closed)
		assert.NotZero(t, w.buf.Len())
	})

	t.Run("ExistingBucket", func(t *testing.T) {
		cfg := testConfig()
		cfg.SourceDir = sourceDir(t)

		bucket := &fakeBucket{}
		require.NoError(t, uploadSource(context.Background(), bucket, cfg, "source/a.tgz"))
		assert.Nil(t, bucket.created)
		assert.True(t, bucket.writers["source/a.tgz"].closed)
	})

	t.Run("BucketLookupFails", func(t *testing.T) {
		cfg := testConfig()
		cfg.SourceDir = sourceDir(t)

		bucket := &fakeBucket{attrsErr: errors.New("permission denied")}
		err := uploadSource(context.Background(), bucket, cfg, "source/a.tgz")
		assert.ErrorContains(t, err, "permission denied")
		assert.Nil(t, bucket.created)
		assert.Empty(t, bucket.writers)
	})

	t.Run("ArchiveFailureAbandonsUpload", func(t *testing.T) {
		cfg := testConfig()
		cfg.SourceDir = filepath.Join(t.TempDir(), "missing")

		bucket := &fakeBucket{}
		err := uploadSource(context.Background(), bucket, cfg, "source/a.tgz")
		assert.ErrorContains(t, err, "error archiving source directory")

		w := bucket.writers["source/a.tgz"]
		require.NotNil(t, w)
		assert.False(t, w.closed)
		assert.ErrorIs(t, w.ctx.Err(), context.Canceled)
	})
}
