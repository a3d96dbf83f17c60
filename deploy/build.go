package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/config"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"

	cloudbuild "cloud.google.com/go/cloudbuild/apiv1/v2"
	"cloud.google.com/go/cloudbuild/apiv1/v2/cloudbuildpb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/durationpb"
)

const dockerBuilder = "gcr.io/cloud-builders/docker"

// ImageBuilder turns the configured source directory into a pushed container
// image and returns the image reference to deploy.
type ImageBuilder interface {
	Build(ctx context.Context, cfg config.DeployConfig, tag string) (string, error)
}

// sourceBucket is the staging bucket that receives source archives.
type sourceBucket interface {
	Attrs(ctx context.Context) (*storage.BucketAttrs, error)
	Create(ctx context.Context, projectID string, attrs *storage.BucketAttrs) error
	NewWriter(ctx context.Context, object string) io.WriteCloser
}

type gcsBucket struct {
	*storage.BucketHandle
}

func (b gcsBucket) NewWriter(ctx context.Context, object string) io.WriteCloser {
	w := b.Object(object).NewWriter(ctx)
	w.ContentType = "application/gzip"
	return w
}

type CloudBuilder struct {
	storage *storage.Client
	builds  *cloudbuild.Client

	bucket func(name string) sourceBucket
}

func NewCloudBuilder(ctx context.Context, opts ...option.ClientOption) (*CloudBuilder, error) {
	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating storage client: %w", err)
	}

	buildClient, err := cloudbuild.NewClient(ctx, opts...)
	if err != nil {
		_ = storageClient.Close()
		return nil, fmt.Errorf("error creating cloud build client: %w", err)
	}

	return &CloudBuilder{
		storage: storageClient,
		builds:  buildClient,
		bucket: func(name string) sourceBucket {
			return gcsBucket{storageClient.Bucket(name)}
		},
	}, nil
}

func (b *CloudBuilder) Close() error {
	err := b.builds.Close()
	if serr := b.storage.Close(); err == nil {
		err = serr
	}
	return err
}

// ImageTag is the tag used for images built at t.
func ImageTag(t time.Time) string {
	return t.UTC().Format("20060102-150405")
}

func sourceObject(cfg config.DeployConfig, tag string) string {
	return path.Join("source", fmt.Sprintf("%s-%s.tgz", cfg.Service, tag))
}

// ensureBucket creates the staging bucket in the deploy region when it does not
// exist yet.
func ensureBucket(ctx context.Context, bucket sourceBucket, cfg config.DeployConfig) error {
	_, err := bucket.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("error reading staging bucket %v: %w", cfg.Bucket(), err)
	}

	attrs := &storage.BucketAttrs{
		Location:                 cfg.Region,
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
	}
	if err := bucket.Create(ctx, cfg.Project, attrs); err != nil {
		return fmt.Errorf("error creating staging bucket %v: %w", cfg.Bucket(), err)
	}

	slog.Info("created staging bucket", "bucket", cfg.Bucket(), "location", cfg.Region, "code", logging.DEPLOY)
	return nil
}

func uploadSource(ctx context.Context, bucket sourceBucket, cfg config.DeployConfig, object string) error {
	if err := ensureBucket(ctx, bucket, cfg); err != nil {
		return err
	}

	// cancelling the writer context abandons the upload without creating the object
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := bucket.NewWriter(ctx, object)

	files, err := WriteSourceArchive(w, cfg.SourceDir, cfg.Excludes)
	if err != nil {
		cancel()
		return fmt.Errorf("error archiving source directory %v: %w", cfg.SourceDir, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("error uploading source to gs://%v/%v: %w", cfg.Bucket(), object, err)
	}

	slog.Info("uploaded source archive", "bucket", cfg.Bucket(), "object", object, "files", files, "code", logging.DEPLOY)
	return nil
}

func buildRequest(cfg config.DeployConfig, object, tag string) *cloudbuildpb.CreateBuildRequest {
	image := cfg.ImageName()
	tagged := fmt.Sprintf("%s:%s", image, tag)
	latest := fmt.Sprintf("%s:latest", image)

	return &cloudbuildpb.CreateBuildRequest{
		ProjectId: cfg.Project,
		Build: &cloudbuildpb.Build{
			Source: &cloudbuildpb.Source{
				Source: &cloudbuildpb.Source_StorageSource{
					StorageSource: &cloudbuildpb.StorageSource{Bucket: cfg.Bucket(), Object: object},
				},
			},
			Steps: []*cloudbuildpb.BuildStep{
				{
					Name: dockerBuilder,
					Args: []string{"build", "-f", cfg.Dockerfile, "-t", tagged, "-t", latest, "."},
				},
			},
			Images:  []string{tagged, latest},
			Timeout: durationpb.New(20 * time.Minute),
			Tags:    []string{cfg.Service},
		},
	}
}

// imageRepository strips the tag from an image reference.
func imageRepository(ref string) string {
	slash := strings.LastIndex(ref, "/")
	if colon := strings.LastIndex(ref, ":"); colon > slash {
		return ref[:colon]
	}
	return ref
}

// builtImage picks the digest reference of the tagged image when cloud build
// reported one.
func builtImage(build *cloudbuildpb.Build, tagged string) string {
	for _, img := range build.GetResults().GetImages() {
		if img.GetName() == tagged && img.GetDigest() != "" {
			return fmt.Sprintf("%s@%s", imageRepository(tagged), img.GetDigest())
		}
	}
	return tagged
}

func (b *CloudBuilder) Build(ctx context.Context, cfg config.DeployConfig, tag string) (string, error) {
	object := sourceObject(cfg, tag)
	if err := uploadSource(ctx, b.bucket(cfg.Bucket()), cfg, object); err != nil {
		return "", err
	}

	req := buildRequest(cfg, object, tag)
	op, err := b.builds.CreateBuild(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error submitting build: %w", err)
	}

	slog.Info("submitted cloud build", "images", req.Build.Images, "code", logging.DEPLOY)

	build, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("error waiting for build: %w", err)
	}
	if build.GetStatus() != cloudbuildpb.Build_SUCCESS {
		return "", fmt.Errorf("build %v finished with status %v: %v (logs: %v)", build.GetId(), build.GetStatus(), build.GetStatusDetail(), build.GetLogUrl())
	}

	image := builtImage(build, req.Build.Images[0])
	slog.Info("build succeeded", "build_id", build.GetId(), "image", image, "code", logging.DEPLOY)
	return image, nil
}

// PrebuiltImage skips the build step and deploys an existing image.
type PrebuiltImage string

func (p PrebuiltImage) Build(ctx context.Context, cfg config.DeployConfig, tag string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("no image given")
	}
	return string(p), nil
}
