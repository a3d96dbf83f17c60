package config

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

// SecretAccessor is the subset of the Secret Manager client used to read secrets.
type SecretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

func NewSecretManagerClient(ctx context.Context) (*secretmanager.Client, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating secret manager client: %w", err)
	}
	return client, nil
}

// SecretVersionName expands a short secret reference into a full version
// resource name. Accepted forms are "name", "name:version" and the full
// "projects/<p>/secrets/<name>/versions/<v>".
func SecretVersionName(project, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	if strings.HasPrefix(ref, "projects/") {
		if !strings.Contains(ref, "/versions/") {
			return ref + "/versions/latest", nil
		}
		return ref, nil
	}
	if project == "" {
		return "", fmt.Errorf("project is required to resolve secret '%v'", ref)
	}
	name, version, found := strings.Cut(ref, ":")
	if !found || version == "" {
		version = "latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, name, version), nil
}

func ResolveSecret(ctx context.Context, accessor SecretAccessor, project, ref string) (string, error) {
	name, err := SecretVersionName(project, ref)
	if err != nil {
		return "", err
	}

	res, err := accessor.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("error accessing secret %v: %w", name, err)
	}
	if res.GetPayload() == nil {
		return "", fmt.Errorf("secret %v has no payload", name)
	}

	return strings.TrimSpace(string(res.GetPayload().GetData())), nil
}
