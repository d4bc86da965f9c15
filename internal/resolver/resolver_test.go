package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/store"
)

type failingProber struct{ err error }

func (p *failingProber) Probe(ctx context.Context, node *store.Node) error {
	return p.err
}

func newTestResolver(t *testing.T) (*Resolver, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	return New(m, nil), m
}

func TestCreateNode_DuplicateName(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	original := &store.Node{Name: "n1", Endpoint: "http://minio:9000", AccessKey: "AK", SecretKey: "SK"}
	require.NoError(t, r.CreateNode(ctx, original))

	err := r.CreateNode(ctx, &store.Node{Name: "n1", Endpoint: "http://other:9100"})
	assert.True(t, errs.IsDuplicate(err))

	// Original node is left unmodified.
	got, err := r.store.NodeByName(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", got.Endpoint)
}

func TestCreateNode_UnreachableEndpoint(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	r := New(m, &failingProber{err: errors.New("connection refused")})

	err := r.CreateNode(ctx, &store.Node{Name: "n1", Endpoint: "http://nowhere:9000"})
	assert.True(t, errs.IsConnectionFailed(err))

	// No partial state committed.
	_, err = m.NodeByName(ctx, "n1")
	assert.True(t, errs.IsNotFound(err))
}

func TestCreateNode_Validation(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	assert.True(t, errs.IsInvalidInput(r.CreateNode(ctx, &store.Node{Endpoint: "http://x"})))
	assert.True(t, errs.IsInvalidInput(r.CreateNode(ctx, &store.Node{Name: "n1"})))
}

func TestCreateRoot_UnknownNode(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	err := r.CreateRoot(ctx, "missing", &store.Root{Type: store.RootPublic, Bucket: "bucketA"})
	assert.True(t, errs.IsNotFound(err))
}

func TestCreateRoot_PathConflict(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	require.NoError(t, r.CreateNode(ctx, &store.Node{Name: "nodeA", Endpoint: "http://minio:9000"}))
	require.NoError(t, r.CreateRoot(ctx, "nodeA",
		&store.Root{Type: store.RootPublic, Bucket: "bucketA", BasePath: "public/"}))

	tests := []struct {
		name     string
		basePath string
		bucket   string
		conflict bool
	}{
		{name: "identical base path", basePath: "public/", bucket: "bucketA", conflict: true},
		{name: "nested under existing", basePath: "public/docs/", bucket: "bucketA", conflict: true},
		{name: "existing nested under new", basePath: "pub", bucket: "bucketA", conflict: true},
		{name: "disjoint prefix", basePath: "private/", bucket: "bucketA", conflict: false},
		{name: "same path other bucket", basePath: "public/", bucket: "bucketB", conflict: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.CreateRoot(ctx, "nodeA",
				&store.Root{Type: store.RootPublic, Bucket: tt.bucket, BasePath: tt.basePath})
			if tt.conflict {
				assert.True(t, errs.IsConflict(err), "expected conflict, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateRoot_CatchAllCoexistsWithScoped(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	require.NoError(t, r.CreateNode(ctx, &store.Node{Name: "nodeA", Endpoint: "http://minio:9000"}))
	require.NoError(t, r.CreateRoot(ctx, "nodeA",
		&store.Root{Type: store.RootPublic, Bucket: "bucketA", BasePath: ""}))
	require.NoError(t, r.CreateRoot(ctx, "nodeA",
		&store.Root{Type: store.RootPublic, Bucket: "bucketA", BasePath: "public/"}))

	// A second catch-all on the same bucket collides.
	err := r.CreateRoot(ctx, "nodeA",
		&store.Root{Type: store.RootPrivate, Bucket: "bucketA", BasePath: ""})
	assert.Error(t, err)
}

func TestResolve_LongestPrefixWins(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	require.NoError(t, r.CreateNode(ctx, &store.Node{Name: "nodeA", Endpoint: "http://minio:9000"}))
	require.NoError(t, r.CreateRoot(ctx, "nodeA",
		&store.Root{Type: store.RootPrivate, Bucket: "bucketA", BasePath: ""}))
	require.NoError(t, r.CreateRoot(ctx, "nodeA",
		&store.Root{Type: store.RootPublic, Bucket: "bucketA", BasePath: "public/"}))

	res, err := r.Resolve(ctx, "bucketA/public/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "public/", res.Root.BasePath)
	assert.Equal(t, "file.txt", res.SubPath)

	res, err = r.Resolve(ctx, "bucketA/internal/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "", res.Root.BasePath)
	assert.Equal(t, "internal/file.txt", res.SubPath)
}

func TestResolve_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	require.NoError(t, r.CreateNode(ctx, &store.Node{
		Name: "n1", Endpoint: "http://minio:9000", AccessKey: "AK", SecretKey: "SK",
	}))
	require.NoError(t, r.CreateRoot(ctx, "n1",
		&store.Root{Type: store.RootPublic, Bucket: "bucket1", BasePath: "shared/"}))

	res, err := r.Resolve(ctx, "bucket1/shared/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "n1", res.Node.Name)
	assert.Equal(t, "doc.txt", res.SubPath)

	_, err = r.Resolve(ctx, "bucket1/other/doc.txt")
	assert.True(t, errs.IsNoMatchingRoot(err))
}

func TestResolve_InvalidPath(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	_, err := r.Resolve(ctx, "")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestBasePathsOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"", "", true},
		{"", "public/", false},
		{"public/", "", false},
		{"public/", "public/", true},
		{"public/", "public/docs/", true},
		{"public/docs/", "public/", true},
		{"public/", "private/", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, basePathsOverlap(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}
