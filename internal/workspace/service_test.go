package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/store"
)

type fixture struct {
	svc   *Service
	store *store.Memory

	alice *store.User
	bob   *store.User

	node        *store.Node
	private     *store.Root
	public      *store.Root
	unmanagedRt *store.Root
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()

	fx := &fixture{
		svc:   NewService(m),
		store: m,
		alice: &store.User{Username: "alice", Email: "alice@example.com"},
		bob:   &store.User{Username: "bob", Email: "bob@example.com"},
		node:  &store.Node{Name: "n1", Endpoint: "http://minio:9000"},
	}
	require.NoError(t, m.CreateUser(ctx, fx.alice))
	require.NoError(t, m.CreateUser(ctx, fx.bob))
	require.NoError(t, m.CreateNode(ctx, fx.node))

	fx.private = &store.Root{NodeID: fx.node.ID, Type: store.RootPrivate, Bucket: "data", BasePath: "private/"}
	fx.public = &store.Root{NodeID: fx.node.ID, Type: store.RootPublic, Bucket: "data", BasePath: "public/"}
	fx.unmanagedRt = &store.Root{NodeID: fx.node.ID, Type: store.RootUnmanaged, Bucket: "legacy", BasePath: ""}
	require.NoError(t, m.CreateRoot(ctx, fx.private))
	require.NoError(t, m.CreateRoot(ctx, fx.public))
	require.NoError(t, m.CreateRoot(ctx, fx.unmanagedRt))

	return fx
}

func TestCreate_DefaultsToPrivateRoot(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	w, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "proj"})
	require.NoError(t, err)
	assert.Equal(t, fx.private.ID, w.RootID)
	assert.Equal(t, fx.alice.ID, w.OwnerID)
}

func TestCreate_DuplicateNamePerOwner(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "proj"})
	require.NoError(t, err)

	_, err = fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "proj"})
	assert.True(t, errs.IsDuplicate(err))

	// Same name under a different owner is fine.
	_, err = fx.svc.Create(ctx, fx.bob, CreateRequest{Name: "proj"})
	assert.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Create(ctx, fx.alice, CreateRequest{})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "a/b"})
	assert.True(t, errs.IsInvalidInput(err))

	// Base path only makes sense in an unmanaged root.
	_, err = fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "w", BasePath: "x/"})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestCreate_Unmanaged(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "ext", RootType: store.RootUnmanaged})
	assert.True(t, errs.IsInvalidInput(err), "unmanaged workspace needs a base path")

	w, err := fx.svc.Create(ctx, fx.alice, CreateRequest{
		Name: "ext", RootType: store.RootUnmanaged, BasePath: "imported/run42",
	})
	require.NoError(t, err)

	path, err := fx.svc.Path(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, "legacy/imported/run42/", path)
}

func TestPath_Managed(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	w, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "proj", RootType: store.RootPublic})
	require.NoError(t, err)

	path, err := fx.svc.Path(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, "data/public/alice/proj/", path)
}

func TestPermission(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	private, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "secret"})
	require.NoError(t, err)
	public, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "open", RootType: store.RootPublic})
	require.NoError(t, err)

	perm, err := fx.svc.Permission(ctx, fx.alice, private)
	require.NoError(t, err)
	assert.Equal(t, store.ShareOwn, perm)

	_, err = fx.svc.Permission(ctx, fx.bob, private)
	assert.True(t, errs.IsPermissionDenied(err))

	perm, err = fx.svc.Permission(ctx, fx.bob, public)
	require.NoError(t, err)
	assert.Equal(t, store.ShareRead, perm)
}

func TestShare(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	w, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "secret"})
	require.NoError(t, err)

	_, err = fx.svc.Share(ctx, fx.alice, w.ID, fx.bob.ID, store.ShareWrite, nil)
	require.NoError(t, err)

	perm, err := fx.svc.Permission(ctx, fx.bob, w)
	require.NoError(t, err)
	assert.Equal(t, store.ShareWrite, perm)

	// A sharee without an own grant cannot re-share.
	_, err = fx.svc.Share(ctx, fx.bob, w.ID, fx.alice.ID, store.ShareRead, nil)
	assert.True(t, errs.IsPermissionDenied(err))

	_, err = fx.svc.Share(ctx, fx.alice, w.ID, fx.bob.ID, "admin", nil)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestShare_Expired(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	w, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "secret"})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	_, err = fx.svc.Share(ctx, fx.alice, w.ID, fx.bob.ID, store.ShareWrite, &past)
	require.NoError(t, err)

	_, err = fx.svc.Permission(ctx, fx.bob, w)
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestAuthorize_PrivateRoot(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "proj"})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Authorize(ctx, fx.alice, fx.private, "alice/proj/secret.txt", store.ShareRead))
	require.NoError(t, fx.svc.Authorize(ctx, fx.alice, fx.private, "alice/proj/secret.txt", store.ShareWrite))

	// Another user holds nothing on a private workspace.
	err = fx.svc.Authorize(ctx, fx.bob, fx.private, "alice/proj/secret.txt", store.ShareRead)
	assert.True(t, errs.IsPermissionDenied(err))

	// Paths outside any workspace grant nothing either.
	err = fx.svc.Authorize(ctx, fx.bob, fx.private, "stray.txt", store.ShareRead)
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestAuthorize_ShareGrantsLevel(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	w, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "proj"})
	require.NoError(t, err)
	_, err = fx.svc.Share(ctx, fx.alice, w.ID, fx.bob.ID, store.ShareRead, nil)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Authorize(ctx, fx.bob, fx.private, "alice/proj/doc.txt", store.ShareRead))

	// A read grant does not cover writes.
	err = fx.svc.Authorize(ctx, fx.bob, fx.private, "alice/proj/doc.txt", store.ShareWrite)
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestAuthorize_PublicRoot(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "open", RootType: store.RootPublic})
	require.NoError(t, err)

	// Reads in a public root are open, even outside any workspace.
	require.NoError(t, fx.svc.Authorize(ctx, fx.bob, fx.public, "alice/open/a.txt", store.ShareRead))
	require.NoError(t, fx.svc.Authorize(ctx, fx.bob, fx.public, "stray.txt", store.ShareRead))

	// Writes still need a grant on the owning workspace.
	err = fx.svc.Authorize(ctx, fx.bob, fx.public, "alice/open/a.txt", store.ShareWrite)
	assert.True(t, errs.IsPermissionDenied(err))
	require.NoError(t, fx.svc.Authorize(ctx, fx.alice, fx.public, "alice/open/a.txt", store.ShareWrite))
}

func TestAuthorize_UnmanagedRoot(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Create(ctx, fx.alice, CreateRequest{
		Name: "ext", RootType: store.RootUnmanaged, BasePath: "imported/run42",
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Authorize(ctx, fx.alice, fx.unmanagedRt, "imported/run42/data.csv", store.ShareWrite))

	err = fx.svc.Authorize(ctx, fx.bob, fx.unmanagedRt, "imported/run42/data.csv", store.ShareRead)
	assert.True(t, errs.IsPermissionDenied(err))

	err = fx.svc.Authorize(ctx, fx.alice, fx.unmanagedRt, "imported/other/data.csv", store.ShareRead)
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	w, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "proj"})
	require.NoError(t, err)

	err = fx.svc.Delete(ctx, fx.bob, w.ID)
	assert.True(t, errs.IsPermissionDenied(err))

	require.NoError(t, fx.svc.Delete(ctx, fx.alice, w.ID))

	_, err = fx.svc.Get(ctx, w.ID)
	assert.True(t, errs.IsNotFound(err))

	err = fx.svc.Delete(ctx, fx.alice, uuid.New())
	assert.True(t, errs.IsNotFound(err))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Create(ctx, fx.alice, CreateRequest{Name: "alpha"})
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, fx.bob, CreateRequest{Name: "beta"})
	require.NoError(t, err)

	own, err := fx.svc.List(ctx, fx.alice, "")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "alpha", own[0].Name)

	matched, err := fx.svc.List(ctx, fx.alice, "bet")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "beta", matched[0].Name)
}
