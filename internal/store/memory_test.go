package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsio/wsio/internal/errs"
)

func TestMemory_NodeUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	original := &Node{Name: "n1", Kind: BackendMinIO, Endpoint: "http://minio:9000", AccessKey: "AK", SecretKey: "SK"}
	require.NoError(t, m.CreateNode(ctx, original))

	err := m.CreateNode(ctx, &Node{Name: "n1", Kind: BackendS3, Endpoint: "http://other:9100"})
	require.Error(t, err)
	assert.True(t, errs.IsDuplicate(err))

	// The original node is unmodified.
	got, err := m.NodeByName(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", got.Endpoint)
	assert.Equal(t, BackendMinIO, got.Kind)
}

func TestMemory_RootUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	node := &Node{Name: "n1", Kind: BackendMinIO, Endpoint: "http://minio:9000"}
	require.NoError(t, m.CreateNode(ctx, node))

	root := &Root{NodeID: node.ID, Type: RootPublic, Bucket: "bucketA", BasePath: "public/"}
	require.NoError(t, m.CreateRoot(ctx, root))

	err := m.CreateRoot(ctx, &Root{NodeID: node.ID, Type: RootPublic, Bucket: "bucketA", BasePath: "public/"})
	assert.True(t, errs.IsDuplicate(err))

	// Same base path on a different bucket is fine.
	require.NoError(t, m.CreateRoot(ctx, &Root{NodeID: node.ID, Type: RootPublic, Bucket: "bucketB", BasePath: "public/"}))
}

func TestMemory_WorkspaceUniquePerOwner(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	owner := uuid.New()
	other := uuid.New()
	rootID := uuid.New()

	require.NoError(t, m.CreateWorkspace(ctx, &Workspace{Name: "photos", OwnerID: owner, RootID: rootID}))

	err := m.CreateWorkspace(ctx, &Workspace{Name: "photos", OwnerID: owner, RootID: rootID})
	assert.True(t, errs.IsDuplicate(err))

	// Same name under a different owner is fine.
	require.NoError(t, m.CreateWorkspace(ctx, &Workspace{Name: "photos", OwnerID: other, RootID: rootID}))
}

func TestMemory_ListWorkspacesFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	owner := uuid.New()
	rootID := uuid.New()
	for _, name := range []string{"photos", "photos-raw", "docs"} {
		require.NoError(t, m.CreateWorkspace(ctx, &Workspace{Name: name, OwnerID: owner, RootID: rootID}))
	}

	byName, err := m.ListWorkspaces(ctx, WorkspaceFilter{Name: "docs"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "docs", byName[0].Name)

	byLike, err := m.ListWorkspaces(ctx, WorkspaceFilter{Like: "photos"})
	require.NoError(t, err)
	assert.Len(t, byLike, 2)

	byOwner, err := m.ListWorkspaces(ctx, WorkspaceFilter{OwnerID: &owner})
	require.NoError(t, err)
	assert.Len(t, byOwner, 3)
}

func TestMemory_UserEmailOptional(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreateUser(ctx, &User{Username: "alice"}))

	// A second account without an email is not an email collision.
	require.NoError(t, m.CreateUser(ctx, &User{Username: "mallory"}))

	err := m.CreateUser(ctx, &User{Username: "alice"})
	assert.True(t, errs.IsDuplicate(err))

	require.NoError(t, m.CreateUser(ctx, &User{Username: "bob", Email: "bob@example.com"}))
	err = m.CreateUser(ctx, &User{Username: "bobby", Email: "bob@example.com"})
	assert.True(t, errs.IsDuplicate(err))
}

func TestMemory_ShareForStrongestGrant(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	workspaceID := uuid.New()
	shareeID := uuid.New()

	require.NoError(t, m.CreateShare(ctx, &Share{
		WorkspaceID: workspaceID, CreatorID: uuid.New(), ShareeID: shareeID, Permission: ShareRead,
	}))
	require.NoError(t, m.CreateShare(ctx, &Share{
		WorkspaceID: workspaceID, CreatorID: uuid.New(), ShareeID: shareeID, Permission: ShareOwn,
	}))

	got, err := m.ShareFor(ctx, workspaceID, shareeID)
	require.NoError(t, err)
	assert.Equal(t, ShareOwn, got.Permission)
}

func TestSharePermissionCovers(t *testing.T) {
	assert.True(t, ShareOwn.Covers(ShareWrite))
	assert.True(t, ShareWrite.Covers(ShareRead))
	assert.True(t, ShareRead.Covers(ShareRead))
	assert.False(t, ShareRead.Covers(ShareWrite))
	assert.False(t, ShareWrite.Covers(ShareOwn))
}

func TestMemory_NotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.NodeByName(ctx, "missing")
	assert.True(t, errs.IsNotFound(err))

	_, err = m.WorkspaceByID(ctx, uuid.New())
	assert.True(t, errs.IsNotFound(err))

	_, err = m.APIKeyByKeyID(ctx, "nope")
	assert.True(t, errs.IsNotFound(err))
}

// Interface conformance.
var _ Store = (*Memory)(nil)
var _ Store = (*SQL)(nil)
