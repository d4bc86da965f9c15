// Package store defines the metadata entities (users, storage nodes,
// workspace roots, workspaces, shares) and the Store interface that
// persists them. The SQL implementation works over any database.DB
// driver; Memory is an in-process implementation used in tests.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BackendKind identifies which object storage driver serves a node.
type BackendKind string

const (
	// BackendMinIO is a self-hosted S3-compatible instance.
	BackendMinIO BackendKind = "minio"

	// BackendS3 is a cloud provider bucket reached through temporary
	// credentials from a secure-token exchange.
	BackendS3 BackendKind = "s3"
)

// RootType defines the naming convention and access pattern for
// workspaces in a root.
//
//	public    allows read access by default
//	private   allows only the creator and sharees
//	unmanaged maps externally-managed prefixes into the application
type RootType string

const (
	RootPublic    RootType = "public"
	RootPrivate   RootType = "private"
	RootUnmanaged RootType = "unmanaged"
)

// SharePermission is the level of access granted by a share.
type SharePermission string

const (
	ShareRead  SharePermission = "read"
	ShareWrite SharePermission = "write"
	ShareOwn   SharePermission = "own"
)

// Covers reports whether p grants at least need. Permissions are
// ordered own > write > read.
func (p SharePermission) Covers(need SharePermission) bool {
	return p.rank() >= need.rank()
}

func (p SharePermission) rank() int {
	switch p {
	case ShareOwn:
		return 3
	case ShareWrite:
		return 2
	case ShareRead:
		return 1
	default:
		return 0
	}
}

// User is an account that owns workspaces and API keys.
// Email is optional; when set it is unique across accounts.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Created      time.Time
}

// APIKey is a long-lived credential for the command line.
// The secret is bcrypt-hashed; only the hash is stored.
type APIKey struct {
	ID         uuid.UUID
	KeyID      string
	SecretHash string
	UserID     uuid.UUID
	Created    time.Time
}

// Node is a named, authenticated binding to one object storage backend.
type Node struct {
	ID        uuid.UUID
	Name      string
	Kind      BackendKind
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string

	// STSEndpoint is an optional separate token-exchange endpoint.
	// Empty means the exchange goes to the node endpoint itself, or to
	// the regional cloud STS endpoint when AssumeRoleARN is set.
	STSEndpoint string

	// AssumeRoleARN is the role assumed when exchanging for temporary
	// credentials on cloud-backed nodes.
	AssumeRoleARN string

	CreatorID uuid.UUID
	Created   time.Time
}

// Root is a bucket plus optional base path that defines a boundary of
// control for the application. A root binds to exactly one node.
type Root struct {
	ID       uuid.UUID
	NodeID   uuid.UUID
	Type     RootType
	Bucket   string
	BasePath string
	Created  time.Time
}

// Workspace is a directory-like prefix inside a root, owned by a user.
// Workspace names are unique per owner.
type Workspace struct {
	ID      uuid.UUID
	Name    string
	OwnerID uuid.UUID
	RootID  uuid.UUID

	// BasePath is set only for workspaces in unmanaged roots.
	BasePath string

	Created time.Time
}

// Share grants another user access to a workspace.
type Share struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	CreatorID   uuid.UUID
	ShareeID    uuid.UUID
	Permission  SharePermission
	Expiration  *time.Time
	Created     time.Time
}

// WorkspaceFilter narrows ListWorkspaces results.
type WorkspaceFilter struct {
	OwnerID *uuid.UUID
	Name    string // exact match when non-empty
	Like    string // substring match when non-empty
}

// Store persists all metadata entities. Configuration mutations happen
// only through administrative action; the request path only reads.
// Uniqueness constraints surface as errs.ErrKindDuplicate.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByUsername(ctx context.Context, username string) (*User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)

	CreateAPIKey(ctx context.Context, k *APIKey) error
	APIKeyByKeyID(ctx context.Context, keyID string) (*APIKey, error)

	CreateNode(ctx context.Context, n *Node) error
	NodeByName(ctx context.Context, name string) (*Node, error)
	NodeByID(ctx context.Context, id uuid.UUID) (*Node, error)
	ListNodes(ctx context.Context) ([]*Node, error)
	DeleteNode(ctx context.Context, name string) error

	CreateRoot(ctx context.Context, r *Root) error
	RootByID(ctx context.Context, id uuid.UUID) (*Root, error)
	ListRoots(ctx context.Context) ([]*Root, error)
	ListRootsByNode(ctx context.Context, nodeID uuid.UUID) ([]*Root, error)

	CreateWorkspace(ctx context.Context, w *Workspace) error
	WorkspaceByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	ListWorkspaces(ctx context.Context, f WorkspaceFilter) ([]*Workspace, error)
	DeleteWorkspace(ctx context.Context, id uuid.UUID) error

	CreateShare(ctx context.Context, s *Share) error

	// ShareFor returns the grant on the workspace for the sharee. Grants
	// from different creators may coexist; the strongest one wins.
	ShareFor(ctx context.Context, workspaceID, shareeID uuid.UUID) (*Share, error)
}
