// Package workspace implements workspace lifecycle and sharing on top of
// the metadata store. A workspace is a directory-like prefix inside a
// root; the service computes its storage path from the root's base path,
// the owner and the workspace name.
package workspace

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/store"
)

// Service owns workspace creation, listing, deletion and sharing.
type Service struct {
	store store.Store
}

// NewService creates a workspace Service over the metadata store.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// CreateRequest describes a workspace to create.
type CreateRequest struct {
	Name string

	// RootType selects which kind of root hosts the workspace. Defaults
	// to private.
	RootType store.RootType

	// RootID pins the workspace to a specific root. When zero the first
	// root of the requested type is used.
	RootID uuid.UUID

	// BasePath maps an externally-managed prefix; only valid for
	// unmanaged roots.
	BasePath string
}

// Create persists a new workspace for owner. Names are unique per owner;
// a second workspace with the same name fails with a duplicate error and
// leaves the first untouched.
func (s *Service) Create(ctx context.Context, owner *store.User, req CreateRequest) (*store.Workspace, error) {
	if req.Name == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "workspace name is required")
	}
	if strings.ContainsAny(req.Name, "/\\") {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "workspace name %q may not contain path separators", req.Name)
	}
	if req.RootType == "" {
		req.RootType = store.RootPrivate
	}

	root, err := s.pickRoot(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.BasePath != "" && root.Type != store.RootUnmanaged {
		return nil, errs.New(errs.ErrKindInvalidInput,
			"explicit base path is only valid in an unmanaged root")
	}
	if root.Type == store.RootUnmanaged && req.BasePath == "" {
		return nil, errs.New(errs.ErrKindInvalidInput,
			"workspaces in an unmanaged root need a base path")
	}

	w := &store.Workspace{
		Name:     req.Name,
		OwnerID:  owner.ID,
		RootID:   root.ID,
		BasePath: req.BasePath,
	}
	if err := s.store.CreateWorkspace(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) pickRoot(ctx context.Context, req CreateRequest) (*store.Root, error) {
	if req.RootID != uuid.Nil {
		return s.store.RootByID(ctx, req.RootID)
	}

	roots, err := s.store.ListRoots(ctx)
	if err != nil {
		return nil, err
	}
	for _, root := range roots {
		if root.Type == req.RootType {
			return root, nil
		}
	}
	return nil, errs.Newf(errs.ErrKindNotFound, "no %s root is registered", req.RootType)
}

// Get returns the workspace by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*store.Workspace, error) {
	return s.store.WorkspaceByID(ctx, id)
}

// List returns the workspaces visible to user: their own plus, when like
// is non-empty, any workspace whose name contains it.
func (s *Service) List(ctx context.Context, user *store.User, like string) ([]*store.Workspace, error) {
	f := store.WorkspaceFilter{Like: like}
	if like == "" {
		f.OwnerID = &user.ID
	}
	return s.store.ListWorkspaces(ctx, f)
}

// Delete removes a workspace. Only the owner or a sharee holding an own
// grant may delete.
func (s *Service) Delete(ctx context.Context, user *store.User, id uuid.UUID) error {
	w, err := s.store.WorkspaceByID(ctx, id)
	if err != nil {
		return err
	}

	perm, err := s.Permission(ctx, user, w)
	if err != nil {
		return err
	}
	if perm != store.ShareOwn {
		return errs.Newf(errs.ErrKindPermissionDenied,
			"user %s may not delete workspace %s", user.Username, w.Name)
	}

	return s.store.DeleteWorkspace(ctx, id)
}

// Share grants sharee access to a workspace. Only a user with an own
// grant on the workspace may share it.
func (s *Service) Share(ctx context.Context, creator *store.User, workspaceID, shareeID uuid.UUID, perm store.SharePermission, expiration *time.Time) (*store.Share, error) {
	switch perm {
	case store.ShareRead, store.ShareWrite, store.ShareOwn:
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown share permission %q", perm)
	}

	w, err := s.store.WorkspaceByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	creatorPerm, err := s.Permission(ctx, creator, w)
	if err != nil {
		return nil, err
	}
	if creatorPerm != store.ShareOwn {
		return nil, errs.Newf(errs.ErrKindPermissionDenied,
			"user %s may not share workspace %s", creator.Username, w.Name)
	}

	if _, err := s.store.UserByID(ctx, shareeID); err != nil {
		return nil, err
	}

	share := &store.Share{
		WorkspaceID: workspaceID,
		CreatorID:   creator.ID,
		ShareeID:    shareeID,
		Permission:  perm,
		Expiration:  expiration,
	}
	if err := s.store.CreateShare(ctx, share); err != nil {
		return nil, err
	}
	return share, nil
}

// Permission computes user's effective permission on w: owners hold own,
// sharees hold their unexpired grant, and anyone holds read in a public
// root. Everything else is a permission denied error.
func (s *Service) Permission(ctx context.Context, user *store.User, w *store.Workspace) (store.SharePermission, error) {
	if w.OwnerID == user.ID {
		return store.ShareOwn, nil
	}

	share, err := s.store.ShareFor(ctx, w.ID, user.ID)
	switch {
	case err == nil:
		if share.Expiration != nil && share.Expiration.Before(time.Now()) {
			break
		}
		return share.Permission, nil
	case !errs.IsNotFound(err):
		return "", err
	}

	root, err := s.store.RootByID(ctx, w.RootID)
	if err != nil {
		return "", err
	}
	if root.Type == store.RootPublic {
		return store.ShareRead, nil
	}

	return "", errs.Newf(errs.ErrKindPermissionDenied,
		"user %s has no access to workspace %s", user.Username, w.Name)
}

// Authorize checks user's access to the object at subPath inside root.
// subPath is relative to the root's base path. Reads in a public root
// are open to everyone; everything else needs a sufficient grant on the
// workspace whose prefix contains the path. Paths outside any workspace
// grant nothing.
func (s *Service) Authorize(ctx context.Context, user *store.User, root *store.Root, subPath string, need store.SharePermission) error {
	if root.Type == store.RootPublic && store.ShareRead.Covers(need) {
		return nil
	}

	w, err := s.workspaceForPath(ctx, root, subPath)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.Newf(errs.ErrKindPermissionDenied,
				"no workspace grants user %s access to %q", user.Username, subPath)
		}
		return err
	}

	perm, err := s.Permission(ctx, user, w)
	if err != nil {
		return err
	}
	if !perm.Covers(need) {
		return errs.Newf(errs.ErrKindPermissionDenied,
			"user %s holds %s on workspace %s, %s required", user.Username, perm, w.Name, need)
	}
	return nil
}

// workspaceForPath finds the workspace whose prefix contains subPath.
// Managed roots lay workspaces out as <owner>/<name>/; unmanaged roots
// match the workspace's recorded base path.
func (s *Service) workspaceForPath(ctx context.Context, root *store.Root, subPath string) (*store.Workspace, error) {
	if root.Type == store.RootUnmanaged {
		all, err := s.store.ListWorkspaces(ctx, store.WorkspaceFilter{})
		if err != nil {
			return nil, err
		}
		for _, w := range all {
			if w.RootID == root.ID && strings.HasPrefix(subPath, ensureSlash(w.BasePath)) {
				return w, nil
			}
		}
		return nil, errs.Newf(errs.ErrKindNotFound, "no workspace maps %q", subPath)
	}

	ownerName, rest, ok := strings.Cut(subPath, "/")
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "path %q is outside any workspace", subPath)
	}
	name, _, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		return nil, errs.Newf(errs.ErrKindNotFound, "path %q is outside any workspace", subPath)
	}

	owner, err := s.store.UserByUsername(ctx, ownerName)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListWorkspaces(ctx, store.WorkspaceFilter{OwnerID: &owner.ID, Name: name})
	if err != nil {
		return nil, err
	}
	for _, w := range list {
		if w.RootID == root.ID {
			return w, nil
		}
	}
	return nil, errs.Newf(errs.ErrKindNotFound, "workspace %s/%s not found in root", ownerName, name)
}

// Path returns the logical storage path of the workspace, ending in "/".
// Managed workspaces live at <base_path><owner>/<name>/ inside their
// root's bucket; unmanaged workspaces use their own recorded base path.
func (s *Service) Path(ctx context.Context, w *store.Workspace) (string, error) {
	root, err := s.store.RootByID(ctx, w.RootID)
	if err != nil {
		return "", err
	}

	if root.Type == store.RootUnmanaged {
		return root.Bucket + "/" + ensureSlash(root.BasePath+w.BasePath), nil
	}

	owner, err := s.store.UserByID(ctx, w.OwnerID)
	if err != nil {
		return "", err
	}
	return root.Bucket + "/" + root.BasePath + owner.Username + "/" + w.Name + "/", nil
}

func ensureSlash(p string) string {
	if p == "" || strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
