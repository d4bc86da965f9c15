// Package resolver maps logical workspace paths onto storage nodes and
// mediates all object storage access through whichever backend a root is
// bound to. It owns the administrative invariants: node names are unique,
// root base paths on one (node, bucket) never overlap, and path resolution
// is longest-prefix-match.
package resolver

import (
	"context"
	"strings"

	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/store"
)

// Prober validates that a node endpoint is reachable before the node is
// committed to the metadata store.
type Prober interface {
	Probe(ctx context.Context, node *store.Node) error
}

// Resolver implements node/root administration and path resolution over
// the metadata store. The store is the single source of truth — nothing
// is cached between requests.
type Resolver struct {
	store  store.Store
	prober Prober
}

// New creates a Resolver. prober may be nil, which skips endpoint probes
// (used in tests).
func New(s store.Store, prober Prober) *Resolver {
	return &Resolver{store: s, prober: prober}
}

// CreateNode validates the endpoint and persists a new storage node.
// The probe runs first so a failed validation commits no state.
func (r *Resolver) CreateNode(ctx context.Context, node *store.Node) error {
	if node.Name == "" {
		return errs.New(errs.ErrKindInvalidInput, "node name is required")
	}
	if node.Endpoint == "" {
		return errs.New(errs.ErrKindInvalidInput, "node endpoint is required")
	}
	if node.Kind == "" {
		node.Kind = store.BackendMinIO
	}
	if node.Region == "" {
		node.Region = "us-east-1"
	}

	if r.prober != nil {
		if err := r.prober.Probe(ctx, node); err != nil {
			return errs.Wrap(errs.ErrKindConnectionFailed,
				"endpoint validation failed for "+node.Endpoint, err)
		}
	}

	return r.store.CreateNode(ctx, node)
}

// CreateRoot persists a new workspace root after checking that its base
// path does not overlap an existing root on the same (node, bucket).
func (r *Resolver) CreateRoot(ctx context.Context, nodeName string, root *store.Root) error {
	if root.Bucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "root bucket is required")
	}
	if root.Type == "" {
		root.Type = store.RootPrivate
	}

	node, err := r.store.NodeByName(ctx, nodeName)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.Newf(errs.ErrKindNotFound, "unknown node %q", nodeName)
		}
		return err
	}
	root.NodeID = node.ID

	existing, err := r.store.ListRootsByNode(ctx, node.ID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.Bucket != root.Bucket {
			continue
		}
		if basePathsOverlap(other.BasePath, root.BasePath) {
			return errs.Newf(errs.ErrKindConflict,
				"base path %q overlaps existing root %q on %s/%s",
				root.BasePath, other.BasePath, nodeName, root.Bucket)
		}
	}

	return r.store.CreateRoot(ctx, root)
}

// Resolution is the result of mapping a logical path onto storage.
type Resolution struct {
	Node *store.Node
	Root *store.Root

	// SubPath is the object key relative to the root's base path.
	SubPath string
}

// Resolve maps a logical path of the form "<bucket>/<key…>" to the root
// with the longest matching base path and the node it is bound to.
func (r *Resolver) Resolve(ctx context.Context, logicalPath string) (*Resolution, error) {
	logicalPath = strings.TrimPrefix(logicalPath, "/")
	bucket, key, _ := strings.Cut(logicalPath, "/")
	if bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "path must start with a bucket")
	}

	roots, err := r.store.ListRoots(ctx)
	if err != nil {
		return nil, err
	}

	var best *store.Root
	for _, root := range roots {
		if root.Bucket != bucket {
			continue
		}
		if !strings.HasPrefix(key, root.BasePath) {
			continue
		}
		if best == nil || len(root.BasePath) > len(best.BasePath) {
			best = root
		}
	}
	if best == nil {
		return nil, errs.Newf(errs.ErrKindNoMatchingRoot, "no root matches %q", logicalPath)
	}

	node, err := r.store.NodeByID(ctx, best.NodeID)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Node:    node,
		Root:    best,
		SubPath: strings.TrimPrefix(key, best.BasePath),
	}, nil
}

// basePathsOverlap reports whether two base paths on the same
// (node, bucket) collide. An empty base path is the bucket's catch-all
// root: it coexists with scoped roots because longest-prefix resolution
// always prefers the scoped one, but two catch-alls collide.
func basePathsOverlap(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}
