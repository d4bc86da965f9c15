package resolver

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/wsio/wsio/internal/creds"
	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/filestore"
	"github.com/wsio/wsio/internal/filestore/minio"
	"github.com/wsio/wsio/internal/filestore/s3"
	"github.com/wsio/wsio/internal/logger"
	"github.com/wsio/wsio/internal/metrics"
	"github.com/wsio/wsio/internal/store"
)

// BackendFactory builds a filestore driver for a node. session is nil for
// nodes using long-lived static keys.
type BackendFactory func(ctx context.Context, node *store.Node, session *creds.Session) (filestore.Store, error)

// DefaultBackendFactory selects the driver by the node's backend kind.
func DefaultBackendFactory(ctx context.Context, node *store.Node, session *creds.Session) (filestore.Store, error) {
	cfg := &filestore.Config{
		Endpoint:  node.Endpoint,
		AccessKey: node.AccessKey,
		SecretKey: node.SecretKey,
		Region:    node.Region,
	}
	if session != nil {
		cfg.AccessKey = session.AccessKey
		cfg.SecretKey = session.SecretKey
		cfg.SessionToken = session.SessionToken
	}

	switch node.Kind {
	case store.BackendS3:
		cfg.Provider = filestore.ProviderS3
		cfg.UseSSL = true
		return s3.New(ctx, cfg)
	default:
		// minio-go takes a bare host:port; the scheme decides TLS.
		cfg.Provider = filestore.ProviderMinIO
		if host, ok := strings.CutPrefix(cfg.Endpoint, "https://"); ok {
			cfg.Endpoint = host
			cfg.UseSSL = true
		} else if host, ok := strings.CutPrefix(cfg.Endpoint, "http://"); ok {
			cfg.Endpoint = host
		}
		return minio.New(ctx, cfg)
	}
}

// EndpointProber validates node endpoints by connecting with the node's
// static keys and pinging the backend.
type EndpointProber struct {
	Factory BackendFactory
}

// Probe implements Prober.
func (p *EndpointProber) Probe(ctx context.Context, node *store.Node) error {
	factory := p.Factory
	if factory == nil {
		factory = DefaultBackendFactory
	}
	backend, err := factory(ctx, node, nil)
	if err != nil {
		return err
	}
	defer backend.Close()
	return backend.Ping(ctx)
}

// Access mediates object storage operations: it resolves the logical path,
// obtains session credentials for nodes that use a token exchange, and
// delegates the call to the resolved backend.
//
// When a backend rejects a session token, the cached session is dropped,
// one fresh exchange is performed, and the call retried exactly once. A
// second rejection surfaces as a credential exchange error.
type Access struct {
	resolver *Resolver
	cache    *creds.Cache
	factory  BackendFactory
}

// NewAccess wires the access layer. factory may be nil to use
// DefaultBackendFactory.
func NewAccess(r *Resolver, cache *creds.Cache, factory BackendFactory) *Access {
	if factory == nil {
		factory = DefaultBackendFactory
	}
	return &Access{resolver: r, cache: cache, factory: factory}
}

// Resolver exposes the underlying resolver for administrative handlers.
func (a *Access) Resolver() *Resolver {
	return a.resolver
}

// CreateRoot registers a root and creates its backing bucket when the
// backend allows it. The bucket is ensured before the root is committed
// so a failed backend call leaves no root pointing at nothing.
func (a *Access) CreateRoot(ctx context.Context, nodeName string, root *store.Root) error {
	node, err := a.resolver.store.NodeByName(ctx, nodeName)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.Newf(errs.ErrKindNotFound, "unknown node %q", nodeName)
		}
		return err
	}

	var session *creds.Session
	if usesExchange(node) {
		if session, err = a.cache.Get(ctx, node); err != nil {
			return err
		}
	}
	backend, err := a.factory(ctx, node, session)
	if err != nil {
		return err
	}
	defer backend.Close()

	if root.Bucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "root bucket is required")
	}
	if err := backend.EnsureBucket(ctx, root.Bucket); err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed,
			"failed to ensure bucket "+root.Bucket+" on "+nodeName, err)
	}

	return a.resolver.CreateRoot(ctx, nodeName, root)
}

// usesExchange reports whether node credentials come from a token exchange.
// Cloud-backed nodes always exchange; self-hosted nodes only when a
// separate STS endpoint is configured.
func usesExchange(node *store.Node) bool {
	return node.Kind == store.BackendS3 || node.STSEndpoint != ""
}

// do resolves path and runs op against the backend, applying the
// retry-once credential discipline.
func (a *Access) do(ctx context.Context, opName, path string, op func(filestore.Store, *Resolution) error) error {
	start := time.Now()
	err := a.doOnce(ctx, path, op)
	metrics.ObserveStorageOp(opName, time.Since(start), err == nil)
	return err
}

func (a *Access) doOnce(ctx context.Context, path string, op func(filestore.Store, *Resolution) error) error {
	res, err := a.resolver.Resolve(ctx, path)
	if err != nil {
		return err
	}

	var session *creds.Session
	if usesExchange(res.Node) {
		session, err = a.cache.Get(ctx, res.Node)
		if err != nil {
			metrics.CountCredentialExchange(false)
			return err
		}
	}

	backend, err := a.factory(ctx, res.Node, session)
	if err != nil {
		return err
	}
	defer backend.Close()

	err = op(backend, res)
	if err == nil || !errs.IsPermissionDenied(err) || !usesExchange(res.Node) {
		return err
	}

	// Token rejected before its recorded expiry: exchange once and retry.
	logger.FromContext(ctx).With().
		Str("node", res.Node.Name).
		Err(err).
		Logger().
		Warn("session token rejected, re-exchanging")
	a.cache.Invalidate(res.Node)

	session, exErr := a.cache.Get(ctx, res.Node)
	if exErr != nil {
		metrics.CountCredentialExchange(false)
		return exErr
	}
	metrics.CountCredentialExchange(true)

	backend, err = a.factory(ctx, res.Node, session)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := op(backend, res); err != nil {
		if errs.IsPermissionDenied(err) {
			return errs.Wrap(errs.ErrKindCredentialExchange,
				"storage call failed after fresh token exchange", err)
		}
		return err
	}
	return nil
}

// storageKey is the object key inside the bucket: roots map a logical
// prefix onto the identical prefix of the bucket.
func storageKey(res *Resolution) string {
	return res.Root.BasePath + res.SubPath
}

// Get opens a streaming handle to the object at the logical path.
func (a *Access) Get(ctx context.Context, path string) (filestore.Object, error) {
	var obj filestore.Object
	err := a.do(ctx, "get", path, func(b filestore.Store, res *Resolution) error {
		var err error
		obj, err = b.GetObject(ctx, res.Root.Bucket, storageKey(res))
		return err
	})
	return obj, err
}

// Put uploads body to the logical path.
func (a *Access) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	var info *filestore.ObjectInfo
	err := a.do(ctx, "put", path, func(b filestore.Store, res *Resolution) error {
		var err error
		info, err = b.PutObject(ctx, res.Root.Bucket, storageKey(res), body, size, contentType)
		return err
	})
	return info, err
}

// Stat returns object metadata for the logical path.
func (a *Access) Stat(ctx context.Context, path string) (*filestore.ObjectInfo, error) {
	var info *filestore.ObjectInfo
	err := a.do(ctx, "stat", path, func(b filestore.Store, res *Resolution) error {
		var err error
		info, err = b.StatObject(ctx, res.Root.Bucket, storageKey(res))
		return err
	})
	return info, err
}

// List returns the objects under the logical path prefix.
func (a *Access) List(ctx context.Context, path string, recursive bool, limit int) ([]filestore.ObjectInfo, error) {
	var objects []filestore.ObjectInfo
	err := a.do(ctx, "list", path, func(b filestore.Store, res *Resolution) error {
		var err error
		objects, err = b.ListObjects(ctx, res.Root.Bucket, filestore.ListOptions{
			Prefix:    storageKey(res),
			Recursive: recursive,
			Limit:     limit,
		})
		return err
	})
	return objects, err
}

// Delete removes the object at the logical path.
func (a *Access) Delete(ctx context.Context, path string) error {
	return a.do(ctx, "delete", path, func(b filestore.Store, res *Resolution) error {
		return b.DeleteObject(ctx, res.Root.Bucket, storageKey(res))
	})
}

// PresignGet returns a time-limited download URL for the logical path.
func (a *Access) PresignGet(ctx context.Context, path string, ttl time.Duration) (string, error) {
	var url string
	err := a.do(ctx, "presign_get", path, func(b filestore.Store, res *Resolution) error {
		var err error
		url, err = b.PresignGetURL(ctx, res.Root.Bucket, storageKey(res), ttl)
		return err
	})
	return url, err
}

// PresignPut returns a time-limited upload URL for the logical path.
func (a *Access) PresignPut(ctx context.Context, path string, ttl time.Duration) (string, error) {
	var url string
	err := a.do(ctx, "presign_put", path, func(b filestore.Store, res *Resolution) error {
		var err error
		url, err = b.PresignPutURL(ctx, res.Root.Bucket, storageKey(res), ttl)
		return err
	})
	return url, err
}
