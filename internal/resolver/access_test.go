package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsio/wsio/internal/creds"
	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/filestore"
	"github.com/wsio/wsio/internal/store"
)

// countingExchanger issues a fresh numbered token on every exchange.
type countingExchanger struct {
	calls int
}

func (e *countingExchanger) Exchange(ctx context.Context, node *store.Node) (*creds.Session, error) {
	e.calls++
	return &creds.Session{
		AccessKey:    "tmpAK",
		SecretKey:    "tmpSK",
		SessionToken: fmt.Sprintf("tok%d", e.calls),
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

// fakeBackend accepts only tokens in validTokens; everything else is
// rejected as permission denied. It records every call.
type fakeBackend struct {
	token       string
	validTokens map[string]bool
	calls       *int
	objects     map[string][]byte // bucket/key -> content
}

func (f *fakeBackend) check() error {
	*f.calls++
	if f.validTokens != nil && !f.validTokens[f.token] {
		return errs.New(errs.ErrKindPermissionDenied, "token rejected")
	}
	return nil
}

func (f *fakeBackend) Ping(ctx context.Context) error { return f.check() }
func (f *fakeBackend) Close() error                   { return nil }

func (f *fakeBackend) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	return nil, f.check()
}

func (f *fakeBackend) EnsureBucket(ctx context.Context, bucket string) error {
	return f.check()
}

func (f *fakeBackend) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return []filestore.ObjectInfo{{Key: opts.Prefix + "a.txt"}}, nil
}

type fakeObject struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *fakeObject) Info() *filestore.ObjectInfo { return o.info }

func (f *fakeBackend) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	content, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no object %s/%s", bucket, key)
	}
	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(content)),
		info:       &filestore.ObjectInfo{Key: key, Size: int64(len(content))},
	}, nil
}

func (f *fakeBackend) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	content, _ := io.ReadAll(body)
	f.objects[bucket+"/"+key] = content
	return &filestore.ObjectInfo{Key: key, Size: int64(len(content)), ContentType: contentType}, nil
}

func (f *fakeBackend) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return &filestore.ObjectInfo{Key: key}, nil
}

func (f *fakeBackend) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := f.check(); err != nil {
		return err
	}
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeBackend) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := f.check(); err != nil {
		return "", err
	}
	return "https://signed/" + bucket + "/" + key, nil
}

func (f *fakeBackend) PresignPutURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := f.check(); err != nil {
		return "", err
	}
	return "https://signed-put/" + bucket + "/" + key, nil
}

// accessFixture wires an Access over a memory store with one cloud node
// and one root bucket1/shared/.
type accessFixture struct {
	access    *Access
	exchanger *countingExchanger
	opCalls   int
	objects   map[string][]byte
}

func newAccessFixture(t *testing.T, validTokens map[string]bool) *accessFixture {
	t.Helper()
	ctx := context.Background()

	m := store.NewMemory()
	r := New(m, nil)
	require.NoError(t, r.CreateNode(ctx, &store.Node{
		Name: "cloud1", Kind: store.BackendS3,
		Endpoint:  "https://s3.us-east-1.amazonaws.com",
		AccessKey: "AK", SecretKey: "SK", Region: "us-east-1",
		AssumeRoleARN: "arn:aws:iam::123:role/workspaces",
	}))
	require.NoError(t, r.CreateRoot(ctx, "cloud1",
		&store.Root{Type: store.RootPublic, Bucket: "bucket1", BasePath: "shared/"}))

	fx := &accessFixture{
		exchanger: &countingExchanger{},
		objects:   map[string][]byte{"bucket1/shared/doc.txt": []byte("hello")},
	}

	factory := func(ctx context.Context, node *store.Node, session *creds.Session) (filestore.Store, error) {
		token := ""
		if session != nil {
			token = session.SessionToken
		}
		return &fakeBackend{
			token:       token,
			validTokens: validTokens,
			calls:       &fx.opCalls,
			objects:     fx.objects,
		}, nil
	}

	fx.access = NewAccess(r, creds.NewCache(fx.exchanger), factory)
	return fx
}

func TestAccess_UsesSessionCredentials(t *testing.T) {
	fx := newAccessFixture(t, nil) // all tokens accepted

	obj, err := fx.access.Get(context.Background(), "bucket1/shared/doc.txt")
	require.NoError(t, err)
	defer obj.Close()

	content, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.Equal(t, 1, fx.exchanger.calls)
}

func TestAccess_ExpiredTokenRetriesExactlyOnce(t *testing.T) {
	// First issued token is stale; only the re-exchanged one works.
	fx := newAccessFixture(t, map[string]bool{"tok2": true})

	obj, err := fx.access.Get(context.Background(), "bucket1/shared/doc.txt")
	require.NoError(t, err)
	defer obj.Close()

	assert.Equal(t, 2, fx.exchanger.calls, "one initial exchange plus one renewal")
	assert.Equal(t, 2, fx.opCalls, "original call plus exactly one retry")
}

func TestAccess_PersistentRejectionIsCredentialExchangeError(t *testing.T) {
	fx := newAccessFixture(t, map[string]bool{}) // every token rejected

	_, err := fx.access.Get(context.Background(), "bucket1/shared/doc.txt")
	require.Error(t, err)
	assert.True(t, errs.IsCredentialExchange(err))
	assert.Equal(t, 2, fx.opCalls, "no second retry after the fresh exchange fails")
}

func TestAccess_NoMatchingRoot(t *testing.T) {
	fx := newAccessFixture(t, nil)

	_, err := fx.access.Get(context.Background(), "bucket1/other/doc.txt")
	assert.True(t, errs.IsNoMatchingRoot(err))
	assert.Zero(t, fx.opCalls)
}

func TestAccess_CreateRootEnsuresBucket(t *testing.T) {
	ctx := context.Background()
	fx := newAccessFixture(t, nil)

	err := fx.access.CreateRoot(ctx, "cloud1",
		&store.Root{Type: store.RootPrivate, Bucket: "bucket2", BasePath: ""})
	require.NoError(t, err)
	assert.Equal(t, 1, fx.opCalls, "bucket is ensured on the backend")

	err = fx.access.CreateRoot(ctx, "missing",
		&store.Root{Type: store.RootPrivate, Bucket: "bucket3"})
	assert.True(t, errs.IsNotFound(err))
}

func TestAccess_PutListDelete(t *testing.T) {
	ctx := context.Background()
	fx := newAccessFixture(t, nil)

	info, err := fx.access.Put(ctx, "bucket1/shared/new.txt", bytes.NewReader([]byte("data")), 4, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size)
	assert.Contains(t, fx.objects, "bucket1/shared/new.txt")

	objects, err := fx.access.List(ctx, "bucket1/shared/", true, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, objects)

	require.NoError(t, fx.access.Delete(ctx, "bucket1/shared/new.txt"))
	assert.NotContains(t, fx.objects, "bucket1/shared/new.txt")
}

func TestAccess_PresignURLs(t *testing.T) {
	ctx := context.Background()
	fx := newAccessFixture(t, nil)

	url, err := fx.access.PresignGet(ctx, "bucket1/shared/doc.txt", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/bucket1/shared/doc.txt", url)

	url, err = fx.access.PresignPut(ctx, "bucket1/shared/up.txt", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://signed-put/bucket1/shared/up.txt", url)
}
