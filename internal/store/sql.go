package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wsio/wsio/internal/database"
	"github.com/wsio/wsio/internal/errs"
)

// SQL is the database-backed Store. It works over any database.DB driver;
// UUIDs travel as strings so postgres and mysql scan identically.
// MySQL DSNs must set parseTime=true so DATETIME columns scan into time.Time.
type SQL struct {
	db database.DB
}

// NewSQL wraps a database driver in a Store.
func NewSQL(db database.DB) *SQL {
	return &SQL{db: db}
}

// --- users ---

func (s *SQL) CreateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Created.IsZero() {
		u.Created = time.Now().UTC()
	}
	// Email is nullable so accounts without one never trip the unique
	// index: NULL is exempt from UNIQUE in both dialects.
	var email any
	if u.Email != "" {
		email = u.Email
	}
	return s.db.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, created) VALUES (?, ?, ?, ?, ?)`,
		u.ID.String(), u.Username, email, u.PasswordHash, u.Created)
}

func (s *SQL) UserByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created FROM users WHERE username = ?`,
		username))
}

func (s *SQL) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created FROM users WHERE id = ?`,
		id.String()))
}

func scanUser(row database.Row) (*User, error) {
	var (
		u     User
		rawID string
		email *string
	)
	if err := row.Scan(&rawID, &u.Username, &email, &u.PasswordHash, &u.Created); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed user id", err)
	}
	u.ID = id
	if email != nil {
		u.Email = *email
	}
	return &u, nil
}

// --- api keys ---

func (s *SQL) CreateAPIKey(ctx context.Context, k *APIKey) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	if k.Created.IsZero() {
		k.Created = time.Now().UTC()
	}
	return s.db.Exec(ctx,
		`INSERT INTO api_keys (id, key_id, secret_hash, user_id, created) VALUES (?, ?, ?, ?, ?)`,
		k.ID.String(), k.KeyID, k.SecretHash, k.UserID.String(), k.Created)
}

func (s *SQL) APIKeyByKeyID(ctx context.Context, keyID string) (*APIKey, error) {
	var (
		k                APIKey
		rawID, rawUserID string
	)
	row := s.db.QueryRow(ctx,
		`SELECT id, key_id, secret_hash, user_id, created FROM api_keys WHERE key_id = ?`,
		keyID)
	if err := row.Scan(&rawID, &k.KeyID, &k.SecretHash, &rawUserID, &k.Created); err != nil {
		return nil, err
	}
	var err error
	if k.ID, err = uuid.Parse(rawID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed api key id", err)
	}
	if k.UserID, err = uuid.Parse(rawUserID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed user id", err)
	}
	return &k, nil
}

// --- nodes ---

const nodeColumns = `id, name, kind, endpoint, access_key, secret_key, region, sts_endpoint, assume_role_arn, creator_id, created`

func (s *SQL) CreateNode(ctx context.Context, n *Node) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Created.IsZero() {
		n.Created = time.Now().UTC()
	}
	return s.db.Exec(ctx,
		`INSERT INTO storage_nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.Name, string(n.Kind), n.Endpoint, n.AccessKey, n.SecretKey,
		n.Region, n.STSEndpoint, n.AssumeRoleARN, n.CreatorID.String(), n.Created)
}

func (s *SQL) NodeByName(ctx context.Context, name string) (*Node, error) {
	return scanNode(s.db.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM storage_nodes WHERE name = ?`, name))
}

func (s *SQL) NodeByID(ctx context.Context, id uuid.UUID) (*Node, error) {
	return scanNode(s.db.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM storage_nodes WHERE id = ?`, id.String()))
}

func (s *SQL) ListNodes(ctx context.Context) ([]*Node, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+nodeColumns+` FROM storage_nodes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *SQL) DeleteNode(ctx context.Context, name string) error {
	return s.db.Exec(ctx, `DELETE FROM storage_nodes WHERE name = ?`, name)
}

func scanNode(row database.Row) (*Node, error) {
	var (
		n                   Node
		rawID, rawCreatorID string
		kind                string
	)
	if err := row.Scan(&rawID, &n.Name, &kind, &n.Endpoint, &n.AccessKey, &n.SecretKey,
		&n.Region, &n.STSEndpoint, &n.AssumeRoleARN, &rawCreatorID, &n.Created); err != nil {
		return nil, err
	}
	var err error
	if n.ID, err = uuid.Parse(rawID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed node id", err)
	}
	if n.CreatorID, err = uuid.Parse(rawCreatorID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed creator id", err)
	}
	n.Kind = BackendKind(kind)
	return &n, nil
}

// --- roots ---

const rootColumns = `id, node_id, root_type, bucket, base_path, created`

func (s *SQL) CreateRoot(ctx context.Context, r *Root) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Created.IsZero() {
		r.Created = time.Now().UTC()
	}
	return s.db.Exec(ctx,
		`INSERT INTO workspace_roots (`+rootColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.NodeID.String(), string(r.Type), r.Bucket, r.BasePath, r.Created)
}

func (s *SQL) RootByID(ctx context.Context, id uuid.UUID) (*Root, error) {
	return scanRoot(s.db.QueryRow(ctx,
		`SELECT `+rootColumns+` FROM workspace_roots WHERE id = ?`, id.String()))
}

func (s *SQL) ListRoots(ctx context.Context) ([]*Root, error) {
	return s.queryRoots(ctx,
		`SELECT `+rootColumns+` FROM workspace_roots ORDER BY bucket, base_path`)
}

func (s *SQL) ListRootsByNode(ctx context.Context, nodeID uuid.UUID) ([]*Root, error) {
	return s.queryRoots(ctx,
		`SELECT `+rootColumns+` FROM workspace_roots WHERE node_id = ? ORDER BY bucket, base_path`,
		nodeID.String())
}

func (s *SQL) queryRoots(ctx context.Context, sql string, args ...any) ([]*Root, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roots []*Root
	for rows.Next() {
		r, err := scanRoot(rows)
		if err != nil {
			return nil, err
		}
		roots = append(roots, r)
	}
	return roots, rows.Err()
}

func scanRoot(row database.Row) (*Root, error) {
	var (
		r                Root
		rawID, rawNodeID string
		rootType         string
	)
	if err := row.Scan(&rawID, &rawNodeID, &rootType, &r.Bucket, &r.BasePath, &r.Created); err != nil {
		return nil, err
	}
	var err error
	if r.ID, err = uuid.Parse(rawID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed root id", err)
	}
	if r.NodeID, err = uuid.Parse(rawNodeID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed node id", err)
	}
	r.Type = RootType(rootType)
	return &r, nil
}

// --- workspaces ---

const workspaceColumns = `id, name, owner_id, root_id, base_path, created`

func (s *SQL) CreateWorkspace(ctx context.Context, w *Workspace) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Created.IsZero() {
		w.Created = time.Now().UTC()
	}
	return s.db.Exec(ctx,
		`INSERT INTO workspaces (`+workspaceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID.String(), w.Name, w.OwnerID.String(), w.RootID.String(), w.BasePath, w.Created)
}

func (s *SQL) WorkspaceByID(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	return scanWorkspace(s.db.QueryRow(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`, id.String()))
}

func (s *SQL) ListWorkspaces(ctx context.Context, f WorkspaceFilter) ([]*Workspace, error) {
	sql := `SELECT ` + workspaceColumns + ` FROM workspaces`
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != nil {
		conds = append(conds, `owner_id = ?`)
		args = append(args, f.OwnerID.String())
	}
	if f.Name != "" {
		conds = append(conds, `name = ?`)
		args = append(args, f.Name)
	}
	if f.Like != "" {
		conds = append(conds, `name LIKE ?`)
		args = append(args, "%"+f.Like+"%")
	}
	for i, c := range conds {
		if i == 0 {
			sql += ` WHERE ` + c
		} else {
			sql += ` AND ` + c
		}
	}
	sql += ` ORDER BY created`

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []*Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		workspaces = append(workspaces, w)
	}
	return workspaces, rows.Err()
}

func (s *SQL) DeleteWorkspace(ctx context.Context, id uuid.UUID) error {
	return s.db.Exec(ctx, `DELETE FROM workspaces WHERE id = ?`, id.String())
}

func scanWorkspace(row database.Row) (*Workspace, error) {
	var (
		w                            Workspace
		rawID, rawOwnerID, rawRootID string
	)
	if err := row.Scan(&rawID, &w.Name, &rawOwnerID, &rawRootID, &w.BasePath, &w.Created); err != nil {
		return nil, err
	}
	var err error
	if w.ID, err = uuid.Parse(rawID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed workspace id", err)
	}
	if w.OwnerID, err = uuid.Parse(rawOwnerID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed owner id", err)
	}
	if w.RootID, err = uuid.Parse(rawRootID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed root id", err)
	}
	return &w, nil
}

// --- shares ---

func (s *SQL) CreateShare(ctx context.Context, sh *Share) error {
	if sh.ID == uuid.Nil {
		sh.ID = uuid.New()
	}
	if sh.Created.IsZero() {
		sh.Created = time.Now().UTC()
	}
	return s.db.Exec(ctx,
		`INSERT INTO shares (id, workspace_id, creator_id, sharee_id, permission, expiration, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sh.ID.String(), sh.WorkspaceID.String(), sh.CreatorID.String(), sh.ShareeID.String(),
		string(sh.Permission), sh.Expiration, sh.Created)
}

func (s *SQL) ShareFor(ctx context.Context, workspaceID, shareeID uuid.UUID) (*Share, error) {
	var (
		sh                                               Share
		rawID, rawWorkspaceID, rawCreatorID, rawShareeID string
		permission                                       string
	)
	// Different creators may grant the same sharee different levels;
	// the strongest grant wins.
	row := s.db.QueryRow(ctx,
		`SELECT id, workspace_id, creator_id, sharee_id, permission, expiration, created
		 FROM shares WHERE workspace_id = ? AND sharee_id = ?
		 ORDER BY CASE permission WHEN 'own' THEN 3 WHEN 'write' THEN 2 ELSE 1 END DESC
		 LIMIT 1`,
		workspaceID.String(), shareeID.String())
	if err := row.Scan(&rawID, &rawWorkspaceID, &rawCreatorID, &rawShareeID,
		&permission, &sh.Expiration, &sh.Created); err != nil {
		return nil, err
	}
	var err error
	if sh.ID, err = uuid.Parse(rawID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed share id", err)
	}
	if sh.WorkspaceID, err = uuid.Parse(rawWorkspaceID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed workspace id", err)
	}
	if sh.CreatorID, err = uuid.Parse(rawCreatorID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed creator id", err)
	}
	if sh.ShareeID, err = uuid.Parse(rawShareeID); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "malformed sharee id", err)
	}
	sh.Permission = SharePermission(permission)
	return &sh, nil
}
