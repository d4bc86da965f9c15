package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wsio/wsio/internal/errs"
)

// Memory is an in-process Store used in tests and local development.
// It enforces the same uniqueness rules as the SQL schema.
type Memory struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]*User
	apiKeys    map[string]*APIKey
	nodes      map[uuid.UUID]*Node
	roots      map[uuid.UUID]*Root
	workspaces map[uuid.UUID]*Workspace
	shares     map[uuid.UUID]*Share
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		users:      make(map[uuid.UUID]*User),
		apiKeys:    make(map[string]*APIKey),
		nodes:      make(map[uuid.UUID]*Node),
		roots:      make(map[uuid.UUID]*Root),
		workspaces: make(map[uuid.UUID]*Workspace),
		shares:     make(map[uuid.UUID]*Share),
	}
}

func fill(id *uuid.UUID, created *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if created.IsZero() {
		*created = time.Now().UTC()
	}
}

// --- users ---

func (m *Memory) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		// Email is optional: only non-empty emails collide.
		if existing.Username == u.Username || (u.Email != "" && existing.Email == u.Email) {
			return errs.Newf(errs.ErrKindDuplicate, "user %q already exists", u.Username)
		}
	}
	fill(&u.ID, &u.Created)
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) UserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errs.Newf(errs.ErrKindNotFound, "user %q not found", username)
}

func (m *Memory) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "user %s not found", id)
	}
	cp := *u
	return &cp, nil
}

// --- api keys ---

func (m *Memory) CreateAPIKey(ctx context.Context, k *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apiKeys[k.KeyID]; ok {
		return errs.Newf(errs.ErrKindDuplicate, "api key %q already exists", k.KeyID)
	}
	fill(&k.ID, &k.Created)
	cp := *k
	m.apiKeys[k.KeyID] = &cp
	return nil
}

func (m *Memory) APIKeyByKeyID(ctx context.Context, keyID string) (*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.apiKeys[keyID]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "api key not found")
	}
	cp := *k
	return &cp, nil
}

// --- nodes ---

func (m *Memory) CreateNode(ctx context.Context, n *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.nodes {
		if existing.Name == n.Name {
			return errs.Newf(errs.ErrKindDuplicate, "node %q already exists", n.Name)
		}
	}
	fill(&n.ID, &n.Created)
	cp := *n
	m.nodes[n.ID] = &cp
	return nil
}

func (m *Memory) NodeByName(ctx context.Context, name string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.nodes {
		if n.Name == name {
			cp := *n
			return &cp, nil
		}
	}
	return nil, errs.Newf(errs.ErrKindNotFound, "node %q not found", name)
}

func (m *Memory) NodeByID(ctx context.Context, id uuid.UUID) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "node %s not found", id)
	}
	cp := *n
	return &cp, nil
}

func (m *Memory) ListNodes(ctx context.Context) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodes := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		cp := *n
		nodes = append(nodes, &cp)
	}
	return nodes, nil
}

func (m *Memory) DeleteNode(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.nodes {
		if n.Name == name {
			delete(m.nodes, id)
			return nil
		}
	}
	return nil
}

// --- roots ---

func (m *Memory) CreateRoot(ctx context.Context, r *Root) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roots {
		if existing.NodeID == r.NodeID && existing.Bucket == r.Bucket && existing.BasePath == r.BasePath {
			return errs.Newf(errs.ErrKindDuplicate, "root %s/%s already exists", r.Bucket, r.BasePath)
		}
	}
	fill(&r.ID, &r.Created)
	cp := *r
	m.roots[r.ID] = &cp
	return nil
}

func (m *Memory) RootByID(ctx context.Context, id uuid.UUID) (*Root, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roots[id]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "root %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) ListRoots(ctx context.Context) ([]*Root, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roots := make([]*Root, 0, len(m.roots))
	for _, r := range m.roots {
		cp := *r
		roots = append(roots, &cp)
	}
	return roots, nil
}

func (m *Memory) ListRootsByNode(ctx context.Context, nodeID uuid.UUID) ([]*Root, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var roots []*Root
	for _, r := range m.roots {
		if r.NodeID == nodeID {
			cp := *r
			roots = append(roots, &cp)
		}
	}
	return roots, nil
}

// --- workspaces ---

func (m *Memory) CreateWorkspace(ctx context.Context, w *Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.workspaces {
		if existing.Name == w.Name && existing.OwnerID == w.OwnerID {
			return errs.Newf(errs.ErrKindDuplicate, "workspace %q already exists", w.Name)
		}
	}
	fill(&w.ID, &w.Created)
	cp := *w
	m.workspaces[w.ID] = &cp
	return nil
}

func (m *Memory) WorkspaceByID(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workspaces[id]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "workspace %s not found", id)
	}
	cp := *w
	return &cp, nil
}

func (m *Memory) ListWorkspaces(ctx context.Context, f WorkspaceFilter) ([]*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var workspaces []*Workspace
	for _, w := range m.workspaces {
		if f.OwnerID != nil && w.OwnerID != *f.OwnerID {
			continue
		}
		if f.Name != "" && w.Name != f.Name {
			continue
		}
		if f.Like != "" && !strings.Contains(w.Name, f.Like) {
			continue
		}
		cp := *w
		workspaces = append(workspaces, &cp)
	}
	return workspaces, nil
}

func (m *Memory) DeleteWorkspace(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workspaces, id)
	return nil
}

// --- shares ---

func (m *Memory) CreateShare(ctx context.Context, s *Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.shares {
		if existing.WorkspaceID == s.WorkspaceID && existing.CreatorID == s.CreatorID && existing.ShareeID == s.ShareeID {
			return errs.New(errs.ErrKindDuplicate, "share already exists")
		}
	}
	fill(&s.ID, &s.Created)
	cp := *s
	m.shares[s.ID] = &cp
	return nil
}

func (m *Memory) ShareFor(ctx context.Context, workspaceID, shareeID uuid.UUID) (*Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Share
	for _, s := range m.shares {
		if s.WorkspaceID != workspaceID || s.ShareeID != shareeID {
			continue
		}
		if best == nil || s.Permission.rank() > best.Permission.rank() {
			best = s
		}
	}
	if best == nil {
		return nil, errs.New(errs.ErrKindNotFound, "share not found")
	}
	cp := *best
	return &cp, nil
}
