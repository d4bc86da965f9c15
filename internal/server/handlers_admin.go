package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wsio/wsio/internal/auth"
	"github.com/wsio/wsio/internal/store"
)

type createNodeRequest struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	STSAPIURL string `json:"sts_api_url"`
	RoleARN   string `json:"role_arn"`
}

// nodeResponse never carries the node's secret key.
type nodeResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Endpoint  string    `json:"endpoint"`
	Region    string    `json:"region"`
	STSAPIURL string    `json:"sts_api_url,omitempty"`
	RoleARN   string    `json:"role_arn,omitempty"`
	Created   time.Time `json:"created"`
}

func toNodeResponse(n *store.Node) nodeResponse {
	return nodeResponse{
		ID:        n.ID.String(),
		Name:      n.Name,
		Kind:      string(n.Kind),
		Endpoint:  n.Endpoint,
		Region:    n.Region,
		STSAPIURL: n.STSEndpoint,
		RoleARN:   n.AssumeRoleARN,
		Created:   n.Created,
	}
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	node := &store.Node{
		Name:          req.Name,
		Kind:          store.BackendKind(req.Kind),
		Endpoint:      req.Endpoint,
		AccessKey:     req.AccessKey,
		SecretKey:     req.SecretKey,
		Region:        req.Region,
		STSEndpoint:   req.STSAPIURL,
		AssumeRoleARN: req.RoleARN,
		CreatorID:     auth.UserFromContext(r.Context()).ID,
	}
	if err := s.access.Resolver().CreateNode(r.Context(), node); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNodeResponse(node))
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.store.ListNodes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]nodeResponse, len(nodes))
	for i, n := range nodes {
		out[i] = toNodeResponse(n)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.store.NodeByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNodeResponse(node))
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNode(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createRootRequest struct {
	RootType string `json:"root_type"`
	Bucket   string `json:"bucket"`
	BasePath string `json:"base_path"`
}

type rootResponse struct {
	ID       string    `json:"id"`
	NodeID   string    `json:"node_id"`
	RootType string    `json:"root_type"`
	Bucket   string    `json:"bucket"`
	BasePath string    `json:"base_path"`
	Created  time.Time `json:"created"`
}

func toRootResponse(root *store.Root) rootResponse {
	return rootResponse{
		ID:       root.ID.String(),
		NodeID:   root.NodeID.String(),
		RootType: string(root.Type),
		Bucket:   root.Bucket,
		BasePath: root.BasePath,
		Created:  root.Created,
	}
}

func (s *Server) handleCreateRoot(w http.ResponseWriter, r *http.Request) {
	var req createRootRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	root := &store.Root{
		Type:     store.RootType(req.RootType),
		Bucket:   req.Bucket,
		BasePath: req.BasePath,
	}
	if err := s.access.CreateRoot(r.Context(), chi.URLParam(r, "name"), root); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRootResponse(root))
}

func (s *Server) handleListRoots(w http.ResponseWriter, r *http.Request) {
	roots, err := s.store.ListRoots(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]rootResponse, len(roots))
	for i, root := range roots {
		out[i] = toRootResponse(root)
	}
	writeJSON(w, http.StatusOK, out)
}
