package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wsio/wsio/internal/auth"
	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/store"
	"github.com/wsio/wsio/internal/workspace"
)

type createWorkspaceRequest struct {
	Name     string `json:"name"`
	RootType string `json:"root_type"`
	RootID   string `json:"root_id"`
	BasePath string `json:"base_path"`
}

type workspaceResponse struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	OwnerID string    `json:"owner_id"`
	RootID  string    `json:"root_id"`
	Path    string    `json:"path,omitempty"`
	Created time.Time `json:"created"`
}

func (s *Server) toWorkspaceResponse(r *http.Request, w *store.Workspace) workspaceResponse {
	resp := workspaceResponse{
		ID:      w.ID.String(),
		Name:    w.Name,
		OwnerID: w.OwnerID.String(),
		RootID:  w.RootID.String(),
		Created: w.Created,
	}
	if path, err := s.workspaces.Path(r.Context(), w); err == nil {
		resp.Path = path
	}
	return resp
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	create := workspace.CreateRequest{
		Name:     req.Name,
		RootType: store.RootType(req.RootType),
		BasePath: req.BasePath,
	}
	if req.RootID != "" {
		id, err := uuid.Parse(req.RootID)
		if err != nil {
			writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "malformed root_id", err))
			return
		}
		create.RootID = id
	}

	ws, err := s.workspaces.Create(r.Context(), auth.UserFromContext(r.Context()), create)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.toWorkspaceResponse(r, ws))
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := s.workspaces.List(r.Context(), auth.UserFromContext(r.Context()), r.URL.Query().Get("like"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]workspaceResponse, len(list))
	for i, ws := range list {
		out[i] = s.toWorkspaceResponse(r, ws)
	}
	writeJSON(w, http.StatusOK, out)
}

func workspaceID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed workspace id", err)
	}
	return id, nil
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := workspaceID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ws, err := s.workspaces.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.workspaces.Permission(r.Context(), auth.UserFromContext(r.Context()), ws); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toWorkspaceResponse(r, ws))
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := workspaceID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.workspaces.Delete(r.Context(), auth.UserFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createShareRequest struct {
	ShareeID   string     `json:"sharee_id"`
	Permission string     `json:"permission"`
	Expiration *time.Time `json:"expiration"`
}

type shareResponse struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	ShareeID    string     `json:"sharee_id"`
	Permission  string     `json:"permission"`
	Expiration  *time.Time `json:"expiration,omitempty"`
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	id, err := workspaceID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	shareeID, err := uuid.Parse(req.ShareeID)
	if err != nil {
		writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "malformed sharee_id", err))
		return
	}

	share, err := s.workspaces.Share(r.Context(), auth.UserFromContext(r.Context()),
		id, shareeID, store.SharePermission(req.Permission), req.Expiration)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shareResponse{
		ID:          share.ID.String(),
		WorkspaceID: share.WorkspaceID.String(),
		ShareeID:    share.ShareeID.String(),
		Permission:  string(share.Permission),
		Expiration:  share.Expiration,
	})
}
