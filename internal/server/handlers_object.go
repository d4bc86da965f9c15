package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wsio/wsio/internal/auth"
	"github.com/wsio/wsio/internal/filestore"
	"github.com/wsio/wsio/internal/index"
	"github.com/wsio/wsio/internal/logger"
	"github.com/wsio/wsio/internal/store"
)

// objectPath rebuilds the logical path from the route parameters.
func objectPath(r *http.Request) string {
	return chi.URLParam(r, "bucket") + "/" + chi.URLParam(r, "*")
}

// authorizeObject resolves the path and enforces workspace access before
// any storage call: reads need a read grant, writes a write grant.
func (s *Server) authorizeObject(r *http.Request, path string, need store.SharePermission) error {
	res, err := s.access.Resolver().Resolve(r.Context(), path)
	if err != nil {
		return err
	}
	return s.workspaces.Authorize(r.Context(), auth.UserFromContext(r.Context()), res.Root, res.SubPath, need)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	path := objectPath(r)
	if err := s.authorizeObject(r, path, store.ShareRead); err != nil {
		writeError(w, r, err)
		return
	}

	obj, err := s.access.Get(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer obj.Close()

	if info := obj.Info(); info != nil {
		if info.ContentType != "" {
			w.Header().Set("Content-Type", info.ContentType)
		}
		if info.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		}
	}
	_, _ = io.Copy(w, obj)
}

type objectInfoResponse struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Modified    time.Time `json:"modified"`
}

func toObjectInfoResponse(info *filestore.ObjectInfo) objectInfoResponse {
	return objectInfoResponse{
		Key:         info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
		Modified:    info.LastModified,
	}
}

func (s *Server) handleStatObject(w http.ResponseWriter, r *http.Request) {
	path := objectPath(r)
	if err := s.authorizeObject(r, path, store.ShareRead); err != nil {
		writeError(w, r, err)
		return
	}

	info, err := s.access.Stat(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	path := objectPath(r)
	if err := s.authorizeObject(r, path, store.ShareWrite); err != nil {
		writeError(w, r, err)
		return
	}

	info, err := s.access.Put(r.Context(), path, r.Body, r.ContentLength, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.indexObject(r, path, info)
	writeJSON(w, http.StatusCreated, toObjectInfoResponse(info))
}

// indexObject enqueues the written object for search indexing.
func (s *Server) indexObject(r *http.Request, path string, info *filestore.ObjectInfo) {
	if s.indexer == nil {
		return
	}

	res, err := s.access.Resolver().Resolve(r.Context(), path)
	if err != nil {
		return
	}
	modified := info.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	s.indexer.Enqueue(index.Document{
		Path:        path,
		Bucket:      res.Root.Bucket,
		Key:         res.Root.BasePath + res.SubPath,
		Node:        res.Node.Name,
		Size:        info.Size,
		ContentType: info.ContentType,
		Modified:    modified,
	})
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	path := objectPath(r)
	if err := s.authorizeObject(r, path, store.ShareWrite); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.access.Delete(r.Context(), path); err != nil {
		writeError(w, r, err)
		return
	}

	// Index cleanup is best effort: a stale document is corrected on the
	// next write, never worth failing the delete.
	if s.search != nil {
		if err := s.search.Delete(r.Context(), path); err != nil {
			logger.FromContext(r.Context()).With().
				Str("path", path).
				Err(err).
				Logger().
				Warn("failed to remove object from search index")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	recursive := r.URL.Query().Get("recursive") == "true"
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	path := objectPath(r)
	if err := s.authorizeObject(r, path, store.ShareRead); err != nil {
		writeError(w, r, err)
		return
	}

	objects, err := s.access.List(r.Context(), path, recursive, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]objectInfoResponse, len(objects))
	for i := range objects {
		out[i] = toObjectInfoResponse(&objects[i])
	}
	writeJSON(w, http.StatusOK, out)
}

const defaultPresignTTL = 15 * time.Minute

func presignTTL(r *http.Request) time.Duration {
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return defaultPresignTTL
}

type presignResponse struct {
	URL     string    `json:"url"`
	Expires time.Time `json:"expires"`
}

func (s *Server) handlePresignDownload(w http.ResponseWriter, r *http.Request) {
	path := objectPath(r)
	if err := s.authorizeObject(r, path, store.ShareRead); err != nil {
		writeError(w, r, err)
		return
	}

	ttl := presignTTL(r)
	url, err := s.access.PresignGet(r.Context(), path, ttl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{URL: url, Expires: time.Now().Add(ttl)})
}

func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	path := objectPath(r)
	if err := s.authorizeObject(r, path, store.ShareWrite); err != nil {
		writeError(w, r, err)
		return
	}

	ttl := presignTTL(r)
	url, err := s.access.PresignPut(r.Context(), path, ttl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{URL: url, Expires: time.Now().Add(ttl)})
}
