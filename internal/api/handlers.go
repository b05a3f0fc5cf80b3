package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"fsguard/internal/guard"
	"fsguard/internal/safety"
	"fsguard/internal/scan"

	"github.com/rs/zerolog"
)

type handlers struct {
	guard    *guard.Guard
	scanner  *scan.Scanner
	reloader Reloader
	logger   zerolog.Logger
}

type validateRequest struct {
	Path string `json:"path"`
}

type duplicatesRequest struct {
	Root string `json:"root"`
	scan.Options
}

func (h *handlers) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.guard.Validate(req.Path)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, okResponse(res))
}

func (h *handlers) deleteFile(w http.ResponseWriter, r *http.Request) {
	var req guard.FileRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.guard.DeleteFile(r.Context(), req)
	h.writeOutcome(w, out, err)
}

func (h *handlers) deleteDirectory(w http.ResponseWriter, r *http.Request) {
	var req guard.DirRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.guard.DeleteDirectory(r.Context(), req)
	h.writeOutcome(w, out, err)
}

func (h *handlers) move(w http.ResponseWriter, r *http.Request) {
	var req guard.MoveRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.guard.Move(r.Context(), req)
	h.writeOutcome(w, out, err)
}

func (h *handlers) organize(w http.ResponseWriter, r *http.Request) {
	var req guard.OrganizeRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.guard.Organize(r.Context(), req)
	h.writeOutcome(w, out, err)
}

func (h *handlers) cleanup(w http.ResponseWriter, r *http.Request) {
	var req guard.CleanupRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.guard.Cleanup(r.Context(), req)
	h.writeOutcome(w, out, err)
}

func (h *handlers) duplicates(w http.ResponseWriter, r *http.Request) {
	var req duplicatesRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Root == "" {
		JSON(w, http.StatusBadRequest, errorResponse(CodeBadRequest, "root is required"))
		return
	}
	report, err := h.scanner.FindDuplicates(r.Context(), req.Root, req.Options)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, okResponse(report))
}

func (h *handlers) reload(w http.ResponseWriter, _ *http.Request) {
	if h.reloader == nil {
		JSON(w, http.StatusOK, okResponse(nil))
		return
	}
	if err := h.reloader.Reload(); err != nil {
		h.logger.Error().Err(err).Msg("config reload failed")
		JSON(w, http.StatusInternalServerError, errorResponse(CodeConfig, err.Error()))
		return
	}
	JSON(w, http.StatusOK, okResponse(nil))
}

func (h *handlers) writeOutcome(w http.ResponseWriter, out *guard.Outcome, err error) {
	switch {
	case err != nil:
		h.writeError(w, err)
	case out.Rejected:
		JSON(w, http.StatusForbidden, rejectedResponse(out))
	default:
		JSON(w, http.StatusOK, okResponse(out))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("code", code).Msg("request failed")
	}
	JSON(w, status, errorResponse(code, err.Error()))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, guard.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, guard.ErrDestinationExists):
		return http.StatusConflict, CodeDestinationExists
	case errors.Is(err, guard.ErrNotAFile):
		return http.StatusBadRequest, CodeNotAFile
	case errors.Is(err, guard.ErrNotADirectory), errors.Is(err, scan.ErrNotDirectory):
		return http.StatusBadRequest, CodeNotADirectory
	case errors.Is(err, guard.ErrDestinationInsideSource):
		return http.StatusBadRequest, CodeDestinationInside
	case errors.Is(err, scan.ErrInvalidFilter):
		return http.StatusBadRequest, CodeInvalidFilter
	case errors.Is(err, safety.ErrInvalidPath):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, guard.ErrPermission), errors.Is(err, fs.ErrPermission):
		return http.StatusInternalServerError, CodePermission
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		JSON(w, http.StatusBadRequest, errorResponse(CodeBadRequest, "invalid request body: "+err.Error()))
		return false
	}
	return true
}
