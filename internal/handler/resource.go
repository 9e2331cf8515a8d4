package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/service"
)

// ResourceHandler serves shared links and file uploads.
type ResourceHandler struct {
	svc      *service.ResourceService
	maxBytes int64
	logger   *slog.Logger
}

func NewResourceHandler(svc *service.ResourceService, maxBytes int64, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{svc: svc, maxBytes: maxBytes, logger: logger}
}

type linkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url" validate:"required"`
}

// HandleAddLink shares an external link.
//
// HTTP: POST /api/projects/{id}/resources {"title"?, "url"}
func (h *ResourceHandler) HandleAddLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.AddLink(r.Context(), callerID(r), pathParam(r, "id"), req.Title, req.URL)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"resource": res})
}

// HandleUpload stores one file from a multipart form.
//
// HTTP: POST /api/projects/{id}/resources/upload
// multipart fields: file (required), title (optional)
//
// MaxBytesReader stops reading once the limit is hit, so an oversized upload
// fails fast instead of being spooled to disk first. The small allowance on
// top covers the multipart headers and the title field.
func (h *ResourceHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, h.logger, apperror.ValidationFailed("file",
				fmt.Sprintf("File must be %d bytes or smaller", h.maxBytes)))
			return
		}
		writeError(w, r, h.logger, apperror.ValidationFailed("file", "Expected a multipart form upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.logger, apperror.ValidationFailed("file", "File is required"))
		return
	}
	defer file.Close()
	if header.Size > h.maxBytes {
		writeError(w, r, h.logger, apperror.ValidationFailed("file",
			fmt.Sprintf("File must be %d bytes or smaller", h.maxBytes)))
		return
	}

	res, err := h.svc.Upload(r.Context(), callerID(r), pathParam(r, "id"), service.UploadInput{
		Title:    r.FormValue("title"),
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Body:     file,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"resource": res})
}

// HTTP: GET /api/projects/{id}/resources
func (h *ResourceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), callerID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"resources": list})
}

// HTTP: DELETE /api/resources/{id}
func (h *ResourceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Resource deleted"})
}
