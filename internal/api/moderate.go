package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/triage-ai/palisade-moderation/internal/auth"
	"github.com/triage-ai/palisade-moderation/internal/engine"
	"github.com/triage-ai/palisade-moderation/internal/imagecheck"
	"github.com/triage-ai/palisade-moderation/internal/service"
	"go.uber.org/zap"
)

// handleModerate implements POST /v1/moderate.
// Auth middleware has already validated the Bearer token and injected the client.
func (d *Dependencies) handleModerate(w http.ResponseWriter, r *http.Request) {
	var req service.ModerateRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	client := auth.ClientFromContext(r.Context())
	writeJSON(w, http.StatusOK, d.Service.Moderate(r.Context(), client, &req))
}

// handleModerateBatch implements POST /v1/moderate/batch.
func (d *Dependencies) handleModerateBatch(w http.ResponseWriter, r *http.Request) {
	var req service.ModerateBatchRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	client := auth.ClientFromContext(r.Context())
	results, err := d.Service.ModerateBatch(r.Context(), client, req.Texts)
	switch {
	case errors.Is(err, service.ErrEmptyBatch), errors.Is(err, service.ErrBatchTooLarge):
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Batch moderation failed"})
		return
	}

	writeJSON(w, http.StatusOK, service.ModerateBatchResponse{Results: results})
}

// handleAddWords implements POST /v1/lexicon/words (admin token).
func (d *Dependencies) handleAddWords(w http.ResponseWriter, r *http.Request) {
	var req service.AddWordsRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	_, err := d.Service.AddWords(r.Context(), service.AdminClient, req.Words)
	switch {
	case errors.Is(err, service.ErrTooManyWords):
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to store lexicon words"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProfanity implements POST /v1/profanity.
func (d *Dependencies) handleProfanity(w http.ResponseWriter, r *http.Request) {
	var req service.ProfanityRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	client := auth.ClientFromContext(r.Context())
	writeJSON(w, http.StatusOK, d.Service.CheckProfanity(r.Context(), client, req.Text))
}

// handleFeatures implements POST /v1/features.
func (d *Dependencies) handleFeatures(w http.ResponseWriter, r *http.Request) {
	var req TextReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	writeJSON(w, http.StatusOK, engine.ExtractFeatures(req.Text))
}

// uploadOverhead bounds the multipart framing and any extra fields around
// the image.
const uploadOverhead = 1 << 20

// handleValidateImage implements POST /v1/images/validate. The image is a
// multipart/form-data upload in the "file" field. Rejections are 200 with
// is_valid=false.
func (d *Dependencies) handleValidateImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, d.Images.MaxBytes()+uploadOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Expected a multipart/form-data upload"})
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "file is required"})
			return
		}
		if err != nil {
			d.writeUploadError(w, err)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		v, err := d.Images.ValidateReader(part)
		part.Close()
		if err != nil {
			d.writeUploadError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, imageValidateResp(v))
		return
	}
}

func (d *Dependencies) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResp{Detail: "Upload too large"})
		return
	}
	d.Logger.Warn("image upload failed", zap.Error(err))
	writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Malformed upload"})
}

func imageValidateResp(v *imagecheck.Validation) ImageValidateResp {
	resp := ImageValidateResp{IsValid: v.Valid, Message: v.Reason}
	if v.Info != nil {
		resp.FileInfo = &ImageFileInfo{
			Width:  v.Info.Width,
			Height: v.Info.Height,
			Format: v.Info.Format,
			Size:   v.Info.Size,
		}
	}
	return resp
}

// handleCategories implements GET /v1/categories.
func (d *Dependencies) handleCategories(w http.ResponseWriter, _ *http.Request) {
	tags := make([]string, len(engine.Categories))
	for i, c := range engine.Categories {
		tags[i] = c.String()
	}
	writeJSON(w, http.StatusOK, CategoriesResp{Categories: tags})
}
