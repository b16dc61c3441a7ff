package handlers

import (
	"errors"
	"net/http"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/storage"
	"go.uber.org/zap"
)

const photoFormField = "photo"

// Realtime upgrades to a websocket streaming change events
func (h *Handler) Realtime(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	// The upgrader has already answered the client on failure
	if err := h.Hub.ServeWS(w, r, caller); err != nil {
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
	}
}

// UploadPhoto stores a waste photo and returns its URL
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}

	if h.Photos == nil {
		http.Error(w, "Photo uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	// Leave headroom for multipart framing around the file
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxPhotoBytes+1<<20)
	file, _, err := r.FormFile(photoFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, apperr.Invalid(photoFormField, "must be at most %d MB", storage.MaxPhotoBytes>>20))
			return
		}
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	defer file.Close()

	photo, err := storage.ReadPhoto(file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	url, err := h.Photos.UploadPhoto(r.Context(), caller.UserID, photo)
	if err != nil {
		h.writeError(w, r, apperr.Transient("upload photo", err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"photo_url": url})
}
