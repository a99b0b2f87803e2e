package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/inventar/internal/imaging"
	"github.com/erazemk/inventar/internal/inventory"
	"github.com/erazemk/inventar/internal/model"
)

// ItemsHandler handles item endpoints. Reads come from the live queries;
// writes are queued on the inventory service and answered with 202.
type ItemsHandler struct {
	Service        *inventory.Service
	Images         *imaging.Normalizer
	MaxUploadBytes int64
}

type itemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

func (req itemRequest) valid() bool {
	return inventory.IsEntryValid(req.Name, req.Description, req.Type)
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.AllItems().Get(r.Context())
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.Service.RetrieveItem(id).Get(r.Context())
	if err != nil {
		slog.Error("failed to get item", "error", err, "item_id", id)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.valid() {
		jsonError(w, http.StatusBadRequest, "name, description, and type must not be blank")
		return
	}

	h.Service.AddNewItem(req.Name, req.Description, req.Type)
	jsonMessage(w, http.StatusAccepted, "item queued")
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.valid() {
		jsonError(w, http.StatusBadRequest, "name, description, and type must not be blank")
		return
	}

	h.Service.UpdateItem(id, req.Name, req.Description, req.Type)
	jsonMessage(w, http.StatusAccepted, "update queued")
}

// Delete handles DELETE /api/items/{id}. Deleting an unknown id is accepted
// and has no effect.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.Service.RetrieveItem(id).Get(r.Context())
	if err != nil {
		slog.Error("failed to get item", "error", err, "item_id", id)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		item = &model.Item{ID: id}
	}

	h.Service.DeleteItem(*item)
	jsonMessage(w, http.StatusAccepted, "delete queued")
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.Service.RetrieveItem(id).Get(r.Context())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	img, err := h.Images.Normalize(file)
	if errors.Is(err, imaging.ErrUnsupportedFormat) {
		jsonError(w, http.StatusUnsupportedMediaType, "image must be JPEG, PNG, or WebP")
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid image")
		return
	}

	h.Service.SetItemImage(id, img.Data, img.MIME)
	jsonResponse(w, http.StatusAccepted, map[string]any{
		"message": "image queued",
		"mime":    img.MIME,
		"width":   img.Width,
		"height":  img.Height,
	})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := h.Service.ItemImage(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Write(data)
}
