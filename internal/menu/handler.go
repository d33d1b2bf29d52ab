package menu

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

// Handler manages menu endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers menu routes. Listing is open to every caller and
// filtered by the caller's authorities.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listMenus)
	r.With(h.rbac.Require(rbac.OpViewMenu)).Get("/{id}", h.getMenu)
	r.With(h.rbac.Require(rbac.OpCreateMenu)).Post("/", h.createMenu)
	r.With(h.rbac.Require(rbac.OpUpdateMenu)).Put("/{id}", h.updateMenu)
	r.With(h.rbac.Require(rbac.OpDeleteMenu)).Delete("/{id}", h.deleteMenu)
}

func (h *Handler) listMenus(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.VisibleTree(r.Context(), rbac.AuthoritiesFromContext(r.Context()))
	if err != nil {
		h.fail(w, "list menus", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.fail(w, "get menu", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) createMenu(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), in)
	if err != nil {
		h.fail(w, "create menu", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) updateMenu(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.UpdateEntry(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update menu", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteMenu(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteEntry(r.Context(), id); err != nil {
		h.fail(w, "delete menu", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
