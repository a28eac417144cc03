package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"smartcore/pkg/platform/httputil"
)

type modulesResponse struct {
	Modules []string `json:"modules"`
}

func (h *Handler) handleListModules(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, modulesResponse{Modules: h.token.Chain().ModuleNames()})
}

func (h *Handler) handleAddModule(w http.ResponseWriter, r *http.Request) {
	req, valid := httputil.Decode[addModuleRequest](w, r, h.logger)
	if !valid {
		return
	}
	m, err := h.newModule(req.Name, req.Params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.token.Chain().AddModule(m, req.Params); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ok)
}

func (h *Handler) handleRemoveModule(w http.ResponseWriter, r *http.Request) {
	if err := h.token.Chain().RemoveModule(chi.URLParam(r, "name")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok)
}
