package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rpm-software-management/libdnf-sub006/internal/api/response"
	"github.com/rpm-software-management/libdnf-sub006/internal/app"
	"github.com/rpm-software-management/libdnf-sub006/internal/module"
)

// Handlers serves one Session. Requests are serialized: the container is
// single-threaded.
type Handlers struct {
	mu      sync.Mutex
	session *app.Session
	log     *zap.Logger
	stale   bool
}

func NewHandlers(session *app.Session, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{session: session, log: log, stale: true}
}

// ListModulesResponse is the body of GET /api/v1/modules.
type ListModulesResponse struct {
	Modules []app.ModuleSummary `json:"modules"`
}

// ModuleResponse is the body of GET /api/v1/modules/{name}.
type ModuleResponse struct {
	Module   app.ModuleSummary `json:"module"`
	Packages []app.PackageView `json:"packages"`
}

// PackagesResponse lists module packages.
type PackagesResponse struct {
	Packages []app.PackageView `json:"packages"`
}

// EnablementRequest is the body of POST /api/v1/enablement.
type EnablementRequest struct {
	Packages []string `json:"packages"`
}

// ChangeResponse is returned by every state change.
type ChangeResponse struct {
	Change app.Change `json:"change"`
}

// resolve recomputes the active modules after a state change. Callers hold mu.
func (h *Handlers) resolve(ctx context.Context) error {
	if !h.stale {
		return nil
	}
	if _, err := h.session.Resolve(ctx); err != nil {
		return err
	}
	h.stale = false
	return nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := response.JSON(w, status, data); err != nil {
		h.log.Error("error encoding JSON response", zap.Error(err))
	}
}

// fail maps err to a status code and writes every aggregated message.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	var details []string
	if errs := multierr.Errors(err); len(errs) > 1 {
		for _, e := range errs {
			details = append(details, e.Error())
		}
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.log.Info("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	if werr := response.Error(w, status, err.Error(), details...); werr != nil {
		h.log.Error("error encoding JSON response", zap.Error(werr))
	}
}

func errorStatus(err error) int {
	var (
		invalidSpec *module.InvalidSpecError
		noModule    *module.NoSuchModuleError
		noStream    *module.NoSuchStreamError
		noMatch     *module.NoMatchingStreamError
		noProfile   *module.NoSuchProfileError
		noEnabled   *module.NoEnabledStreamError
	)
	switch {
	case errors.As(err, &invalidSpec):
		return http.StatusBadRequest
	case errors.As(err, &noModule), errors.As(err, &noStream), errors.As(err, &noMatch), errors.As(err, &noProfile):
		return http.StatusNotFound
	case errors.As(err, &noEnabled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ListModules handles GET /api/v1/modules.
func (h *Handlers) ListModules(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeJSON(w, http.StatusOK, ListModulesResponse{Modules: h.session.Modules()})
}

// GetModule handles GET /api/v1/modules/{name}.
func (h *Handlers) GetModule(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	h.mu.Lock()
	defer h.mu.Unlock()

	pkgs, err := h.session.Container.GetModulePackagesByName(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.resolve(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	summaries := h.session.Modules(name)
	h.writeJSON(w, http.StatusOK, ModuleResponse{Module: summaries[0], Packages: h.session.Views(pkgs)})
}

// ListActive handles GET /api/v1/active.
func (h *Handlers) ListActive(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.resolve(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PackagesResponse{Packages: h.session.Views(h.session.Container.ActivePackages())})
}

// RequiresEnablement handles POST /api/v1/enablement.
func (h *Handlers) RequiresEnablement(w http.ResponseWriter, r *http.Request) {
	var req EnablementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if rerr := response.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error()); rerr != nil {
			h.log.Error("error encoding JSON response", zap.Error(rerr))
		}
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.resolve(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	pkgs := h.session.Container.RequiresModuleEnablement(req.Packages)
	h.writeJSON(w, http.StatusOK, PackagesResponse{Packages: h.session.Views(pkgs)})
}

// change runs a state change for one spec and answers with its summary.
func (h *Handlers) change(w http.ResponseWriter, r *http.Request, spec string,
	op func(context.Context, []string) (app.Change, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	change, err := op(r.Context(), []string{spec})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.stale = true
	h.log.Info("module state changed", zap.String("spec", spec), zap.Bool("changed", !change.Empty()))
	h.writeJSON(w, http.StatusOK, ChangeResponse{Change: change})
}

// Enable handles POST /api/v1/modules/{name}/{stream}/enable.
func (h *Handlers) Enable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.change(w, r, vars["name"]+":"+vars["stream"], h.session.Enable)
}

// Disable handles POST /api/v1/modules/{name}/disable.
func (h *Handlers) Disable(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, mux.Vars(r)["name"], h.session.Disable)
}

// Reset handles POST /api/v1/modules/{name}/reset.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, mux.Vars(r)["name"], h.session.Reset)
}

// InstallProfile handles POST /api/v1/modules/{name}/{stream}/profiles/{profile}.
func (h *Handlers) InstallProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.change(w, r, vars["name"]+":"+vars["stream"]+"/"+vars["profile"], h.session.Install)
}

// RemoveProfile handles DELETE /api/v1/modules/{name}/{stream}/profiles/{profile}.
func (h *Handlers) RemoveProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.change(w, r, vars["name"]+":"+vars["stream"]+"/"+vars["profile"], h.session.Remove)
}
