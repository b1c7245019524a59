package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/nexocrm/leadview"
	"github.com/nexocrm/leadview/bulk"
	"github.com/nexocrm/leadview/export"
	"github.com/nexocrm/leadview/feed"
	"go.uber.org/zap"
)

type LeadHandler struct {
	registry *feed.Registry
	bulk     *bulk.Service
	store    leadview.LeadStore
	log      *zap.SugaredLogger
}

func NewLeadHandler(registry *feed.Registry, bulkSvc *bulk.Service, store leadview.LeadStore, log *zap.SugaredLogger) *LeadHandler {
	return &LeadHandler{
		registry: registry,
		bulk:     bulkSvc,
		store:    store,
		log:      log,
	}
}

type leadsResponse struct {
	Leads   []leadview.Lead `json:"leads"`
	Count   int             `json:"count"`
	Loading bool            `json:"loading"`
}

type selectionRequest struct {
	IDs     []string `json:"ids"`
	Status  string   `json:"status,omitempty"`
	AgentID string   `json:"agent_id,omitempty"`
}

// List returns the viewer's current feed snapshot, starting a session on
// first call. While the background continuation is still paging,
// Loading is true and Count only covers what has arrived so far.
func (lh *LeadHandler) List(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := ViewerFromContext(ctx)
	if !ok {
		respondErr(ctx, rw, http.StatusUnauthorized, errNoViewer)
		return
	}

	session, err := lh.registry.Session(ctx, viewer)
	if err != nil {
		lh.log.Errorw("List", "viewer", viewer.ID, "error", err.Error())
		respondErr(ctx, rw, http.StatusInternalServerError, err)
		return
	}

	leads, loading := session.Snapshot()
	respond(ctx, rw, http.StatusOK, leadsResponse{
		Leads:   leads,
		Count:   len(leads),
		Loading: loading,
	})
}

// Reload forces a fresh fetch generation for the viewer's session.
func (lh *LeadHandler) Reload(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := ViewerFromContext(ctx)
	if !ok {
		respondErr(ctx, rw, http.StatusUnauthorized, errNoViewer)
		return
	}

	session, err := lh.registry.Session(ctx, viewer)
	if err != nil {
		lh.log.Errorw("Reload", "viewer", viewer.ID, "error", err.Error())
		respondErr(ctx, rw, http.StatusInternalServerError, err)
		return
	}
	if err := session.Reload(ctx); err != nil {
		lh.log.Errorw("Reload", "viewer", viewer.ID, "error", err.Error())
		respondErr(ctx, rw, http.StatusInternalServerError, err)
		return
	}

	leads, loading := session.Snapshot()
	respond(ctx, rw, http.StatusOK, leadsResponse{
		Leads:   leads,
		Count:   len(leads),
		Loading: loading,
	})
}

// Statuses returns the enumerated status set. Fetched separately from
// the leads themselves so the client can build its filter facets.
func (lh *LeadHandler) Statuses(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statuses, err := lh.store.ListStatuses(ctx)
	if err != nil {
		lh.log.Errorw("Statuses", "error", err.Error())
		respondErr(ctx, rw, http.StatusInternalServerError, err)
		return
	}
	respond(ctx, rw, http.StatusOK, statuses)
}

// UpdateStatus applies a bulk status change to the selected leads.
func (lh *LeadHandler) UpdateStatus(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := ViewerFromContext(ctx)
	if !ok {
		respondErr(ctx, rw, http.StatusUnauthorized, errNoViewer)
		return
	}

	var req selectionRequest
	if err := decode(r, &req); err != nil {
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}
	if req.Status == "" {
		respondErr(ctx, rw, http.StatusBadRequest, errors.New("status is required"))
		return
	}

	if err := lh.bulk.UpdateStatus(ctx, viewer, req.IDs, req.Status); err != nil {
		lh.respondBulkErr(ctx, rw, "UpdateStatus", viewer, err)
		return
	}
	respond(ctx, rw, http.StatusOK, map[string]int{"updated": len(req.IDs)})
}

// Assign applies a bulk agent assignment. An empty agent_id unassigns.
func (lh *LeadHandler) Assign(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := ViewerFromContext(ctx)
	if !ok {
		respondErr(ctx, rw, http.StatusUnauthorized, errNoViewer)
		return
	}

	var req selectionRequest
	if err := decode(r, &req); err != nil {
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}

	if err := lh.bulk.Assign(ctx, viewer, req.IDs, req.AgentID); err != nil {
		lh.respondBulkErr(ctx, rw, "Assign", viewer, err)
		return
	}
	respond(ctx, rw, http.StatusOK, map[string]int{"updated": len(req.IDs)})
}

// Delete removes the selected leads. Admin only.
func (lh *LeadHandler) Delete(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := ViewerFromContext(ctx)
	if !ok {
		respondErr(ctx, rw, http.StatusUnauthorized, errNoViewer)
		return
	}

	var req selectionRequest
	if err := decode(r, &req); err != nil {
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}

	if err := lh.bulk.Delete(ctx, viewer, req.IDs); err != nil {
		lh.respondBulkErr(ctx, rw, "Delete", viewer, err)
		return
	}
	respond(ctx, rw, http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}

// Export streams the viewer's current snapshot as CSV. Passing ids in
// the query restricts the file to the selected subset.
func (lh *LeadHandler) Export(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := ViewerFromContext(ctx)
	if !ok {
		respondErr(ctx, rw, http.StatusUnauthorized, errNoViewer)
		return
	}

	session, err := lh.registry.Session(ctx, viewer)
	if err != nil {
		lh.log.Errorw("Export", "viewer", viewer.ID, "error", err.Error())
		respondErr(ctx, rw, http.StatusInternalServerError, err)
		return
	}

	leads, _ := session.Snapshot()
	if selected := r.URL.Query()["id"]; len(selected) > 0 {
		leads = filterSelected(leads, selected)
	}

	rw.Header().Set("Content-Type", "text/csv")
	rw.Header().Set("Content-Disposition", `attachment; filename="leads.csv"`)
	if err := export.WriteCSV(rw, leads); err != nil {
		// Headers are gone; all we can do is log.
		lh.log.Errorw("Export", "viewer", viewer.ID, "error", err.Error())
	}
}

func (lh *LeadHandler) respondBulkErr(ctx context.Context, rw http.ResponseWriter, op string, viewer leadview.Viewer, err error) {
	lh.log.Errorw(op, "viewer", viewer.ID, "role", viewer.Role, "error", err.Error())
	switch {
	case errors.Is(err, leadview.ErrForbidden):
		respondErr(ctx, rw, http.StatusForbidden, err)
	case errors.Is(err, leadview.ErrNoSelection):
		respondErr(ctx, rw, http.StatusBadRequest, err)
	default:
		respondErr(ctx, rw, http.StatusInternalServerError, err)
	}
}

func filterSelected(leads []leadview.Lead, ids []string) []leadview.Lead {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]leadview.Lead, 0, len(ids))
	for _, l := range leads {
		if _, ok := want[l.ID]; ok {
			out = append(out, l)
		}
	}
	return out
}
