package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nexocrm/leadview"
	"github.com/nexocrm/leadview/bulk"
	"github.com/nexocrm/leadview/feed"
	"github.com/nexocrm/leadview/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeStore implements leadview.LeadStore and leadview.AuditLog in memory.
type fakeStore struct {
	leads    []leadview.Lead
	statuses []leadview.Status
	audits   []leadview.AuditEntry
	listErr  error
}

func (fs *fakeStore) ListOpen(ctx context.Context, offset, limit int) ([]leadview.Lead, error) {
	if fs.listErr != nil {
		return nil, fs.listErr
	}
	if offset >= len(fs.leads) {
		return []leadview.Lead{}, nil
	}
	end := offset + limit
	if end > len(fs.leads) {
		end = len(fs.leads)
	}
	return fs.leads[offset:end], nil
}

func (fs *fakeStore) ListStatuses(ctx context.Context) ([]leadview.Status, error) {
	return fs.statuses, nil
}

func (fs *fakeStore) UpdateStatus(ctx context.Context, ids []string, status string) error {
	for i := range fs.leads {
		for _, id := range ids {
			if fs.leads[i].ID == id {
				fs.leads[i].Status = status
			}
		}
	}
	return nil
}

func (fs *fakeStore) Assign(ctx context.Context, ids []string, agentID string) error {
	for i := range fs.leads {
		for _, id := range ids {
			if fs.leads[i].ID == id {
				fs.leads[i].AssignedTo = agentID
			}
		}
	}
	return nil
}

func (fs *fakeStore) Delete(ctx context.Context, ids []string) error {
	kept := fs.leads[:0]
	for _, l := range fs.leads {
		drop := false
		for _, id := range ids {
			if l.ID == id {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, l)
		}
	}
	fs.leads = kept
	return nil
}

func (fs *fakeStore) Append(ctx context.Context, entry leadview.AuditEntry) error {
	fs.audits = append(fs.audits, entry)
	return nil
}

func (fs *fakeStore) Subordinates(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func seed(n int) []leadview.Lead {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]leadview.Lead, n)
	for i := range out {
		out[i] = leadview.Lead{
			ID:        fmt.Sprintf("l%02d", i),
			Name:      fmt.Sprintf("Lead %d", i),
			Status:    "new",
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func newTestRouter(t *testing.T, store *fakeStore) chi.Router {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	fetcher := feed.NewFetcher(store, log, feed.Config{PageSize: 100})
	registry := feed.NewRegistry(fetcher, store, log, time.Hour)
	bulkSvc := bulk.NewService(store, store, log)
	lh := handler.NewLeadHandler(registry, bulkSvc, store, log)

	r := chi.NewRouter()
	r.Route("/leads", func(r chi.Router) {
		r.Use(handler.ViewerCtx)
		r.Get("/", lh.List)
		r.Post("/reload", lh.Reload)
		r.Get("/statuses", lh.Statuses)
		r.Post("/status", lh.UpdateStatus)
		r.Post("/assign", lh.Assign)
		r.Post("/delete", lh.Delete)
		r.Get("/export", lh.Export)
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, target string, viewer *leadview.Viewer, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if viewer != nil {
		req.Header.Set(handler.HeaderViewerID, viewer.ID)
		req.Header.Set(handler.HeaderViewerRole, string(viewer.Role))
		req.Header.Set(handler.HeaderViewerName, viewer.DisplayName)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var testAdmin = leadview.Viewer{ID: "a1", DisplayName: "Ada", Role: leadview.RoleAdmin}

func TestListRejectsMissingViewer(t *testing.T) {
	r := newTestRouter(t, &fakeStore{leads: seed(3)})

	w := doJSON(t, r, http.MethodGet, "/leads", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListRejectsUnknownRole(t *testing.T) {
	r := newTestRouter(t, &fakeStore{leads: seed(3)})

	ghost := leadview.Viewer{ID: "x1", Role: leadview.Role("superuser")}
	w := doJSON(t, r, http.MethodGet, "/leads", &ghost, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListReturnsSnapshot(t *testing.T) {
	r := newTestRouter(t, &fakeStore{leads: seed(3)})

	w := doJSON(t, r, http.MethodGet, "/leads", &testAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Leads []leadview.Lead `json:"leads"`
		Count int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Leads, 3)
	assert.Equal(t, "l00", resp.Leads[0].ID, "newest first")
}

func TestListAgentOnlySeesOwnLeads(t *testing.T) {
	leads := seed(4)
	leads[1].AssignedTo = "g1"
	leads[3].AssignedTo = "g1"
	r := newTestRouter(t, &fakeStore{leads: leads})

	agent := leadview.Viewer{ID: "g1", DisplayName: "Kim", Role: leadview.RoleAgent}
	w := doJSON(t, r, http.MethodGet, "/leads", &agent, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestReloadPicksUpChanges(t *testing.T) {
	store := &fakeStore{leads: seed(2)}
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodGet, "/leads", &testAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	store.leads = seed(5)
	w = doJSON(t, r, http.MethodPost, "/leads/reload", &testAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Count)
}

func TestStatuses(t *testing.T) {
	store := &fakeStore{statuses: []leadview.Status{
		{Name: "new", Position: 1},
		{Name: "contacted", Position: 2},
	}}
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodGet, "/leads/statuses", &testAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var statuses []leadview.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "new", statuses[0].Name)
}

func TestBulkUpdateStatus(t *testing.T) {
	store := &fakeStore{leads: seed(3)}
	r := newTestRouter(t, store)

	body := map[string]interface{}{"ids": []string{"l00", "l02"}, "status": "contacted"}
	w := doJSON(t, r, http.MethodPost, "/leads/status", &testAdmin, body)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "contacted", store.leads[0].Status)
	assert.Equal(t, "new", store.leads[1].Status)
	assert.Equal(t, "contacted", store.leads[2].Status)
	assert.Len(t, store.audits, 2)
}

func TestBulkUpdateStatusRequiresStatus(t *testing.T) {
	r := newTestRouter(t, &fakeStore{leads: seed(1)})

	body := map[string]interface{}{"ids": []string{"l00"}}
	w := doJSON(t, r, http.MethodPost, "/leads/status", &testAdmin, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkUpdateStatusForbiddenForAgents(t *testing.T) {
	r := newTestRouter(t, &fakeStore{leads: seed(1)})

	agent := leadview.Viewer{ID: "g1", Role: leadview.RoleAgent}
	body := map[string]interface{}{"ids": []string{"l00"}, "status": "contacted"}
	w := doJSON(t, r, http.MethodPost, "/leads/status", &agent, body)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestBulkAssign(t *testing.T) {
	store := &fakeStore{leads: seed(2)}
	r := newTestRouter(t, store)

	body := map[string]interface{}{"ids": []string{"l01"}, "agent_id": "g1"}
	w := doJSON(t, r, http.MethodPost, "/leads/assign", &testAdmin, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "g1", store.leads[1].AssignedTo)
}

func TestBulkDeleteAdminOnly(t *testing.T) {
	store := &fakeStore{leads: seed(3)}
	r := newTestRouter(t, store)

	deskViewer := leadview.Viewer{ID: "d1", DisplayName: "Alpha", Role: leadview.RoleDesk}
	body := map[string]interface{}{"ids": []string{"l00"}}
	w := doJSON(t, r, http.MethodPost, "/leads/delete", &deskViewer, body)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, store.leads, 3)

	w = doJSON(t, r, http.MethodPost, "/leads/delete", &testAdmin, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, store.leads, 2)
}

func TestBulkEmptySelection(t *testing.T) {
	r := newTestRouter(t, &fakeStore{leads: seed(1)})

	body := map[string]interface{}{"ids": []string{}}
	w := doJSON(t, r, http.MethodPost, "/leads/delete", &testAdmin, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportCSV(t *testing.T) {
	r := newTestRouter(t, &fakeStore{leads: seed(2)})

	w := doJSON(t, r, http.MethodGet, "/leads/export", &testAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "leads.csv")
	assert.Contains(t, w.Body.String(), "l00")
	assert.Contains(t, w.Body.String(), "l01")
}

func TestExportSelectedSubset(t *testing.T) {
	r := newTestRouter(t, &fakeStore{leads: seed(3)})

	w := doJSON(t, r, http.MethodGet, "/leads/export?id=l01", &testAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "l01")
	assert.NotContains(t, w.Body.String(), "l00")
	assert.NotContains(t, w.Body.String(), "l02")
}
