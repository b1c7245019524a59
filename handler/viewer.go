package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/nexocrm/leadview"
)

// Viewer identity headers, set by the auth proxy in front of this
// service. Requests reaching us unauthenticated are a deployment error
// and get a 401.
const (
	HeaderViewerID   = "X-Viewer-Id"
	HeaderViewerRole = "X-Viewer-Role"
	HeaderViewerName = "X-Viewer-Name"
)

type ctxKey int

const viewerKey ctxKey = 1

var errNoViewer = errors.New("missing viewer identity")

// ViewerCtx extracts the viewer from the trusted headers and makes it
// available to every handler. Unknown roles are rejected here rather
// than silently widening visibility downstream.
func ViewerCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := r.Header.Get(HeaderViewerID)
		if id == "" {
			respondErr(ctx, rw, http.StatusUnauthorized, errNoViewer)
			return
		}
		role, err := leadview.ParseRole(r.Header.Get(HeaderViewerRole))
		if err != nil {
			respondErr(ctx, rw, http.StatusUnauthorized, err)
			return
		}

		viewer := leadview.Viewer{
			ID:          id,
			DisplayName: r.Header.Get(HeaderViewerName),
			Role:        role,
		}
		next.ServeHTTP(rw, r.WithContext(context.WithValue(ctx, viewerKey, viewer)))
	})
}

// ViewerFromContext returns the viewer stored by ViewerCtx.
func ViewerFromContext(ctx context.Context) (leadview.Viewer, bool) {
	v, ok := ctx.Value(viewerKey).(leadview.Viewer)
	return v, ok
}
