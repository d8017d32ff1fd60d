package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/appdeck/internal/auth"
	"github.com/sakif/appdeck/internal/service"
)

// AppHandler serves the app inventory, trending and recommendation
// endpoints.
type AppHandler struct {
	apps      *service.AppService
	recommend *service.RecommendService
	logger    *slog.Logger
}

// NewAppHandler creates an AppHandler.
func NewAppHandler(apps *service.AppService, recommend *service.RecommendService, logger *slog.Logger) *AppHandler {
	return &AppHandler{apps: apps, recommend: recommend, logger: logger}
}

// HandleSync reconciles the caller's stored apps with a device snapshot.
//
// HTTP: POST /api/apps/sync
// BODY: {"apps":[{"packageName":...,"appName":...,"platform":...,"installedAt":...}, ...]}
func (h *AppHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Apps []service.SyncApp `json:"apps"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.apps.Sync(r.Context(), userID, req.Apps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleVisibilityBulk applies a batch of visibility flips.
//
// HTTP: POST /api/apps/visibility/bulk
// BODY: {"changes":[{"packageName":...,"visible":true}, ...]}
func (h *AppHandler) HandleVisibilityBulk(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Changes []service.VisibilityChange `json:"changes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	results, err := h.apps.SetVisibilityBulk(r.Context(), userID, req.Changes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// HandleTrending returns the windowed install ranking.
//
// HTTP: GET /api/apps/trending
func (h *AppHandler) HandleTrending(w http.ResponseWriter, r *http.Request) {
	apps, err := h.recommend.Trending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

// HandleRecommended returns the caller's personalized feed.
//
// HTTP: GET /api/apps/recommended
func (h *AppHandler) HandleRecommended(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	result, err := h.recommend.Recommend(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleUserApps lists a user's apps, subject to visibility and privacy.
//
// HTTP: GET /api/users/{id}/apps
func (h *AppHandler) HandleUserApps(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())
	targetID := r.PathValue("id")

	apps, err := h.apps.AppsOfUser(r.Context(), viewerID, targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

// HandleDetail returns the catalog view of one package.
//
// HTTP: GET /api/apps/{packageName}
func (h *AppHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.apps.Detail(r.Context(), r.PathValue("packageName"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleListComments lists comments on a package, newest first.
//
// HTTP: GET /api/apps/{packageName}/comments?limit=&offset=
func (h *AppHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.apps.Comments(r.Context(),
		r.PathValue("packageName"),
		queryInt(r, "limit", 0),
		queryInt(r, "offset", 0),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// HandleAddComment posts a comment on a package.
//
// HTTP: POST /api/apps/{packageName}/comments
// BODY: {"body":"..."}
func (h *AppHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Body string `json:"body"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.apps.AddComment(r.Context(), userID, r.PathValue("packageName"), req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
