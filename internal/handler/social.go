package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/appdeck/internal/auth"
	"github.com/sakif/appdeck/internal/service"
)

// SocialHandler serves the social graph: follows, friend requests,
// discovery, likes and profiles.
type SocialHandler struct {
	social    *service.SocialService
	profile   *service.ProfileService
	recommend *service.RecommendService
	logger    *slog.Logger
}

// NewSocialHandler creates a SocialHandler.
func NewSocialHandler(
	social *service.SocialService,
	profile *service.ProfileService,
	recommend *service.RecommendService,
	logger *slog.Logger,
) *SocialHandler {
	return &SocialHandler{social: social, profile: profile, recommend: recommend, logger: logger}
}

// HandleFollow follows a user, or files a friend request when the target
// is private. The outcome says which happened.
//
// HTTP: POST /api/social/follow/{id}
func (h *SocialHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	outcome, err := h.social.Follow(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// HandleUnfollow removes a follow edge.
//
// HTTP: DELETE /api/social/follow/{id}
func (h *SocialHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.social.Unfollow(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFollowers lists the caller's followers.
//
// HTTP: GET /api/social/followers
func (h *SocialHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	users, err := h.social.Followers(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// HandleFollowing lists who the caller follows.
//
// HTTP: GET /api/social/following
func (h *SocialHandler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	users, err := h.social.Following(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// HandleDiscover lists people with overlapping visible apps, strongest
// overlap first.
//
// HTTP: GET /api/social/discover?limit=
func (h *SocialHandler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	neighbors, err := h.recommend.SimilarUsers(r.Context(), userID, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": neighbors})
}

// HandleListRequests lists pending friend requests addressed to the caller.
//
// HTTP: GET /api/social/requests
func (h *SocialHandler) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	requests, err := h.social.PendingRequests(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// HandleAcceptRequest accepts a pending friend request.
//
// HTTP: POST /api/social/requests/{id}/accept
func (h *SocialHandler) HandleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.social.AcceptRequest(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeclineRequest declines a pending friend request.
//
// HTTP: POST /api/social/requests/{id}/decline
func (h *SocialHandler) HandleDeclineRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.social.DeclineRequest(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLike records a one-time like on a profile.
//
// HTTP: POST /api/users/{id}/like
func (h *SocialHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.social.LikeProfile(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetProfile returns a user's public profile view.
//
// HTTP: GET /api/users/{id}
func (h *SocialHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	view, err := h.profile.Get(r.Context(), viewerID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleUpdateProfile applies a partial edit to the caller's profile.
//
// HTTP: PUT /api/profile
// BODY: any subset of {"displayName":..,"bio":..,"avatarUrl":..,"private":..}
func (h *SocialHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var input service.UpdateProfileInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.profile.Update(r.Context(), userID, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
