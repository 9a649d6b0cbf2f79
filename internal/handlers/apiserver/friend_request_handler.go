package apiserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"circle-go/internal/middleware"
	"circle-go/internal/models"
	"circle-go/internal/services"
)

// FriendRequestHandler handles HTTP requests related to friend requests.
type FriendRequestHandler struct {
	friendService services.FriendRequestService
	log           *slog.Logger
}

// NewFriendRequestHandler creates a new FriendRequestHandler.
func NewFriendRequestHandler(fs services.FriendRequestService, log *slog.Logger) *FriendRequestHandler {
	return &FriendRequestHandler{friendService: fs, log: log}
}

// FriendRequestsResponse groups the caller's pending incoming requests and
// the accepted ones involving them.
type FriendRequestsResponse struct {
	IncomingReqs []*models.FriendRequestView `json:"incomingReqs"`
	AcceptedReqs []*models.FriendRequestView `json:"acceptedReqs"`
}

// SendFriendRequest handles POST /api/users/friend-request/{id}, where id
// is the recipient.
func (h *FriendRequestHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	recipientID, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	request, err := h.friendService.SendFriendRequest(r.Context(), senderID, recipientID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, request)
}

// AcceptFriendRequest handles PUT /api/users/friend-request/{id}/accept.
func (h *FriendRequestHandler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	requestID, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid friend request id", http.StatusBadRequest)
		return
	}

	request, err := h.friendService.AcceptFriendRequest(r.Context(), userID, requestID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message": "Friend request accepted",
		"request": request,
	})
}

// GetFriendRequests returns pending incoming requests and accepted ones.
// An optional RFC 3339 "since" query parameter limits the accepted list
// to requests accepted after that instant.
func (h *FriendRequestHandler) GetFriendRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSONError(w, "since must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		since = t
	}

	incoming, err := h.friendService.ListIncoming(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	accepted, err := h.friendService.ListAccepted(r.Context(), userID, since)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, FriendRequestsResponse{IncomingReqs: incoming, AcceptedReqs: accepted})
}

// GetOutgoingFriendRequests lists the caller's pending outgoing requests.
func (h *FriendRequestHandler) GetOutgoingFriendRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	outgoing, err := h.friendService.ListOutgoing(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, outgoing)
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
