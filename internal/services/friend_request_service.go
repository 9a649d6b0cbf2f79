package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"circle-go/internal/kafka"
	"circle-go/internal/models"
	"circle-go/internal/storage"
)

// Workflow errors. Most are the store's own kinds re-exported so callers
// of the service need not import storage.
var (
	ErrFriendRequestSelf      = storage.ErrSelfRequest
	ErrFriendRequestExists    = storage.ErrAlreadyRequested
	ErrAlreadyFriends         = storage.ErrAlreadyFriends
	ErrFriendRequestNotFound  = storage.ErrRequestNotFound
	ErrNotRecipientOfRequest  = storage.ErrForbidden
	ErrRequestAlreadyAccepted = storage.ErrAlreadyAccepted
	ErrServiceUnavailable     = storage.ErrStoreUnavailable
	ErrRecipientNotFound      = errors.New("recipient not found")
)

// FriendRequestService drives the per-pair state machine
// None -> Pending(X->Y) -> Friends. No transition goes backwards.
type FriendRequestService interface {
	SendFriendRequest(ctx context.Context, senderID, recipientID uint) (*models.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, actingUserID, requestID uint) (*models.FriendRequest, error)
	ListIncoming(ctx context.Context, userID uint) ([]*models.FriendRequestView, error)
	ListOutgoing(ctx context.Context, userID uint) ([]*models.FriendRequestView, error)
	// ListAccepted returns accepted requests involving userID accepted after
	// since; a zero since returns all of them.
	ListAccepted(ctx context.Context, userID uint, since time.Time) ([]*models.FriendRequestView, error)
}

type friendRequestService struct {
	userRepo  storage.UserRepository
	store     storage.RelationshipStore
	publisher kafka.EventPublisher
	now       func() time.Time
	log       *slog.Logger
}

// NewFriendRequestService creates a new FriendRequestService instance.
func NewFriendRequestService(
	userRepo storage.UserRepository,
	store storage.RelationshipStore,
	publisher kafka.EventPublisher,
	log *slog.Logger,
) FriendRequestService {
	if publisher == nil {
		publisher = kafka.NoopPublisher{}
	}
	return &friendRequestService{
		userRepo:  userRepo,
		store:     store,
		publisher: publisher,
		now:       time.Now,
		log:       log,
	}
}

// SendFriendRequest records a pending proposal from senderID to recipientID.
func (s *friendRequestService) SendFriendRequest(ctx context.Context, senderID, recipientID uint) (*models.FriendRequest, error) {
	if senderID == recipientID {
		return nil, ErrFriendRequestSelf
	}

	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("look up recipient %d: %w", recipientID, err)
	}

	requestID, err := s.store.CreateProposal(ctx, senderID, recipientID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// recipient vanished between the lookup and the insert
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	s.log.Info("friend request created", "request_id", requestID, "sender_id", senderID, "recipient_id", recipientID)

	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		s.log.Warn("reload of new friend request failed", "request_id", requestID, "error", err)
		request = &models.FriendRequest{
			ID:          requestID,
			SenderID:    senderID,
			RecipientID: recipientID,
			Status:      models.FriendRequestStatusPending,
		}
	}

	s.publish(ctx, kafka.EventFriendRequestCreated, request)
	return request, nil
}

// AcceptFriendRequest lets the recipient of requestID accept it, making
// both parties friends.
func (s *friendRequestService) AcceptFriendRequest(ctx context.Context, actingUserID, requestID uint) (*models.FriendRequest, error) {
	request, err := s.store.Accept(ctx, requestID, actingUserID)
	if err != nil {
		return nil, err
	}
	s.log.Info("friend request accepted", "request_id", request.ID, "sender_id", request.SenderID, "recipient_id", request.RecipientID)

	s.publish(ctx, kafka.EventFriendRequestAccepted, request)
	return request, nil
}

func (s *friendRequestService) ListIncoming(ctx context.Context, userID uint) ([]*models.FriendRequestView, error) {
	requests, err := s.store.ListIncoming(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests for user %d: %w", userID, err)
	}
	return s.enrich(ctx, requests)
}

func (s *friendRequestService) ListOutgoing(ctx context.Context, userID uint) ([]*models.FriendRequestView, error) {
	requests, err := s.store.ListOutgoing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list outgoing requests for user %d: %w", userID, err)
	}
	return s.enrich(ctx, requests)
}

func (s *friendRequestService) ListAccepted(ctx context.Context, userID uint, since time.Time) ([]*models.FriendRequestView, error) {
	requests, err := s.store.ListAcceptedSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list accepted requests for user %d: %w", userID, err)
	}
	return s.enrich(ctx, requests)
}

// enrich attaches the public profiles of both parties to each request.
func (s *friendRequestService) enrich(ctx context.Context, requests []models.FriendRequest) ([]*models.FriendRequestView, error) {
	views := make([]*models.FriendRequestView, 0, len(requests))
	if len(requests) == 0 {
		return views, nil
	}

	seen := make(map[uint]struct{})
	ids := make([]uint, 0, len(requests)*2)
	for i := range requests {
		for _, id := range []uint{requests[i].SenderID, requests[i].RecipientID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	infos, err := s.userRepo.GetBasicInfoByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load profiles for friend requests: %w", err)
	}
	byID := make(map[uint]*models.UserBasicInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}

	for i := range requests {
		views = append(views, &models.FriendRequestView{
			FriendRequest: requests[i],
			Sender:        byID[requests[i].SenderID],
			Recipient:     byID[requests[i].RecipientID],
		})
	}
	return views, nil
}

// publish emits the event after the transition has committed. Failures
// are logged and otherwise ignored; the transition stands.
func (s *friendRequestService) publish(ctx context.Context, eventType string, request *models.FriendRequest) {
	event := kafka.RelationshipEvent{
		Type:        eventType,
		RequestID:   request.ID,
		SenderID:    request.SenderID,
		RecipientID: request.RecipientID,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("relationship event not published", "type", eventType, "request_id", request.ID, "error", err)
	}
}
