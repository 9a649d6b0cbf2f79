package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"circle-go/internal/models"
)

// RelationshipStore owns friend requests and friendships. Every mutation
// keeps the invariants of both tables: one pending request per unordered
// pair, accepted requests never change again, and a friendship exists for
// every accepted request.
type RelationshipStore interface {
	// CreateProposal stores a pending request from senderID to recipientID.
	CreateProposal(ctx context.Context, senderID, recipientID uint) (uint, error)
	// Accept flips the request to accepted and links both users as friends.
	Accept(ctx context.Context, requestID, actingUserID uint) (*models.FriendRequest, error)
	GetRequest(ctx context.Context, requestID uint) (*models.FriendRequest, error)
	ListIncoming(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	ListOutgoing(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	// ListAcceptedSince returns accepted requests involving userID whose
	// acceptance is after since. A zero since returns all of them.
	ListAcceptedSince(ctx context.Context, userID uint, since time.Time) ([]models.FriendRequest, error)
	// FriendIDs returns the friends of userID, oldest friendship first.
	FriendIDs(ctx context.Context, userID uint) ([]uint, error)
	AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error)
}

type gormRelationshipStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormRelationshipStore creates a RelationshipStore backed by PostgreSQL.
func NewGormRelationshipStore(db *gorm.DB) RelationshipStore {
	return &gormRelationshipStore{db: db, now: time.Now}
}

// CreateProposal locks both user rows in id order, so concurrent calls
// on the same pair (in either direction) run one after the other. The
// partial unique index on the pending pair is the backstop.
func (s *gormRelationshipStore) CreateProposal(ctx context.Context, senderID, recipientID uint) (uint, error) {
	if senderID == recipientID {
		return 0, ErrSelfRequest
	}
	low, high := models.CanonicalPair(senderID, recipientID)

	var requestID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUserPair(tx, senderID, recipientID); err != nil {
			return err
		}

		friends, err := friendshipExists(tx, low, high)
		if err != nil {
			return err
		}
		if friends {
			return ErrAlreadyFriends
		}

		var pending int64
		err = tx.Model(&models.FriendRequest{}).
			Where("pair_low = ? AND pair_high = ? AND status = ?", low, high, models.FriendRequestStatusPending).
			Count(&pending).Error
		if err != nil {
			return unavailable(err)
		}
		if pending > 0 {
			return ErrAlreadyRequested
		}

		request := models.FriendRequest{
			SenderID:    senderID,
			RecipientID: recipientID,
			PairLow:     low,
			PairHigh:    high,
			Status:      models.FriendRequestStatusPending,
		}
		if err := tx.Create(&request).Error; err != nil {
			return err
		}
		requestID = request.ID
		return nil
	})
	if err != nil {
		return 0, translate(err, ErrAlreadyRequested)
	}
	return requestID, nil
}

// Accept validates the actor and status, then flips the request and
// inserts the friendship in one transaction.
func (s *gormRelationshipStore) Accept(ctx context.Context, requestID, actingUserID uint) (*models.FriendRequest, error) {
	var accepted models.FriendRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := findRequest(tx, requestID)
		if err != nil {
			return err
		}
		if err := checkAcceptable(request, actingUserID); err != nil {
			return err
		}

		if err := lockUserPair(tx, request.SenderID, request.RecipientID); err != nil {
			return err
		}
		// re-read under the pair lock; a concurrent accept may have won
		request, err = findRequest(tx.Clauses(clause.Locking{Strength: "UPDATE"}), requestID)
		if err != nil {
			return err
		}
		if err := checkAcceptable(request, actingUserID); err != nil {
			return err
		}

		acceptedAt := s.now().UTC()
		res := tx.Model(&models.FriendRequest{}).
			Where("id = ? AND status = ?", requestID, models.FriendRequestStatusPending).
			Updates(map[string]interface{}{
				"status":      models.FriendRequestStatusAccepted,
				"accepted_at": acceptedAt,
			})
		if res.Error != nil {
			return unavailable(res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrAlreadyAccepted
		}

		friendship := &models.Friendship{
			UserID1:   request.SenderID,
			UserID2:   request.RecipientID,
			RequestID: request.ID,
		}
		friendship.EnsureCanonicalOrder()
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(friendship).Error; err != nil {
			return unavailable(err)
		}

		accepted = *request
		accepted.Status = models.FriendRequestStatusAccepted
		accepted.AcceptedAt = &acceptedAt
		return nil
	})
	if err != nil {
		return nil, translate(err, ErrAlreadyAccepted)
	}
	return &accepted, nil
}

func (s *gormRelationshipStore) GetRequest(ctx context.Context, requestID uint) (*models.FriendRequest, error) {
	request, err := findRequest(s.db.WithContext(ctx), requestID)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *gormRelationshipStore) ListIncoming(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.listRequests(ctx, "recipient_id = ? AND status = ?", userID, models.FriendRequestStatusPending)
}

func (s *gormRelationshipStore) ListOutgoing(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.listRequests(ctx, "sender_id = ? AND status = ?", userID, models.FriendRequestStatusPending)
}

func (s *gormRelationshipStore) ListAcceptedSince(ctx context.Context, userID uint, since time.Time) ([]models.FriendRequest, error) {
	if since.IsZero() {
		return s.listRequests(ctx, "(sender_id = ? OR recipient_id = ?) AND status = ?",
			userID, userID, models.FriendRequestStatusAccepted)
	}
	return s.listRequests(ctx, "(sender_id = ? OR recipient_id = ?) AND status = ? AND accepted_at > ?",
		userID, userID, models.FriendRequestStatusAccepted, since.UTC())
}

func (s *gormRelationshipStore) listRequests(ctx context.Context, query string, args ...interface{}) ([]models.FriendRequest, error) {
	requests := []models.FriendRequest{}
	if err := s.db.WithContext(ctx).Where(query, args...).Order("created_at, id").Find(&requests).Error; err != nil {
		return nil, unavailable(err)
	}
	return requests, nil
}

func (s *gormRelationshipStore) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var friendships []models.Friendship
	err := s.db.WithContext(ctx).
		Where("user_id1 = ? OR user_id2 = ?", userID, userID).
		Order("created_at, id").
		Find(&friendships).Error
	if err != nil {
		return nil, unavailable(err)
	}

	ids := make([]uint, 0, len(friendships))
	for i := range friendships {
		ids = append(ids, friendships[i].Other(userID))
	}
	return ids, nil
}

func (s *gormRelationshipStore) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	low, high := models.CanonicalPair(userID1, userID2)
	return friendshipExists(s.db.WithContext(ctx), low, high)
}

// lockUserPair takes row locks on both users, smaller id first, so two
// transactions touching the same pair can't deadlock.
func lockUserPair(tx *gorm.DB, userA, userB uint) error {
	first, second := models.CanonicalPair(userA, userB)
	if err := lockUser(tx, first); err != nil {
		return err
	}
	if first == second {
		return nil
	}
	return lockUser(tx, second)
}

func lockUser(tx *gorm.DB, userID uint) error {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, userID).Error
	if err != nil {
		return notFoundOr(err, ErrUserNotFound)
	}
	return nil
}

func friendshipExists(tx *gorm.DB, low, high uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Friendship{}).Where("user_id1 = ? AND user_id2 = ?", low, high).Count(&count).Error
	if err != nil {
		return false, unavailable(err)
	}
	return count > 0, nil
}

func findRequest(tx *gorm.DB, requestID uint) (*models.FriendRequest, error) {
	var request models.FriendRequest
	if err := tx.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, unavailable(err)
	}
	return &request, nil
}

// checkAcceptable enforces the accept preconditions: only the recipient
// may act, and only while the request is still pending.
func checkAcceptable(request *models.FriendRequest, actingUserID uint) error {
	if request.RecipientID != actingUserID {
		return ErrForbidden
	}
	if request.Status == models.FriendRequestStatusAccepted {
		return ErrAlreadyAccepted
	}
	return nil
}
