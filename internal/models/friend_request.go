package models

import "time"

// FriendRequestStatus is the lifecycle state of a friend request.
type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "pending"
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
)

// FriendRequest is a directed proposal from SenderID to RecipientID.
// Once accepted it stays as a historical record and is never deleted.
//
// PairLow/PairHigh hold the canonical pair so the partial unique index
// allows a single pending request per unordered pair.
type FriendRequest struct {
	ID          uint                `gorm:"primarykey" json:"id"`
	SenderID    uint                `gorm:"not null;index" json:"senderId"`
	RecipientID uint                `gorm:"not null;index" json:"recipientId"`
	PairLow     uint                `gorm:"not null;uniqueIndex:idx_friend_requests_pending_pair,where:status = 'pending'" json:"-"`
	PairHigh    uint                `gorm:"not null;uniqueIndex:idx_friend_requests_pending_pair,where:status = 'pending'" json:"-"`
	Status      FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	AcceptedAt  *time.Time          `json:"acceptedAt,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// TableName overrides the table name used by gorm.
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// Involves reports whether userID is the sender or the recipient.
func (r *FriendRequest) Involves(userID uint) bool {
	return r.SenderID == userID || r.RecipientID == userID
}

// Counterpart returns the other party of the request as seen by userID.
func (r *FriendRequest) Counterpart(userID uint) uint {
	if r.SenderID == userID {
		return r.RecipientID
	}
	return r.SenderID
}

// FriendRequestView is a friend request together with the public profile
// of the sender and recipient, used by the API responses.
type FriendRequestView struct {
	FriendRequest
	Sender    *UserBasicInfo `json:"sender,omitempty"`
	Recipient *UserBasicInfo `json:"recipient,omitempty"`
}
