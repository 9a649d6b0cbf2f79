package models

import "time"

// Friendship represents a confirmed, symmetric relationship between two users.
// To avoid duplicates and simplify queries, UserID1 is always less than UserID2.
type Friendship struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID1   uint      `gorm:"not null;uniqueIndex:idx_friendship_users"`
	UserID2   uint      `gorm:"not null;uniqueIndex:idx_friendship_users;index"`
	RequestID uint      `gorm:"not null" json:"requestId"` // the accepted request that created it
	CreatedAt time.Time `json:"createdAt"`
}

// TableName overrides the table name used by gorm.
func (Friendship) TableName() string {
	return "friendships"
}

// EnsureCanonicalOrder sets UserID1 to the smaller ID and UserID2 to the larger ID.
// This should be called before creating a Friendship record.
func (f *Friendship) EnsureCanonicalOrder() {
	f.UserID1, f.UserID2 = CanonicalPair(f.UserID1, f.UserID2)
}

// Other returns the friend of userID in this relationship.
func (f *Friendship) Other(userID uint) uint {
	if f.UserID1 == userID {
		return f.UserID2
	}
	return f.UserID1
}
