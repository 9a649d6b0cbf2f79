package models

// User is a registered account. Friends are not a column: the
// relationship store owns them as Friendship rows.
type User struct {
	BaseModel
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username     string `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	FullName     string `gorm:"type:varchar(100);not null" json:"fullName"`
	Bio          string `gorm:"type:text" json:"bio"`
	Location     string `gorm:"type:varchar(100)" json:"location"`
	FocusTag     string `gorm:"type:varchar(50)" json:"focusTag"`
	TrackTag     string `gorm:"type:varchar(50)" json:"trackTag"`
	AvatarURL    string `gorm:"type:varchar(255)" json:"avatarUrl"`
	IsOnboarded  bool   `gorm:"not null;default:false" json:"isOnboarded"`
}

// TableName overrides the table name used by gorm.
func (User) TableName() string {
	return "users"
}

// Sanitized returns a copy of the user without the credential hash.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	return &c
}

// BasicInfo projects the public profile fields of the user.
func (u *User) BasicInfo() *UserBasicInfo {
	return &UserBasicInfo{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Location:  u.Location,
		FocusTag:  u.FocusTag,
		TrackTag:  u.TrackTag,
	}
}

// UserBasicInfo holds the public profile of a user, as shown on friend
// cards, recommendations and request notifications.
type UserBasicInfo struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Location  string `json:"location,omitempty"`
	FocusTag  string `json:"focusTag,omitempty"`
	TrackTag  string `json:"trackTag,omitempty"`
}
