package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"circle-go/internal/models"
)

// MemoryStore keeps users, friend requests and friendships in process. A
// single mutex guards all three, so every operation is atomic with
// respect to any other. It implements both UserRepository and
// RelationshipStore and backs DATABASE.TYPE=memory and the tests.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	users      map[uint]*models.User
	nextUserID uint

	requests      map[uint]*models.FriendRequest
	nextRequestID uint
	pending       map[[2]uint]uint // canonical pair -> pending request id

	friendships []models.Friendship
	friendPairs map[[2]uint]struct{}
}

var (
	_ UserRepository    = (*MemoryStore)(nil)
	_ RelationshipStore = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store using time.Now as its clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock returns an empty store stamping records with now().
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		now:         now,
		users:       make(map[uint]*models.User),
		requests:    make(map[uint]*models.FriendRequest),
		pending:     make(map[[2]uint]uint),
		friendPairs: make(map[[2]uint]struct{}),
	}
}

func pairKey(a, b uint) [2]uint {
	low, high := models.CanonicalPair(a, b)
	return [2]uint{low, high}
}

// --- users ---

func (m *MemoryStore) Create(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return ErrDuplicateUser
		}
	}

	m.nextUserID++
	now := m.now().UTC()
	user.ID = m.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(ctx, func(u *models.User) bool { return u.Email == email })
}

func (m *MemoryStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.findUser(ctx, func(u *models.User) bool { return u.Username == username })
}

func (m *MemoryStore) findUser(ctx context.Context, match func(*models.User) bool) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

// Update writes the profile fields, mirroring the gorm repository.
func (m *MemoryStore) Update(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	u.FullName = user.FullName
	u.Bio = user.Bio
	u.Location = user.Location
	u.FocusTag = user.FocusTag
	u.TrackTag = user.TrackTag
	u.AvatarURL = user.AvatarURL
	u.IsOnboarded = user.IsOnboarded
	u.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryStore) GetBasicInfoByIDs(ctx context.Context, ids []uint) ([]*models.UserBasicInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]*models.UserBasicInfo, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			infos = append(infos, u.BasicInfo())
		}
	}
	return infos, nil
}

func (m *MemoryStore) ListRecommended(ctx context.Context, userID uint, excludeIDs []uint, limit int) ([]*models.UserBasicInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	excluded := make(map[uint]struct{}, len(excludeIDs)+1)
	excluded[userID] = struct{}{}
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	ids := make([]uint, 0, len(m.users))
	for id, u := range m.users {
		if _, skip := excluded[id]; skip || !u.IsOnboarded {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	infos := make([]*models.UserBasicInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, m.users[id].BasicInfo())
	}
	return infos, nil
}

// --- relationships ---

func (m *MemoryStore) CreateProposal(ctx context.Context, senderID, recipientID uint) (uint, error) {
	if senderID == recipientID {
		return 0, ErrSelfRequest
	}
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[senderID]; !ok {
		return 0, ErrUserNotFound
	}
	if _, ok := m.users[recipientID]; !ok {
		return 0, ErrUserNotFound
	}

	key := pairKey(senderID, recipientID)
	if _, ok := m.friendPairs[key]; ok {
		return 0, ErrAlreadyFriends
	}
	if _, ok := m.pending[key]; ok {
		return 0, ErrAlreadyRequested
	}

	m.nextRequestID++
	now := m.now().UTC()
	request := &models.FriendRequest{
		ID:          m.nextRequestID,
		SenderID:    senderID,
		RecipientID: recipientID,
		PairLow:     key[0],
		PairHigh:    key[1],
		Status:      models.FriendRequestStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.requests[request.ID] = request
	m.pending[key] = request.ID
	return request.ID, nil
}

func (m *MemoryStore) Accept(ctx context.Context, requestID, actingUserID uint) (*models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	request, ok := m.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if err := checkAcceptable(request, actingUserID); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	request.Status = models.FriendRequestStatusAccepted
	request.AcceptedAt = &now
	request.UpdatedAt = now

	key := pairKey(request.SenderID, request.RecipientID)
	delete(m.pending, key)
	if _, exists := m.friendPairs[key]; !exists {
		m.friendPairs[key] = struct{}{}
		m.friendships = append(m.friendships, models.Friendship{
			ID:        uint(len(m.friendships) + 1),
			UserID1:   key[0],
			UserID2:   key[1],
			RequestID: request.ID,
			CreatedAt: now,
		})
	}

	c := *request
	return &c, nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, requestID uint) (*models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	request, ok := m.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	c := *request
	return &c, nil
}

func (m *MemoryStore) ListIncoming(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return m.listRequests(ctx, func(r *models.FriendRequest) bool {
		return r.RecipientID == userID && r.Status == models.FriendRequestStatusPending
	})
}

func (m *MemoryStore) ListOutgoing(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return m.listRequests(ctx, func(r *models.FriendRequest) bool {
		return r.SenderID == userID && r.Status == models.FriendRequestStatusPending
	})
}

func (m *MemoryStore) ListAcceptedSince(ctx context.Context, userID uint, since time.Time) ([]models.FriendRequest, error) {
	return m.listRequests(ctx, func(r *models.FriendRequest) bool {
		if r.Status != models.FriendRequestStatusAccepted || !r.Involves(userID) {
			return false
		}
		return since.IsZero() || (r.AcceptedAt != nil && r.AcceptedAt.After(since))
	})
}

// listRequests returns matching requests in creation order.
func (m *MemoryStore) listRequests(ctx context.Context, match func(*models.FriendRequest) bool) ([]models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.FriendRequest{}
	for id := uint(1); id <= m.nextRequestID; id++ {
		if r, ok := m.requests[id]; ok && match(r) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *MemoryStore) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []uint{}
	for i := range m.friendships {
		f := &m.friendships[i]
		if f.UserID1 == userID || f.UserID2 == userID {
			ids = append(ids, f.Other(userID))
		}
	}
	return ids, nil
}

func (m *MemoryStore) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.friendPairs[pairKey(userID1, userID2)]
	return ok, nil
}
