package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WChat/model"
	"WChat/service/gateway"
	"WChat/tools/security"
)

// memStore is an in-memory Store with per-method error injection.
type memStore struct {
	mu       sync.Mutex
	users    map[string]model.User // uuid -> user
	byName   map[string]string     // username -> uuid
	rooms    map[string]model.Room
	members  map[string][]model.RoomMember // roomUUID -> members
	messages map[string][]model.Message

	createMessageErr error
	roomMembersErr   error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]model.User{},
		byName:   map[string]string{},
		rooms:    map[string]model.Room{},
		members:  map[string][]model.RoomMember{},
		messages: map[string][]model.Message{},
	}
}

func (m *memStore) CreateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[u.Username]; ok {
		return errors.New("username taken")
	}
	m.users[u.UUID] = u
	m.byName[u.Username] = u.UUID
	return nil
}

func (m *memStore) GetUser(_ context.Context, uuid string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uuid]
	if !ok {
		return nil, errors.New("user not found")
	}
	return &u, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[username]
	if !ok {
		return nil, errors.New("user not found")
	}
	u := m.users[id]
	return &u, nil
}

func (m *memStore) UpdateUsername(_ context.Context, uuid, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uuid]
	if !ok {
		return nil, errors.New("user not found")
	}
	delete(m.byName, u.Username)
	u.Username = username
	m.users[uuid] = u
	m.byName[username] = uuid
	return &u, nil
}

func (m *memStore) CreateRoom(_ context.Context, r model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.UUID] = r
	return nil
}

func (m *memStore) GetRoom(_ context.Context, uuid string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[uuid]
	if !ok {
		return nil, errors.New("room not found")
	}
	return &r, nil
}

func (m *memStore) AddMember(_ context.Context, mem model.RoomMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[mem.Room.UUID] = append(m.members[mem.Room.UUID], mem)
	return nil
}

func (m *memStore) RoomMembers(_ context.Context, roomUUID string) ([]model.RoomMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roomMembersErr != nil {
		return nil, m.roomMembersErr
	}
	return append([]model.RoomMember(nil), m.members[roomUUID]...), nil
}

func (m *memStore) IsMember(_ context.Context, roomUUID, userUUID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members[roomUUID] {
		if mem.User.UUID == userUUID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListRoomsForUser(_ context.Context, userUUID string) ([]model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Room
	for _, mems := range m.members {
		for _, mem := range mems {
			if mem.User.UUID == userUUID {
				out = append(out, mem.Room)
			}
		}
	}
	return out, nil
}

func (m *memStore) CreateMessage(_ context.Context, msg model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createMessageErr != nil {
		return m.createMessageErr
	}
	m.messages[msg.Room.UUID] = append(m.messages[msg.Room.UUID], msg)
	return nil
}

func (m *memStore) ListMessages(_ context.Context, roomUUID string) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message(nil), m.messages[roomUUID]...), nil
}

// recordingNotifier captures broadcasts so tests can assert on op and
// recipient selection.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []broadcastCall
}

type broadcastCall struct {
	env  *gateway.Envelope
	pred gateway.Predicate
}

func (n *recordingNotifier) Broadcast(env *gateway.Envelope, pred gateway.Predicate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, broadcastCall{env: env, pred: pred})
}

func (n *recordingNotifier) byOp(op gateway.OpCode) []broadcastCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []broadcastCall
	for _, c := range n.calls {
		if c.env.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func newTestService() (*Service, *memStore, *recordingNotifier) {
	store := newMemStore()
	gw := &recordingNotifier{}
	svc := NewService(store, gw, security.DefaultOptions([]byte("test-secret")))
	return svc, store, gw
}

func seedUser(t *testing.T, svc *Service, username string) model.User {
	t.Helper()
	u, err := svc.Register(context.Background(), username, "pw-"+username)
	require.NoError(t, err)
	return u
}

func TestLoginRoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")

	token, got, err := svc.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	assert.Equal(t, alice.UUID, got.UUID)
	require.NotEmpty(t, token)

	resolved, err := svc.ValidateCredential(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice.UUID, resolved.UUID)
	assert.Equal(t, "alice", resolved.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	seedUser(t, svc, "alice")

	_, _, err := svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateCredentialRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ValidateCredential(context.Background(), "not.a.token")
	assert.Error(t, err)
}

func TestCreateRoomNotifiesCreatorOnly(t *testing.T) {
	svc, store, gw := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)

	members, err := store.RoomMembers(ctx, room.UUID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, alice.UUID, members[0].User.UUID)
	assert.True(t, members[0].HasElevatedPermissions)

	calls := gw.byOp(gateway.OpRoomCreate)
	require.Len(t, calls, 1)
	assert.True(t, calls[0].pred(alice.UUID))
	assert.False(t, calls[0].pred("someone-else"))
}

func TestCreateMessageFansOutToMembers(t *testing.T) {
	svc, store, gw := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")
	bob := seedUser(t, svc, "bob")
	eve := seedUser(t, svc, "eve")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.UUID, bob.UUID, false)
	require.NoError(t, err)

	msg, err := svc.CreateMessage(ctx, room.UUID, alice.UUID, "hello")
	require.NoError(t, err)
	assert.Equal(t, model.MessageDefault, msg.Type)

	stored, err := store.ListMessages(ctx, room.UUID)
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	assert.Equal(t, msg.UUID, stored[len(stored)-1].UUID)

	calls := gw.byOp(gateway.OpMessageCreate)
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]

	var got model.Message
	require.NoError(t, json.Unmarshal(last.env.Data, &got))
	assert.Equal(t, msg.UUID, got.UUID)
	assert.Equal(t, "hello", got.Content)

	assert.True(t, last.pred(alice.UUID))
	assert.True(t, last.pred(bob.UUID))
	assert.False(t, last.pred(eve.UUID), "non-member must not be selected")
}

func TestCreateMessageRejectsNonMember(t *testing.T) {
	svc, _, gw := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")
	eve := seedUser(t, svc, "eve")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)

	_, err = svc.CreateMessage(ctx, room.UUID, eve.UUID, "let me in")
	assert.ErrorIs(t, err, ErrNotAMember)
	assert.Empty(t, gw.byOp(gateway.OpMessageCreate))
}

func TestCreateMessageNoBroadcastWhenWriteFails(t *testing.T) {
	svc, store, gw := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)
	gw.calls = nil // ignore room-create and join notice traffic

	store.createMessageErr = errors.New("mongo down")
	_, err = svc.CreateMessage(ctx, room.UUID, alice.UUID, "hello")
	require.Error(t, err)
	assert.Empty(t, gw.calls, "nothing committed, nothing broadcast")
}

func TestCreateMessageCommitsEvenWhenMemberLookupFails(t *testing.T) {
	svc, store, gw := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)
	gw.calls = nil

	store.roomMembersErr = errors.New("mongo down")
	msg, err := svc.CreateMessage(ctx, room.UUID, alice.UUID, "hello")
	require.NoError(t, err, "the write succeeded, delivery is best effort")

	store.roomMembersErr = nil
	stored, err := store.ListMessages(ctx, room.UUID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, msg.UUID, stored[0].UUID)
	assert.Empty(t, gw.byOp(gateway.OpMessageCreate))
}

func TestJoinRoomNotifiesUserAndDropsSystemNotice(t *testing.T) {
	svc, store, gw := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")
	bob := seedUser(t, svc, "bob")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)

	member, err := svc.JoinRoom(ctx, room.UUID, bob.UUID, false)
	require.NoError(t, err)
	assert.Equal(t, bob.UUID, member.User.UUID)
	assert.False(t, member.HasElevatedPermissions)

	joins := gw.byOp(gateway.OpRoomJoin)
	require.Len(t, joins, 1)
	assert.True(t, joins[0].pred(bob.UUID))
	assert.False(t, joins[0].pred(alice.UUID))

	// the join inserts a system message that fans out to the room
	stored, err := store.ListMessages(ctx, room.UUID)
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	notice := stored[len(stored)-1]
	assert.Equal(t, model.MessageRoomJoin, notice.Type)
	assert.Equal(t, bob.UUID, notice.Author.UUID)

	notices := gw.byOp(gateway.OpMessageCreate)
	require.NotEmpty(t, notices)
	last := notices[len(notices)-1]
	assert.True(t, last.pred(alice.UUID))
	assert.True(t, last.pred(bob.UUID))
}

func TestJoinRoomRejectsDuplicateJoin(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")
	bob := seedUser(t, svc, "bob")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, room.UUID, bob.UUID, false)
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, room.UUID, bob.UUID, false)
	assert.ErrorIs(t, err, ErrAlreadyAMember)

	members, err := store.RoomMembers(ctx, room.UUID)
	require.NoError(t, err)
	count := 0
	for _, m := range members {
		if m.User.UUID == bob.UUID {
			count++
		}
	}
	assert.Equal(t, 1, count, "repeat join must not duplicate the membership")

	// the room list feeds the authenticated ack, so it must stay deduped
	rooms, err := svc.RoomsForUser(ctx, bob.UUID)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	stored, err := store.ListMessages(ctx, room.UUID)
	require.NoError(t, err)
	notices := 0
	for _, m := range stored {
		if m.Type == model.MessageRoomJoin && m.Author.UUID == bob.UUID {
			notices++
		}
	}
	assert.Equal(t, 1, notices, "repeat join must not emit a second join notice")
}

func TestCreatorCannotRejoinOwnRoom(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, room.UUID, alice.UUID, false)
	assert.ErrorIs(t, err, ErrAlreadyAMember)
}

func TestRoomLookup(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)

	got, err := svc.Room(ctx, room.UUID)
	require.NoError(t, err)
	assert.Equal(t, room.UUID, got.UUID)
	assert.Equal(t, "general", got.Name)

	_, err = svc.Room(ctx, "no-such-room")
	assert.Error(t, err)
}

func TestUpdateProfileNotifiesSelfOnly(t *testing.T) {
	svc, _, gw := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")

	updated, err := svc.UpdateProfile(ctx, alice.UUID, "alice2")
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)

	calls := gw.byOp(gateway.OpUserUpdate)
	require.Len(t, calls, 1)
	assert.True(t, calls[0].pred(alice.UUID))
	assert.False(t, calls[0].pred("anyone-else"))

	var got model.User
	require.NoError(t, json.Unmarshal(calls[0].env.Data, &got))
	assert.Equal(t, "alice2", got.Username)
}

func TestRoomMessagesRequiresMembership(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")
	eve := seedUser(t, svc, "eve")

	room, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)

	msg, err := svc.CreateMessage(ctx, room.UUID, alice.UUID, "hello")
	require.NoError(t, err)

	_, err = svc.RoomMessages(ctx, room.UUID, eve.UUID)
	assert.ErrorIs(t, err, ErrNotAMember)

	msgs, err := svc.RoomMessages(ctx, room.UUID, alice.UUID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.UUID, msgs[0].UUID)
}

func TestRoomsForUserReflectsMembership(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	alice := seedUser(t, svc, "alice")
	bob := seedUser(t, svc, "bob")

	r1, err := svc.CreateRoom(ctx, alice.UUID, "general")
	require.NoError(t, err)
	_, err = svc.CreateRoom(ctx, alice.UUID, "random")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, r1.UUID, bob.UUID, false)
	require.NoError(t, err)

	aliceRooms, err := svc.RoomsForUser(ctx, alice.UUID)
	require.NoError(t, err)
	assert.Len(t, aliceRooms, 2)

	bobRooms, err := svc.RoomsForUser(ctx, bob.UUID)
	require.NoError(t, err)
	require.Len(t, bobRooms, 1)
	assert.Equal(t, r1.UUID, bobRooms[0].UUID)
}
