// Package room keeps room membership of the relay in a memory database.
// A room holds at most two members and exactly one of them is the
// initiator whenever it is not empty.
package room

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/lithammer/shortuuid/v4"
)

// Capacity is the maximum number of members in a room.
const Capacity = 2

// Below is the Error message for the registry.
var (
	ErrRoomFull       = errors.New("room is full")
	ErrMemberExists   = errors.New("member already exists")
	ErrMemberNotFound = errors.New("member not found")
)

// Registry is a memory-backed room registry.
type Registry struct {
	db *memdb.MemDB
}

// New creates a new registry.
func New() *Registry {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	return &Registry{db: db}
}

// Join adds m to its room. The first member of an empty room becomes the
// initiator and opens a new session id. It returns the stored member and
// every member of the room, the joiner included, in join order.
func (r *Registry) Join(m Member) (*Member, []*Member, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tblMembers, idxMemberID, m.ConnectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("find member by id: %w", err)
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%s: %w", m.ConnectionID, ErrMemberExists)
	}

	members, err := membersOf(txn, m.RoomID)
	if err != nil {
		return nil, nil, err
	}
	if len(members) >= Capacity {
		return nil, nil, fmt.Errorf("%s: %w", m.RoomID, ErrRoomFull)
	}

	info := m.DeepCopy()
	info.IsInitiator = !hasInitiator(members)
	if len(members) > 0 {
		info.SessionID = members[0].SessionID
	} else {
		info.SessionID = shortuuid.New()
	}
	if info.JoinedAt.IsZero() {
		info.JoinedAt = time.Now()
	}
	if err := txn.Insert(tblMembers, info); err != nil {
		return nil, nil, fmt.Errorf("insert member: %w", err)
	}
	txn.Commit()

	all := append(copyAll(members), info.DeepCopy())
	return info.DeepCopy(), all, nil
}

// Leave removes the member. When a single member remains and it is not
// the initiator it is promoted in the same transaction and returned as
// promoted.
func (r *Registry) Leave(connectionID string) (left *Member, remaining []*Member, promoted *Member, err error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblMembers, idxMemberID, connectionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("find member by id: %w", err)
	}
	if raw == nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", connectionID, ErrMemberNotFound)
	}
	info := raw.(*Member)
	if err := txn.Delete(tblMembers, info); err != nil {
		return nil, nil, nil, fmt.Errorf("delete member: %w", err)
	}

	members, err := membersOf(txn, info.RoomID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(members) == 1 && !members[0].IsInitiator {
		survivor := members[0].DeepCopy()
		survivor.IsInitiator = true
		if err := txn.Insert(tblMembers, survivor); err != nil {
			return nil, nil, nil, fmt.Errorf("promote member: %w", err)
		}
		members[0] = survivor
		promoted = survivor.DeepCopy()
	}
	txn.Commit()

	return info.DeepCopy(), copyAll(members), promoted, nil
}

// Member finds a member by connection id.
func (r *Registry) Member(connectionID string) (*Member, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblMembers, idxMemberID, connectionID)
	if err != nil {
		return nil, fmt.Errorf("find member by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", connectionID, ErrMemberNotFound)
	}
	return raw.(*Member).DeepCopy(), nil
}

// Members returns the members of roomID in join order.
func (r *Registry) Members(roomID string) ([]*Member, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	members, err := membersOf(txn, roomID)
	if err != nil {
		return nil, err
	}
	return copyAll(members), nil
}

func membersOf(txn *memdb.Txn, roomID string) ([]*Member, error) {
	it, err := txn.Get(tblMembers, idxMemberRoom, roomID)
	if err != nil {
		return nil, fmt.Errorf("find members by room: %w", err)
	}
	var members []*Member
	for raw := it.Next(); raw != nil; raw = it.Next() {
		members = append(members, raw.(*Member))
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

func hasInitiator(members []*Member) bool {
	for _, m := range members {
		if m.IsInitiator {
			return true
		}
	}
	return false
}

func copyAll(members []*Member) []*Member {
	out := make([]*Member, 0, len(members))
	for _, m := range members {
		out = append(out, m.DeepCopy())
	}
	return out
}
