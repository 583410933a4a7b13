package room_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecall/relay/room"
	"telecall/types/message"
)

func member(conn, roomID string, at time.Time) room.Member {
	return room.Member{
		ConnectionID: conn,
		RoomID:       roomID,
		UserID:       "user-" + conn,
		Role:         message.RolePatient,
		JoinedAt:     at,
	}
}

func TestJoin(t *testing.T) {
	now := time.Now()

	t.Run("given an empty room when joining then the member becomes initiator", func(t *testing.T) {
		reg := room.New()
		m, all, err := reg.Join(member("a", "r1", now))
		require.NoError(t, err)
		assert.True(t, m.IsInitiator)
		assert.NotEmpty(t, m.SessionID)
		require.Len(t, all, 1)
		assert.Equal(t, "a", all[0].ConnectionID)
	})

	t.Run("given one member when the second joins then it is not initiator and shares the session", func(t *testing.T) {
		reg := room.New()
		first, _, err := reg.Join(member("a", "r1", now))
		require.NoError(t, err)
		second, all, err := reg.Join(member("b", "r1", now.Add(time.Second)))
		require.NoError(t, err)

		assert.False(t, second.IsInitiator)
		assert.Equal(t, first.SessionID, second.SessionID)
		require.Len(t, all, 2)
		assert.Equal(t, []string{"a", "b"}, []string{all[0].ConnectionID, all[1].ConnectionID})
	})

	t.Run("given a full room when a third joins then it is rejected", func(t *testing.T) {
		reg := room.New()
		_, _, err := reg.Join(member("a", "r1", now))
		require.NoError(t, err)
		_, _, err = reg.Join(member("b", "r1", now.Add(time.Second)))
		require.NoError(t, err)

		_, _, err = reg.Join(member("c", "r1", now.Add(2*time.Second)))
		assert.ErrorIs(t, err, room.ErrRoomFull)

		members, err := reg.Members("r1")
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})

	t.Run("given a known connection when joining again then it is rejected", func(t *testing.T) {
		reg := room.New()
		_, _, err := reg.Join(member("a", "r1", now))
		require.NoError(t, err)
		_, _, err = reg.Join(member("a", "r2", now))
		assert.ErrorIs(t, err, room.ErrMemberExists)
	})

	t.Run("given two rooms when joining then rooms are isolated", func(t *testing.T) {
		reg := room.New()
		a, _, err := reg.Join(member("a", "r1", now))
		require.NoError(t, err)
		b, _, err := reg.Join(member("b", "r2", now))
		require.NoError(t, err)
		assert.True(t, a.IsInitiator)
		assert.True(t, b.IsInitiator)
		assert.NotEqual(t, a.SessionID, b.SessionID)
	})
}

func TestLeave(t *testing.T) {
	now := time.Now()

	t.Run("given two members when the initiator leaves then the survivor is promoted", func(t *testing.T) {
		reg := room.New()
		_, _, err := reg.Join(member("a", "r1", now))
		require.NoError(t, err)
		_, _, err = reg.Join(member("b", "r1", now.Add(time.Second)))
		require.NoError(t, err)

		left, remaining, promoted, err := reg.Leave("a")
		require.NoError(t, err)
		assert.Equal(t, "a", left.ConnectionID)
		require.Len(t, remaining, 1)
		require.NotNil(t, promoted)
		assert.Equal(t, "b", promoted.ConnectionID)
		assert.True(t, remaining[0].IsInitiator)

		stored, err := reg.Member("b")
		require.NoError(t, err)
		assert.True(t, stored.IsInitiator)
	})

	t.Run("given two members when the non-initiator leaves then nobody is promoted", func(t *testing.T) {
		reg := room.New()
		_, _, err := reg.Join(member("a", "r1", now))
		require.NoError(t, err)
		_, _, err = reg.Join(member("b", "r1", now.Add(time.Second)))
		require.NoError(t, err)

		_, remaining, promoted, err := reg.Leave("b")
		require.NoError(t, err)
		assert.Nil(t, promoted)
		require.Len(t, remaining, 1)
		assert.True(t, remaining[0].IsInitiator)
	})

	t.Run("given a promoted survivor when a new member joins then it is not initiator", func(t *testing.T) {
		reg := room.New()
		_, _, err := reg.Join(member("a", "r1", now))
		require.NoError(t, err)
		_, _, err = reg.Join(member("b", "r1", now.Add(time.Second)))
		require.NoError(t, err)
		_, _, _, err = reg.Leave("a")
		require.NoError(t, err)

		c, _, err := reg.Join(member("c", "r1", now.Add(2*time.Second)))
		require.NoError(t, err)
		assert.False(t, c.IsInitiator)
	})

	t.Run("given an unknown connection when leaving then it reports not found", func(t *testing.T) {
		reg := room.New()
		_, _, _, err := reg.Leave("ghost")
		assert.ErrorIs(t, err, room.ErrMemberNotFound)
	})

	t.Run("given the last member when leaving then the room is empty", func(t *testing.T) {
		reg := room.New()
		_, _, err := reg.Join(member("a", "r1", now))
		require.NoError(t, err)
		_, remaining, promoted, err := reg.Leave("a")
		require.NoError(t, err)
		assert.Empty(t, remaining)
		assert.Nil(t, promoted)

		members, err := reg.Members("r1")
		require.NoError(t, err)
		assert.Empty(t, members)
	})
}

func TestMemberCopy(t *testing.T) {
	t.Run("given a returned member when mutating it then the registry is unchanged", func(t *testing.T) {
		reg := room.New()
		m, _, err := reg.Join(member("a", "r1", time.Now()))
		require.NoError(t, err)
		m.IsInitiator = false

		stored, err := reg.Member("a")
		require.NoError(t, err)
		assert.True(t, stored.IsInitiator)
		assert.Equal(t, message.Participant{
			ConnectionID: "a",
			UserID:       "user-a",
			Role:         message.RolePatient,
			IsInitiator:  true,
		}, stored.Participant())
	})
}
