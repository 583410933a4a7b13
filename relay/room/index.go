package room

import "github.com/hashicorp/go-memdb"

const (
	tblMembers = "members"
)

const (
	idxMemberID   = "id"
	idxMemberRoom = "room_id"
)

// schema is the schema of the room registry.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblMembers: {
			Name: tblMembers,
			Indexes: map[string]*memdb.IndexSchema{
				idxMemberID: {
					Name:    idxMemberID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ConnectionID"},
				},
				idxMemberRoom: {
					Name:    idxMemberRoom,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "RoomID"},
				},
			},
		},
	},
}
