package op

import (
	"fmt"

	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/ps"
)

// SnapshotScheme prefixes sources that name a stored snapshot.
const SnapshotScheme = "snapshot://"

type SnapshotOp struct {
	Persistence *ps.Persistence
}

func NewSnapshotOp(persistence *ps.Persistence) *SnapshotOp {
	return &SnapshotOp{Persistence: persistence}
}

// Save stores the image of database under name.
func (op *SnapshotOp) Save(name string, database *DatabaseOp, identity core.Identity) (ps.Transaction, error) {
	return op.Persistence.SaveSnapshot(name, database.Bytes(), identity)
}

// Load opens a stored snapshot as a database.
func (op *SnapshotOp) Load(name string) (*DatabaseOp, error) {
	return op.LoadAt(name, ps.Transaction{})
}

// LoadAt opens a snapshot as it was after the given transaction.
func (op *SnapshotOp) LoadAt(name string, asof ps.Transaction) (*DatabaseOp, error) {
	data, err := op.Persistence.LoadSnapshotAt(name, asof)
	if err != nil {
		return nil, err
	}

	database, err := OpenDatabase(SnapshotScheme+name, data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s is not a valid database: %w", name, err)
	}
	return database, nil
}

func (op *SnapshotOp) List() ([]string, error) {
	return op.Persistence.ListSnapshots()
}

func (op *SnapshotOp) History(name string) ([]ps.Transaction, error) {
	return op.Persistence.SnapshotHistory(name)
}

func (op *SnapshotOp) Delete(name string, identity core.Identity) (ps.Transaction, error) {
	return op.Persistence.DeleteSnapshot(name, identity)
}
