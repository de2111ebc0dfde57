// Package op provides high-level operations on PagerDB database images and
// snapshots.
//
// The op package sits between the engine (db/) and the format reader
// (pager/) and snapshot store (ps/).
//
// # DatabaseOp
//
// DatabaseOp wraps one validated image:
//
//	dbOp, err := op.OpenDatabase("sample.db", data)
//	info := dbOp.Info()                   // page size, cell count, digest
//	tables := dbOp.TableNames()           // sorted user tables
//
// # SnapshotOp
//
// SnapshotOp saves images into the snapshot store and opens them again:
//
//	snapshots := op.NewSnapshotOp(persistence)
//	txn, err := snapshots.Save("nightly", dbOp, identity)
//	restored, err := snapshots.Load("nightly")
//	history, err := snapshots.History("nightly")
//	older, err := snapshots.LoadAt("nightly", history[1])
//
// # Architecture
//
// The layering is:
//
//	SQL Parser (sql/)    Engine (db/)
//	                          ↓
//	                 Operations (op/)     ← This package
//	                  ↓             ↓
//	        Format reader (pager/)  Snapshot store (ps/)
//	                                ↓
//	                         Git Storage (go-git)
package op
