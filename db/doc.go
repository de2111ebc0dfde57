// Package db provides the command engine for PagerDB.
//
// The Engine type is the main entry point. It opens database images from
// local files, HTTP, S3 or the snapshot store and answers dot commands
// about them. SELECT statements are parsed into a plan but not executed.
//
// # Engine Usage
//
//	engine := db.NewEngine(persistence, identity)
//	if _, err := engine.Open(ctx, "s3://bucket/sample.db.xz"); err != nil {
//	    log.Fatal(err)
//	}
//	result, err := engine.Execute(".tables")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result.Display(os.Stdout)
//
// # Commands
//
//	.dbinfo              page size and schema cell count
//	.tables              user tables, sorted
//	.open SOURCE         open another image
//	.snapshot NAME       save the open image in the snapshot store
//	.snapshots           list stored snapshots
//	.history NAME        transactions that touched a snapshot
//	.forget NAME         delete a snapshot
//	.export DEST         write the open image to a path or s3:// URL
//	.remote add NAME URL add a Git remote to the snapshot store
//	.remote list         list Git remotes
//	.remote remove NAME  remove a Git remote
//	.push [REMOTE]       push the snapshot store to a Git remote
//	.pull [REMOTE]       pull the snapshot store from a Git remote
//	.cache               catalog cache statistics
//	SELECT ...           parse and show the plan
//
// # Result Types
//
//   - QueryResult: small tables such as .snapshots, .history and .remote list
//   - InfoResult: .dbinfo and .open
//   - TablesResult: .tables
//   - PlanResult: SELECT statements
//   - SnapshotResult: .snapshot and .forget
//   - MessageResult: .export, .remote add/remove, .push and .pull
package db
