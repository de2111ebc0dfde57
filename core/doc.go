// Package core provides core types used throughout PagerDB.
//
// # Identity
//
// Identity identifies the author of snapshots (Git commit author) and the
// principal of an authenticated server session:
//
//	identity := core.Identity{
//	    Name:  "John Doe",
//	    Email: "john@example.com",
//	}
//
// # Database Info
//
// DatabaseInfo summarises one opened database image. It is what the engine
// reports for .dbinfo and what the server and bindings serialise:
//
//	info := core.DatabaseInfo{
//	    Source:     "sample.db",
//	    PageSize:   4096,
//	    CellCount:  3,
//	    TableCount: 2,
//	}
package core
