// Package ps provides the snapshot store for PagerDB.
//
// The store is backed by Git, using go-git for storage. Database images are
// saved as blobs under snapshots/<name>.db and every save or delete creates
// a commit, so each snapshot keeps its full history.
//
// # Memory Persistence
//
// For testing or ephemeral stores:
//
//	persistence, err := ps.NewMemoryPersistence()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Persistence
//
// For persistent storage, optionally cloned from a shared repository:
//
//	persistence, err := ps.NewFilePersistence("/path/to/snapshots", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Snapshots
//
//	txn, _ := persistence.SaveSnapshot("nightly", image, identity)
//	image, _ = persistence.LoadSnapshot("nightly")
//	names, _ := persistence.ListSnapshots()
//	history, _ := persistence.SnapshotHistory("nightly")
//	old, _ := persistence.LoadSnapshotAt("nightly", history[len(history)-1])
//
// # Remotes
//
// Snapshots are shared by pushing the repository to a Git remote:
//
//	persistence.AddRemote("origin", "https://example.com/snapshots.git")
//	persistence.Push("origin", &ps.RemoteAuth{Type: ps.AuthTypeToken, Token: token})
package ps
