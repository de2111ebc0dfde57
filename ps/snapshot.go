package ps

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/nickyhof/PagerDB/core"
)

const (
	snapshotDir = "snapshots"
	snapshotExt = ".db"
)

// SnapshotPath returns the repository path a snapshot is stored under.
func SnapshotPath(name string) string {
	return path.Join(snapshotDir, name+snapshotExt)
}

// ValidateSnapshotName rejects names that would escape the snapshot
// directory or not form a single path element.
func ValidateSnapshotName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidSnapshotName)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidSnapshotName, name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains '..'", ErrInvalidSnapshotName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with '.'", ErrInvalidSnapshotName, name)
	}
	return nil
}

// SaveSnapshot commits data as the snapshot name, replacing any previous
// content under that name.
func (p *Persistence) SaveSnapshot(name string, data []byte, identity core.Identity) (Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return Transaction{}, err
	}
	if err := ValidateSnapshotName(name); err != nil {
		return Transaction{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writeFile(SnapshotPath(name), data, identity, fmt.Sprintf("Saving snapshot %s", name))
}

// LoadSnapshot returns the snapshot content at HEAD.
func (p *Persistence) LoadSnapshot(name string) ([]byte, error) {
	return p.LoadSnapshotAt(name, Transaction{})
}

// LoadSnapshotAt returns the snapshot content as of a past transaction. The
// zero Transaction means HEAD.
func (p *Persistence) LoadSnapshotAt(name string, asof Transaction) ([]byte, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := ValidateSnapshotName(name); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	hash := plumbing.ZeroHash
	if asof.Id != "" {
		hash = plumbing.NewHash(asof.Id)
	}

	data, err := p.readFile(hash, SnapshotPath(name))
	if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) || errors.Is(err, object.ErrEntryNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ListSnapshots returns the snapshot names at HEAD in ascending order.
func (p *Persistence) ListSnapshots() ([]string, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	files, err := p.listFiles(snapshotDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if name, ok := strings.CutSuffix(file, snapshotExt); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DeleteSnapshot commits the removal of a snapshot.
func (p *Persistence) DeleteSnapshot(name string, identity core.Identity) (Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return Transaction{}, err
	}
	if err := ValidateSnapshotName(name); err != nil {
		return Transaction{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.readFile(plumbing.ZeroHash, SnapshotPath(name)); err != nil {
		return Transaction{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}

	return p.deletePath(SnapshotPath(name), identity, fmt.Sprintf("Deleting snapshot %s", name))
}

// SnapshotHistory lists the transactions that touched a snapshot, newest
// first.
func (p *Persistence) SnapshotHistory(name string) ([]Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	if err := ValidateSnapshotName(name); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.history(SnapshotPath(name))
}
