package ps

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
)

var (
	ErrNotInitialized      = errors.New("persistence layer not initialized")
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrInvalidSnapshotName = errors.New("invalid snapshot name")
)

// Persistence stores database images in a Git repository. Every save or
// delete is one commit.
type Persistence struct {
	repo         *git.Repository
	mu           sync.RWMutex
	isMemoryMode bool
}

// IsInitialized returns true if the persistence layer has a valid repository
func (p *Persistence) IsInitialized() bool {
	return p != nil && p.repo != nil
}

func (p *Persistence) ensureInitialized() error {
	if !p.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

func NewMemoryPersistence() (*Persistence, error) {
	wt := memfs.New()
	storer := memory.NewStorage()

	repo, err := git.Init(storer, git.WithWorkTree(wt))
	if err != nil {
		return nil, fmt.Errorf("failed to init repository: %w", err)
	}

	return &Persistence{
		repo:         repo,
		isMemoryMode: true,
	}, nil
}

// NewFilePersistence opens the repository under baseDir, creating it when
// missing. When gitUrl is set the repository is cloned from it instead.
func NewFilePersistence(baseDir string, gitUrl *string) (*Persistence, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	wt := osfs.New(baseDir)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}

	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository

	if gitUrl != nil {
		repo, err = git.Clone(storer, wt, &git.CloneOptions{
			URL: *gitUrl,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to clone %s: %w", *gitUrl, err)
		}
	} else if _, statErr := os.Stat(fs.Root()); statErr != nil {
		repo, err = git.Init(storer, git.WithWorkTree(wt))
		if err != nil {
			return nil, fmt.Errorf("failed to init repository: %w", err)
		}
	} else {
		repo, err = git.Open(storer, wt)
		if err != nil {
			return nil, fmt.Errorf("failed to open repository: %w", err)
		}
	}

	return &Persistence{
		repo: repo,
	}, nil
}
