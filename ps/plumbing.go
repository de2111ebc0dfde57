package ps

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v6/util"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/nickyhof/PagerDB/core"
)

// createBlob writes data to the object store without touching the worktree.
func (p *Persistence) createBlob(data []byte) (plumbing.Hash, error) {
	obj := p.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}

	return hash, nil
}

// getCurrentTree returns the tree hash of HEAD, or ZeroHash before the
// first commit.
func (p *Persistence) getCurrentTree() (plumbing.Hash, error) {
	headRef, err := p.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, nil
	}

	commit, err := p.repo.CommitObject(headRef.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get head commit: %w", err)
	}

	return commit.TreeHash, nil
}

func (p *Persistence) getTreeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)

	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}

	tree, err := object.GetTree(p.repo.Storer, treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}

	return entries, nil
}

func (p *Persistence) buildTreeFromEntries(entries map[string]object.TreeEntry) (plumbing.Hash, error) {
	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}

	entrySlice := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		entrySlice = append(entrySlice, entry)
	}

	// Git orders directories as if their names ended in a slash
	sort.Slice(entrySlice, func(i, j int) bool {
		nameI := entrySlice[i].Name
		nameJ := entrySlice[j].Name
		if entrySlice[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if entrySlice[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})

	tree := &object.Tree{Entries: entrySlice}

	obj := p.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	return hash, nil
}

// updateTreePath sets the blob at a slash separated path and returns the new
// root tree hash.
func (p *Persistence) updateTreePath(rootTreeHash plumbing.Hash, filePath string, blobHash plumbing.Hash) (plumbing.Hash, error) {
	return p.updateTreePathRecursive(rootTreeHash, strings.Split(filePath, "/"), blobHash)
}

func (p *Persistence) updateTreePathRecursive(treeHash plumbing.Hash, pathParts []string, blobHash plumbing.Hash) (plumbing.Hash, error) {
	entries, err := p.getTreeEntries(treeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	name := pathParts[0]

	if len(pathParts) == 1 {
		entries[name] = object.TreeEntry{
			Name: name,
			Mode: filemode.Regular,
			Hash: blobHash,
		}
		return p.buildTreeFromEntries(entries)
	}

	subTreeHash := plumbing.ZeroHash
	if existing, ok := entries[name]; ok && existing.Mode == filemode.Dir {
		subTreeHash = existing.Hash
	}

	newSubTreeHash, err := p.updateTreePathRecursive(subTreeHash, pathParts[1:], blobHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	entries[name] = object.TreeEntry{
		Name: name,
		Mode: filemode.Dir,
		Hash: newSubTreeHash,
	}
	return p.buildTreeFromEntries(entries)
}

// deleteTreePath removes the blob at filePath. Empty directories are pruned
// and an empty root yields ZeroHash.
func (p *Persistence) deleteTreePath(rootTreeHash plumbing.Hash, filePath string) (plumbing.Hash, error) {
	return p.deleteTreePathRecursive(rootTreeHash, strings.Split(filePath, "/"))
}

func (p *Persistence) deleteTreePathRecursive(treeHash plumbing.Hash, pathParts []string) (plumbing.Hash, error) {
	entries, err := p.getTreeEntries(treeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	name := pathParts[0]

	if len(pathParts) == 1 {
		delete(entries, name)
		return p.buildTreeFromEntries(entries)
	}

	existing, ok := entries[name]
	if !ok || existing.Mode != filemode.Dir {
		return treeHash, nil
	}

	newSubTreeHash, err := p.deleteTreePathRecursive(existing.Hash, pathParts[1:])
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if newSubTreeHash == plumbing.ZeroHash {
		delete(entries, name)
	} else {
		entries[name] = object.TreeEntry{
			Name: name,
			Mode: filemode.Dir,
			Hash: newSubTreeHash,
		}
	}
	return p.buildTreeFromEntries(entries)
}

// createCommitDirect commits treeHash on top of HEAD and moves the current
// branch to it.
func (p *Persistence) createCommitDirect(treeHash plumbing.Hash, identity core.Identity, message string) (Transaction, error) {
	actualTreeHash := treeHash
	if treeHash == plumbing.ZeroHash {
		emptyTree := &object.Tree{Entries: []object.TreeEntry{}}
		obj := p.repo.Storer.NewEncodedObject()
		if err := emptyTree.Encode(obj); err != nil {
			return Transaction{}, fmt.Errorf("failed to encode empty tree: %w", err)
		}
		var err error
		actualTreeHash, err = p.repo.Storer.SetEncodedObject(obj)
		if err != nil {
			return Transaction{}, fmt.Errorf("failed to store empty tree: %w", err)
		}
	}

	var parentHashes []plumbing.Hash
	headRef, err := p.repo.Head()
	if err == nil {
		parentHashes = []plumbing.Hash{headRef.Hash()}
	}

	sig := object.Signature{
		Name:  identity.Name,
		Email: identity.Email,
		When:  time.Now(),
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     actualTreeHash,
		ParentHashes: parentHashes,
	}

	obj := p.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return Transaction{}, fmt.Errorf("failed to encode commit: %w", err)
	}

	commitHash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to store commit: %w", err)
	}

	branchName := plumbing.Master
	if headRef != nil && headRef.Name().IsBranch() {
		branchName = headRef.Name()
	}

	ref := plumbing.NewHashReference(branchName, commitHash)
	if err := p.repo.Storer.SetReference(ref); err != nil {
		return Transaction{}, fmt.Errorf("failed to update HEAD: %w", err)
	}

	return Transaction{
		Id:      commitHash.String(),
		When:    sig.When,
		Author:  identity.String(),
		Message: message,
	}, nil
}

// syncWorktree checks HEAD out into the worktree so a file backed store can
// be browsed with plain git. Memory stores are read from the tree only.
func (p *Persistence) syncWorktree() error {
	if p.isMemoryMode {
		return nil
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return err
	}

	headRef, err := p.repo.Head()
	if err != nil {
		return err
	}

	commit, err := p.repo.CommitObject(headRef.Hash())
	if err != nil {
		return err
	}

	tree, err := commit.Tree()
	if err != nil {
		return err
	}

	// reset refuses to remove the base dir on an empty tree
	if len(tree.Entries) == 0 {
		fs := wt.Filesystem
		entries, err := fs.ReadDir("/")
		if err != nil {
			return nil
		}
		for _, entry := range entries {
			if entry.Name() != ".git" {
				if err := util.RemoveAll(fs, entry.Name()); err != nil {
					return err
				}
			}
		}
		return nil
	}

	return wt.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: headRef.Hash(),
	})
}

// writeFile commits data at filePath.
func (p *Persistence) writeFile(filePath string, data []byte, identity core.Identity, message string) (Transaction, error) {
	currentTree, err := p.getCurrentTree()
	if err != nil {
		return Transaction{}, err
	}

	blobHash, err := p.createBlob(data)
	if err != nil {
		return Transaction{}, err
	}

	newTree, err := p.updateTreePath(currentTree, filePath, blobHash)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to update tree: %w", err)
	}

	txn, err := p.createCommitDirect(newTree, identity, message)
	if err != nil {
		return Transaction{}, err
	}

	if err := p.syncWorktree(); err != nil {
		return Transaction{}, fmt.Errorf("failed to sync worktree: %w", err)
	}

	return txn, nil
}

// deletePath commits the removal of filePath.
func (p *Persistence) deletePath(filePath string, identity core.Identity, message string) (Transaction, error) {
	currentTree, err := p.getCurrentTree()
	if err != nil {
		return Transaction{}, err
	}

	newTree, err := p.deleteTreePath(currentTree, filePath)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to delete %s: %w", filePath, err)
	}

	txn, err := p.createCommitDirect(newTree, identity, message)
	if err != nil {
		return Transaction{}, err
	}

	if err := p.syncWorktree(); err != nil {
		return Transaction{}, fmt.Errorf("failed to sync worktree: %w", err)
	}

	return txn, nil
}

// treeAt returns the root tree of a commit, or of HEAD when hash is ZeroHash.
// A repository without commits has no tree and returns nil.
func (p *Persistence) treeAt(hash plumbing.Hash) (*object.Tree, error) {
	if hash == plumbing.ZeroHash {
		headRef, err := p.repo.Head()
		if err != nil {
			return nil, nil
		}
		hash = headRef.Hash()
	}

	commit, err := p.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", hash, err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	return tree, nil
}

// readFile reads a blob from the tree of the given commit.
func (p *Persistence) readFile(hash plumbing.Hash, filePath string) ([]byte, error) {
	tree, err := p.treeAt(hash)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, object.ErrFileNotFound
	}

	file, err := tree.File(filePath)
	if err != nil {
		return nil, err
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read contents: %w", err)
	}

	return []byte(content), nil
}

// listFiles returns the names of regular files directly under dirPath at
// HEAD. A missing directory is empty.
func (p *Persistence) listFiles(dirPath string) ([]string, error) {
	tree, err := p.treeAt(plumbing.ZeroHash)
	if err != nil || tree == nil {
		return nil, err
	}

	dir, err := tree.Tree(dirPath)
	if errors.Is(err, object.ErrDirectoryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dirPath, err)
	}

	var names []string
	for _, entry := range dir.Entries {
		if entry.Mode.IsFile() {
			names = append(names, entry.Name)
		}
	}
	return names, nil
}
