package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

type Transaction struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>" format
	Message string
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}

func transactionFromCommit(commit *object.Commit) Transaction {
	author := ""
	if commit.Author.Name != "" || commit.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email)
	}

	return Transaction{
		Id:      commit.Hash.String(),
		When:    commit.Committer.When,
		Author:  author,
		Message: commit.Message,
	}
}

// LatestTransaction returns the HEAD commit, or the zero Transaction when
// nothing has been committed.
func (p *Persistence) LatestTransaction() Transaction {
	if !p.IsInitialized() {
		return Transaction{}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	headRef, err := p.repo.Head()
	if err != nil || headRef == nil {
		return Transaction{}
	}

	commit, err := p.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Transaction{}
	}

	return transactionFromCommit(commit)
}

// history walks the log from HEAD, newest first, keeping commits that
// changed filePath.
func (p *Persistence) history(filePath string) ([]Transaction, error) {
	headRef, err := p.repo.Head()
	if err != nil {
		return nil, nil
	}

	cIter, err := p.repo.Log(&git.LogOptions{From: headRef.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer cIter.Close()

	var transactions []Transaction
	err = cIter.ForEach(func(c *object.Commit) error {
		current, err := blobHashAt(c, filePath)
		if err != nil {
			return err
		}

		previous := plumbing.ZeroHash
		if c.NumParents() > 0 {
			parent, err := c.Parent(0)
			if err != nil {
				return err
			}
			previous, err = blobHashAt(parent, filePath)
			if err != nil {
				return err
			}
		}

		if current != previous {
			transactions = append(transactions, transactionFromCommit(c))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk log: %w", err)
	}

	return transactions, nil
}

// blobHashAt returns the hash stored at filePath in the commit's tree, or
// ZeroHash when the path is absent.
func blobHashAt(commit *object.Commit, filePath string) (plumbing.Hash, error) {
	tree, err := commit.Tree()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	entry, err := tree.FindEntry(filePath)
	if err != nil {
		return plumbing.ZeroHash, nil
	}
	return entry.Hash, nil
}
