package ps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"
)

const DefaultRemote = "origin"

type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeBasic AuthType = "basic"
)

// RemoteAuth holds credentials for pushing snapshots to or pulling them
// from a shared repository.
type RemoteAuth struct {
	Type       AuthType `yaml:"type"`
	Token      string   `yaml:"token"`
	KeyPath    string   `yaml:"key_path"`
	Passphrase string   `yaml:"passphrase"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
}

type Remote struct {
	Name string
	URLs []string
}

func (auth *RemoteAuth) authMethod() (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case AuthTypeNone, "":
		return nil, nil

	case AuthTypeToken:
		// any non-empty username works with token auth
		return &http.BasicAuth{
			Username: "git",
			Password: auth.Token,
		}, nil

	case AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			keyPath = filepath.Join(home, ".ssh", "id_rsa")
		}
		return ssh.NewPublicKeysFromFile("git", keyPath, auth.Passphrase)

	case AuthTypeBasic:
		return &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", auth.Type)
	}
}

func (p *Persistence) AddRemote(name, url string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if err != nil {
		return fmt.Errorf("failed to add remote '%s': %w", name, err)
	}
	return nil
}

func (p *Persistence) ListRemotes() ([]Remote, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	remotes, err := p.repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("failed to list remotes: %w", err)
	}

	result := make([]Remote, len(remotes))
	for i, r := range remotes {
		cfg := r.Config()
		result[i] = Remote{
			Name: cfg.Name,
			URLs: cfg.URLs,
		}
	}
	return result, nil
}

func (p *Persistence) RemoveRemote(name string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.repo.DeleteRemote(name); err != nil {
		return fmt.Errorf("failed to remove remote '%s': %w", name, err)
	}
	return nil
}

// Push publishes the current branch, and with it every snapshot, to a
// remote. An up to date remote is not an error.
func (p *Persistence) Push(remoteName string, auth *RemoteAuth) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	if remoteName == "" {
		remoteName = DefaultRemote
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	headRef, err := p.repo.Head()
	if err != nil {
		return fmt.Errorf("nothing to push: %w", err)
	}
	branch := headRef.Name()

	authMethod, err := auth.authMethod()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	refSpec := config.RefSpec(fmt.Sprintf("%s:%s", branch, branch))

	err = p.repo.Push(&git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       authMethod,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to push to '%s': %w", remoteName, err)
	}
	return nil
}

// Pull fast-forwards the current branch from a remote.
func (p *Persistence) Pull(remoteName string, auth *RemoteAuth) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	if remoteName == "" {
		remoteName = DefaultRemote
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	wt, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	authMethod, err := auth.authMethod()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	pullOpts := &git.PullOptions{
		RemoteName: remoteName,
		Auth:       authMethod,
	}
	if headRef, err := p.repo.Head(); err == nil && headRef.Name().IsBranch() {
		pullOpts.ReferenceName = headRef.Name()
	} else {
		pullOpts.ReferenceName = plumbing.Master
	}

	err = wt.Pull(pullOpts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to pull from '%s': %w", remoteName, err)
	}
	return nil
}
