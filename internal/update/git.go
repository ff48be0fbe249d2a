// Package update implements the Update Engine's repo-mode path: cloning,
// fetching, and merging an app's tracked git repository, modeled on the
// original daemon's libgit2-based merge-analysis logic and reimplemented
// against go-git.
package update

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/loykin/sentryd/internal/apierr"
	"github.com/loykin/sentryd/internal/config"
)

// Source is the git location and credentials for one app's repo-mode
// update source.
type Source struct {
	URL        string
	Branch     string // branch to fetch and merge
	Checkout   string // ref to land on after fetching; empty means Branch
	RemoteName string // defaults to "origin"
	Force      bool   // force the initial clone's checkout
}

// AuthFrom builds a go-git transport.AuthMethod from an app's configured
// git credentials, following the precedence order: an SSH key file wins
// when configured (using the configured username, or "git" when none is
// set -- the username_from_url convention), otherwise a bearer token is
// used for HTTP(S) basic auth, otherwise the clone/fetch is attempted
// anonymously.
func AuthFrom(cfg config.AppGitConfig) (transport.AuthMethod, error) {
	if cfg.SSHKeyFile != "" {
		user := cfg.Username
		if user == "" {
			user = "git"
		}
		auth, err := gitssh.NewPublicKeysFromFile(user, cfg.SSHKeyFile, "")
		if err != nil {
			return nil, fmt.Errorf("update: load ssh key %s: %w", cfg.SSHKeyFile, err)
		}
		return auth, nil
	}
	if cfg.Token != "" {
		user := cfg.Username
		if user == "" {
			user = "sentryd"
		}
		return &githttp.BasicAuth{Username: user, Password: cfg.Token}, nil
	}
	return nil, nil
}

// Open opens an existing git repository at repoPath.
func Open(repoPath string) (*git.Repository, error) {
	return git.PlainOpen(repoPath)
}

// EnsureCloned clones src.URL into repoPath if it's not already a git
// repository there, otherwise opens the existing one.
func EnsureCloned(ctx context.Context, repoPath string, src Source, auth transport.AuthMethod) (*git.Repository, error) {
	if _, err := os.Stat(repoPath); err == nil {
		repo, err := git.PlainOpen(repoPath)
		if err == nil {
			return repo, nil
		}
	}

	remote := src.RemoteName
	if remote == "" {
		remote = "origin"
	}

	checkout := src.Checkout
	if checkout == "" {
		checkout = src.Branch
	}
	repo, err := git.PlainCloneContext(ctx, repoPath, false, &git.CloneOptions{
		URL:           src.URL,
		RemoteName:    remote,
		ReferenceName: refNameFor(checkout),
		Auth:          auth,
	})
	if err != nil {
		return nil, fmt.Errorf("update: clone %s: %w", src.URL, err)
	}

	if src.Force {
		wt, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("update: worktree: %w", err)
		}
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("update: head: %w", err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: head.Hash(), Force: true}); err != nil {
			return nil, fmt.Errorf("update: forced checkout: %w", err)
		}
	}
	return repo, nil
}

func refNameFor(checkout string) plumbing.ReferenceName {
	if checkout == "" {
		return ""
	}
	return plumbing.NewBranchReferenceName(checkout)
}

// Update fetches the latest commits for src and merges them into the
// repo's current branch, following fast-forward when possible and
// falling back to a three-way merge otherwise. It returns
// apierr.ErrMergeConflict (without modifying the worktree) when the merge
// can't complete automatically.
func Update(ctx context.Context, repo *git.Repository, src Source, auth transport.AuthMethod) error {
	remote := src.RemoteName
	if remote == "" {
		remote = "origin"
	}

	fetchOpts := &git.FetchOptions{RemoteName: remote, Auth: auth, Force: true}
	if src.Branch != "" {
		spec := fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", src.Branch, remote, src.Branch)
		fetchOpts.RefSpecs = []gitconfig.RefSpec{gitconfig.RefSpec(spec)}
	}
	err := repo.FetchContext(ctx, fetchOpts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("update: fetch: %w", err)
	}

	headRef, err := repo.Head()
	if err != nil {
		return fmt.Errorf("update: head: %w", err)
	}
	localCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return fmt.Errorf("update: resolve local commit: %w", err)
	}

	remoteRef, err := resolveRemoteRef(repo, remote, src.Checkout, src.Branch)
	if err != nil {
		return fmt.Errorf("update: resolve remote ref: %w", err)
	}
	remoteCommit, err := repo.CommitObject(remoteRef.Hash())
	if err != nil {
		return fmt.Errorf("update: resolve remote commit: %w", err)
	}

	if remoteCommit.Hash == localCommit.Hash {
		return nil
	}

	ff, err := isAncestor(localCommit, remoteCommit)
	if err != nil {
		return fmt.Errorf("update: ancestry check: %w", err)
	}
	if ff {
		return fastForward(repo, headRef, remoteCommit)
	}
	return normalMerge(repo, localCommit, remoteCommit)
}

// resolveRemoteRef picks the merge target: the explicitly requested
// checkout ref when one was given, otherwise the tip of the fetched
// branch (the FETCH_HEAD analog).
func resolveRemoteRef(repo *git.Repository, remote, checkout, branch string) (*plumbing.Reference, error) {
	if checkout != "" {
		if ref, err := repo.Reference(plumbing.NewRemoteReferenceName(remote, checkout), true); err == nil {
			return ref, nil
		}
		if ref, err := repo.Reference(plumbing.NewTagReferenceName(checkout), true); err == nil {
			return ref, nil
		}
	}
	if branch != "" {
		if ref, err := repo.Reference(plumbing.NewRemoteReferenceName(remote, branch), true); err == nil {
			return ref, nil
		}
	}
	head, err := repo.Reference(plumbing.HEAD, true)
	if err != nil {
		return nil, err
	}
	return repo.Reference(plumbing.NewRemoteReferenceName(remote, head.Name().Short()), true)
}

// isAncestor reports whether local is a direct ancestor of remote, i.e.
// whether the update is a fast-forward.
func isAncestor(local, remote *object.Commit) (bool, error) {
	if local.Hash == remote.Hash {
		return true, nil
	}
	iter := remote.Parents()
	isAnc := false
	err := iter.ForEach(func(p *object.Commit) error {
		if isAnc {
			return nil
		}
		if p.Hash == local.Hash {
			isAnc = true
			return nil
		}
		ok, err := isAncestor(local, p)
		if err != nil {
			return err
		}
		if ok {
			isAnc = true
		}
		return nil
	})
	return isAnc, err
}

func fastForward(repo *git.Repository, headRef *plumbing.Reference, remote *object.Commit) error {
	newRef := plumbing.NewHashReference(headRef.Name(), remote.Hash)
	if err := repo.Storer.SetReference(newRef); err != nil {
		return fmt.Errorf("update: fast-forward ref: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("update: worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: remote.Hash, Force: true}); err != nil {
		return fmt.Errorf("update: fast-forward checkout: %w", err)
	}
	return nil
}

// normalMerge performs a three-way merge of local and remote. go-git has
// no tree-merge primitive as rich as libgit2's merge_trees, so conflicts
// are detected by diffing each side's changes against the merge base: a
// path touched on both sides is a conflict. On conflict, the worktree is
// left untouched at local's commit and apierr.ErrMergeConflict is
// returned; on a clean merge, remote's tree wins for files changed only
// on that side, and the result is committed as a merge commit with both
// parents.
func normalMerge(repo *git.Repository, local, remote *object.Commit) error {
	base, err := mergeBase(repo, local, remote)
	if err != nil {
		return fmt.Errorf("update: merge base: %w", err)
	}

	localChanges, err := changedPaths(base, local)
	if err != nil {
		return fmt.Errorf("update: diff local: %w", err)
	}
	remoteChanges, err := changedPaths(base, remote)
	if err != nil {
		return fmt.Errorf("update: diff remote: %w", err)
	}

	for path := range remoteChanges {
		if localChanges[path] {
			return apierr.ErrMergeConflict
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("update: worktree: %w", err)
	}
	remoteTree, err := remote.Tree()
	if err != nil {
		return fmt.Errorf("update: remote tree: %w", err)
	}
	for path := range remoteChanges {
		if err := checkoutPath(wt, remoteTree, path); err != nil {
			return fmt.Errorf("update: apply %s: %w", path, err)
		}
	}

	sig := &object.Signature{Name: "sentryd", Email: "sentryd@localhost"}
	msg := fmt.Sprintf("Merge: %s into %s", remote.Hash, local.Hash)
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
		Parents:   []plumbing.Hash{local.Hash, remote.Hash},
	})
	if err != nil {
		return fmt.Errorf("update: commit merge: %w", err)
	}
	return nil
}

func mergeBase(repo *git.Repository, a, b *object.Commit) (*object.Commit, error) {
	bases, err := a.MergeBase(b)
	if err != nil {
		return nil, err
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("no common ancestor")
	}
	return bases[0], nil
}

func changedPaths(base, head *object.Commit) (map[string]bool, error) {
	baseTree, err := base.Tree()
	if err != nil {
		return nil, err
	}
	headTree, err := head.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := baseTree.Diff(headTree)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(changes))
	for _, c := range changes {
		from, to, err := c.Files()
		if err != nil {
			continue
		}
		if to != nil {
			out[to.Name] = true
		} else if from != nil {
			out[from.Name] = true
		}
	}
	return out, nil
}

func checkoutPath(wt *git.Worktree, tree *object.Tree, path string) error {
	f, err := tree.File(path)
	if err != nil {
		// Deleted in remote: remove it from the worktree.
		_, rmErr := wt.Remove(path)
		return rmErr
	}
	contents, err := f.Contents()
	if err != nil {
		return err
	}
	full := wt.Filesystem.Join(wt.Filesystem.Root(), path)
	if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
		return err
	}
	_, err = wt.Add(path)
	return err
}
