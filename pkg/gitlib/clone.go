package gitlib

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	git2go "github.com/libgit2/git2go/v34"
)

// CloneOptions configures a repository clone.
type CloneOptions struct {
	// Bare clones a bare repository (no working tree checkout).
	Bare bool
}

// Clone clones the repository at url into path with full history, no
// shallow cutoff. libgit2's native clone is tried first; if it fails
// (unsupported transport, auth scheme, LFS smudge filters it does not
// implement) we fall back to shelling out to the system git binary,
// which between the two covers the overwhelming majority of hosts this
// runs against.
func Clone(ctx context.Context, url, path string, opts *CloneOptions) (*Repository, error) {
	if opts == nil {
		opts = &CloneOptions{}
	}

	repo, nativeErr := cloneNative(url, path, opts)
	if nativeErr == nil {
		return repo, nil
	}

	if cliErr := cloneCLI(ctx, url, path, opts); cliErr != nil {
		return nil, fmt.Errorf("clone %s: native clone failed (%w), cli fallback failed (%w)", url, nativeErr, cliErr)
	}

	return OpenRepository(path)
}

func cloneNative(url, path string, opts *CloneOptions) (*Repository, error) {
	cloneOpts := &git2go.CloneOptions{
		Bare: opts.Bare,
		FetchOptions: &git2go.FetchOptions{
			DownloadTags: git2go.DownloadTagsAll,
		},
	}

	repo, err := git2go.Clone(url, path, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("native clone: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

func cloneCLI(ctx context.Context, url, path string, opts *CloneOptions) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("clear clone target: %w", err)
	}

	args := []string{"clone", "--no-single-branch"}
	if opts.Bare {
		args = append(args, "--bare")
	}

	args = append(args, url, path)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone: %w: %s", err, out)
	}

	return nil
}
