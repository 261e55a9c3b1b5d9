package gitlib

import (
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// Branches returns the union of local and remote branch names, short
// form (e.g. "main", "origin/feature-x"), deduplicated and sorted by
// discovery order from libgit2's branch iterator.
func (r *Repository) Branches() ([]string, error) {
	iter, err := r.repo.NewBranchIterator(git2go.BranchAll)
	if err != nil {
		return nil, fmt.Errorf("new branch iterator: %w", err)
	}
	defer iter.Free()

	seen := make(map[string]struct{})

	var names []string

	for {
		branch, _, nextErr := iter.Next()
		if nextErr != nil {
			break
		}

		name, nameErr := branch.Name()

		branch.Free()

		if nameErr != nil {
			continue
		}

		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if _, dup := seen[name]; dup {
			continue
		}

		seen[name] = struct{}{}

		names = append(names, name)
	}

	return names, nil
}

// DefaultBranch returns the short name of the branch HEAD points to.
func (r *Repository) DefaultBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	defer head.Free()

	if head.Branch() == nil {
		return "", nil
	}

	name, err := head.Branch().Name()
	if err != nil {
		return "", fmt.Errorf("branch name: %w", err)
	}

	return name, nil
}
