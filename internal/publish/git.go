// Package publish commits updated consult artifacts and pipeline data to the
// enclosing git repository via the git CLI.
package publish

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/medkitt/medwatch/internal/types"
)

// Publisher runs git against a single repository.
type Publisher struct {
	// gitPath is the path to the git executable
	gitPath  string
	repoPath string
	now      func() time.Time
}

// New creates a publisher for the repository at repoPath.
// It verifies that git is available on the system.
func New(ctx context.Context, repoPath string) (*Publisher, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	// Verify git works
	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}

	return &Publisher{gitPath: gitPath, repoPath: repoPath, now: time.Now}, nil
}

// Status is the parsed porcelain status of the repository.
type Status struct {
	Modified   []string
	Untracked  []string
	HasChanges bool
}

// GetStatus returns the repository status in porcelain form.
func (p *Publisher) GetStatus(ctx context.Context) (*Status, error) {
	cmd := exec.CommandContext(ctx, p.gitPath, "-C", p.repoPath, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git status failed in %s: %w", p.repoPath, err)
	}

	status := &Status{}
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 3 {
			continue
		}
		if strings.HasPrefix(line[0:2], "??") {
			status.Untracked = append(status.Untracked, line[3:])
		} else {
			status.Modified = append(status.Modified, line[3:])
		}
		status.HasChanges = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse git status: %w", err)
	}
	return status, nil
}

// CommitUpdates stages the given paths and commits them. A clean tree commits
// nothing and returns an empty hash without error. The returned hash is the
// new HEAD.
func (p *Publisher) CommitUpdates(ctx context.Context, paths []string, message string) (string, error) {
	if message == "" {
		message = fmt.Sprintf("[AUTO-SCRAPER] Update consults - %s", p.now().Format(time.RFC3339))
	}

	for _, path := range paths {
		addCmd := exec.CommandContext(ctx, p.gitPath, "-C", p.repoPath, "add", path)
		if err := addCmd.Run(); err != nil {
			return "", &types.PublishError{Err: fmt.Errorf("git add %s failed: %w", path, err)}
		}
	}

	// Nothing staged means nothing to publish.
	checkCmd := exec.CommandContext(ctx, p.gitPath, "-C", p.repoPath, "diff", "--cached", "--quiet")
	if err := checkCmd.Run(); err == nil {
		return "", nil
	}

	commitCmd := exec.CommandContext(ctx, p.gitPath, "-C", p.repoPath, "commit", "-m", message)
	if err := commitCmd.Run(); err != nil {
		return "", &types.PublishError{Err: fmt.Errorf("git commit failed in %s: %w", p.repoPath, err)}
	}

	hashCmd := exec.CommandContext(ctx, p.gitPath, "-C", p.repoPath, "rev-parse", "HEAD")
	hashOutput, err := hashCmd.Output()
	if err != nil {
		return "", &types.PublishError{Err: fmt.Errorf("failed to get commit hash in %s: %w", p.repoPath, err)}
	}
	return strings.TrimSpace(string(hashOutput)), nil
}
