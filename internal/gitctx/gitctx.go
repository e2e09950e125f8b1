package gitctx

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoUpstream is returned when the current branch tracks nothing.
var ErrNoUpstream = errors.New("current branch has no upstream")

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta() (RepoMeta, error) {
	root, err := gitOutput("rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput("rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// CommitInfo holds a commit and the revision its message points at.
type CommitInfo struct {
	SHA      string
	Subject  string
	Body     string
	Revision int // 0 when the message has no Differential Revision line
}

// Short returns the abbreviated SHA.
func (c CommitInfo) Short() string {
	if len(c.SHA) > 12 {
		return c.SHA[:12]
	}
	return c.SHA
}

// ListCommits returns commits in a revision range, oldest first.
func ListCommits(revRange string) ([]CommitInfo, error) {
	// NUL-separated records of "<sha>\n<raw message>".
	out, err := gitOutput("log", "-z", "--reverse", "--format=%H%n%B", revRange, "--")
	if err != nil {
		return nil, fmt.Errorf("git log %s: %w", revRange, err)
	}
	return parseLog(out), nil
}

func parseLog(out string) []CommitInfo {
	var commits []CommitInfo
	for _, record := range strings.Split(out, "\x00") {
		record = strings.TrimLeft(record, "\n")
		if record == "" {
			continue
		}
		sha, msg, _ := strings.Cut(record, "\n")
		msg = strings.TrimSpace(msg)
		subject, body, _ := strings.Cut(msg, "\n")
		commits = append(commits, CommitInfo{
			SHA:      strings.TrimSpace(sha),
			Subject:  strings.TrimSpace(subject),
			Body:     strings.TrimSpace(body),
			Revision: RevisionID(msg),
		})
	}
	return commits
}

var revisionLine = regexp.MustCompile(`(?m)^\s*Differential Revision:\s*\S*?/?D(\d+)\s*$`)

// RevisionID returns the revision number from the last
// "Differential Revision:" line of a commit message, or 0.
func RevisionID(message string) int {
	matches := revisionLine.FindAllStringSubmatch(message, -1)
	if len(matches) == 0 {
		return 0
	}
	id, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0
	}
	return id
}

// Upstream returns the tracking branch of HEAD, e.g. "origin/main".
func Upstream() (string, error) {
	out, err := gitOutput("rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{upstream}")
	if err != nil {
		return "", ErrNoUpstream
	}
	return strings.TrimSpace(out), nil
}

// MergeBase returns the best common ancestor of a and b.
func MergeBase(a, b string) (string, error) {
	out, err := gitOutput("merge-base", a, b)
	if err != nil {
		return "", fmt.Errorf("git merge-base %s %s: %w", a, b, err)
	}
	return strings.TrimSpace(out), nil
}

// StackRange builds the revision range of the local stack. An empty start
// means the merge base of end and its upstream; an empty end means HEAD.
func StackRange(start, end string) (string, error) {
	if end == "" {
		end = "HEAD"
	}
	if start == "" {
		upstream, err := Upstream()
		if err != nil {
			return "", fmt.Errorf("%w; pass an explicit start commit", err)
		}
		base, err := MergeBase(end, upstream)
		if err != nil {
			return "", err
		}
		start = base
	}
	return start + ".." + end, nil
}

// HookPath returns the path of a named hook in the current repository.
func HookPath(name string) (string, error) {
	out, err := gitOutput("rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", fmt.Errorf("not a git repository (git rev-parse --git-path failed)")
	}
	return filepath.Join(strings.TrimSpace(out), name), nil
}

func gitOutput(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
