package common

import (
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
)

// GetCommitHash returns the short commit hash of the repository the binary
// was started from, or "unknown" outside a checkout.
func GetCommitHash() string {
	if cwd, err := os.Getwd(); err == nil {
		if hash := commitHashFromPath(cwd); hash != "" {
			return shorten(hash)
		}
	}

	if exePath, err := os.Executable(); err == nil {
		if hash := commitHashFromPath(filepath.Dir(exePath)); hash != "" {
			return shorten(hash)
		}
	}

	return "unknown"
}

func shorten(hash string) string {
	if len(hash) >= 8 {
		return hash[:8]
	}
	return hash
}

func commitHashFromPath(path string) string {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
