package update

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
)

// GitHubFeed reads the latest published release of a GitHub repository.
type GitHubFeed struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubFeed creates a feed for owner/repo. A nil client uses an
// unauthenticated default.
func NewGitHubFeed(client *github.Client, owner, repo string) *GitHubFeed {
	if client == nil {
		client = github.NewClient(nil)
	}
	return &GitHubFeed{client: client, owner: owner, repo: repo}
}

// Latest returns the newest release with a package asset for arch.
func (f *GitHubFeed) Latest(ctx context.Context, arch string) (*ReleaseInfo, error) {
	rel, resp, err := f.client.Repositories.GetLatestRelease(ctx, f.owner, f.repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest release of %s/%s: %w", f.owner, f.repo, err)
	}

	for _, asset := range rel.Assets {
		name := asset.GetName()
		if isPackage(name) && matchesArch(name, arch) {
			return &ReleaseInfo{
				Version:     rel.GetTagName(),
				DownloadURL: asset.GetBrowserDownloadURL(),
				Description: rel.GetBody(),
			}, nil
		}
	}
	return nil, nil
}
