package models

import "strings"

// Branch is a named git branch in a source repository.
type Branch struct {
	DisplayName string `json:"displayName"`
}

// GitHubRepo describes the repository behind a source.
type GitHubRepo struct {
	Owner         string   `json:"owner"`
	Repo          string   `json:"repo"`
	IsPrivate     bool     `json:"isPrivate,omitempty"`
	DefaultBranch *Branch  `json:"defaultBranch,omitempty"`
	Branches      []Branch `json:"branches,omitempty"`
}

// Source is a repository Jules can work against, named
// "sources/github/{owner}/{repo}".
type Source struct {
	Name        string      `json:"name"`
	ID          string      `json:"id,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	GitHubRepo  *GitHubRepo `json:"githubRepo,omitempty"`
}

// FallbackDisplayName derives "owner/repo" from the source name when the
// repo object is absent.
func (s *Source) FallbackDisplayName() string {
	if s.GitHubRepo != nil {
		return s.GitHubRepo.Owner + "/" + s.GitHubRepo.Repo
	}
	parts := strings.Split(s.Name, "/")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return s.Name
}
