package service

import (
	"context"
	"sort"
	"strings"
)

// DefaultSearchLimit caps a search result so a broad query cannot fan out
// over a large network.
const DefaultSearchLimit = 20

// Candidate is one user a search resolved from the requester's network.
type Candidate struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Following   bool   `json:"following"`
}

// SearchIndex resolves a text query to users from the requester's network
// for starting new conversations.
type SearchIndex struct {
	Graph    Graph
	Identity Directory
	Limit    int
}

// Search matches the query case-insensitively against username and display
// name over the requester's following ∪ followers. Users the requester
// follows rank before follower-only users; ties order by display name. Ids
// the directory cannot resolve are skipped rather than failing the search.
func (s *SearchIndex) Search(ctx context.Context, requesterID uint, query string) ([]Candidate, error) {
	following, err := s.Graph.Following(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	followers, err := s.Graph.Followers(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	followed := make(map[uint]bool, len(following))
	for _, id := range following {
		followed[id] = true
	}

	seen := make(map[uint]bool)
	needle := strings.ToLower(strings.TrimSpace(query))
	candidates := []Candidate{}

	for _, id := range append(following, followers...) {
		if id == requesterID || seen[id] {
			continue
		}
		seen[id] = true

		user, err := s.Identity.Resolve(ctx, id)
		if err != nil {
			continue
		}

		if needle != "" &&
			!strings.Contains(strings.ToLower(user.Username), needle) &&
			!strings.Contains(strings.ToLower(user.DisplayName), needle) {
			continue
		}

		candidates = append(candidates, Candidate{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Following:   followed[id],
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Following != candidates[j].Following {
			return candidates[i].Following
		}
		return candidates[i].DisplayName < candidates[j].DisplayName
	})

	limit := s.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
