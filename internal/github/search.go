package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github-faces/internal/domain"
)

const (
	defaultSearchQuery = "followers:1..10000000"

	pageSize = 100
	// pages beyond the strict minimum, compensating for entries the
	// type filter drops
	extraPages = 2
)

type searchItem struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

// Discover walks the user search pages until target users are collected or
// the page budget is spent. A page that fails even after retries simply
// contributes nothing; a smaller-than-target result is not an error.
func (c *Client) Discover(ctx context.Context, target int) []domain.User {
	if target <= 0 {
		return nil
	}
	maxPages := (target+pageSize-1)/pageSize + extraPages

	var users []domain.User
	for page := 1; page <= maxPages; page++ {
		pageUsers, err := c.searchPage(ctx, page)
		if err != nil {
			c.logger.Errorf("fetch search page %d: %v", page, err)
			continue
		}
		users = append(users, pageUsers...)
		c.logger.Infof("page %d: %d users | total: %d/%d (%.1f%%)",
			page, len(pageUsers), len(users), target, float64(len(users))/float64(target)*100)

		if len(users) >= target {
			return users[:target]
		}
	}
	return users
}

// searchPage fetches one page of search results, keeping only entries of
// type User (organizations and bots show up in the same result set).
func (c *Client) searchPage(ctx context.Context, page int) ([]domain.User, error) {
	q := url.Values{}
	q.Set("q", c.query)
	q.Set("per_page", fmt.Sprintf("%d", pageSize))
	q.Set("page", fmt.Sprintf("%d", page))

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, searchUsersURL+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Type != "User" {
			continue
		}
		users = append(users, domain.User{
			Login:     item.Login,
			AvatarURL: item.AvatarURL,
			Type:      item.Type,
		})
	}
	return users, nil
}
