package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github-faces/internal/domain"
)

type userDetail struct {
	Followers   int     `json:"followers"`
	Following   int     `json:"following"`
	PublicRepos int     `json:"public_repos"`
	PublicGists int     `json:"public_gists"`
	Location    string  `json:"location"`
	Name        *string `json:"name"`
	AvatarURL   string  `json:"avatar_url"`
}

const sponsorshipQuery = `query($login: String!) {
  user(login: $login) {
    sponsors(first: 0) { totalCount }
    sponsoring(first: 0) { totalCount }
  }
}`

type sponsorshipResponse struct {
	Data struct {
		User *struct {
			Sponsors struct {
				TotalCount int `json:"totalCount"`
			} `json:"sponsors"`
			Sponsoring struct {
				TotalCount int `json:"totalCount"`
			} `json:"sponsoring"`
		} `json:"user"`
	} `json:"data"`
}

// Enrich fills a discovered stub with profile and sponsorship data. On a
// failed detail fetch the stub is left exactly as it was; one user's failure
// never affects the batch. Reports whether the record was enriched.
func (c *Client) Enrich(ctx context.Context, user *domain.User) bool {
	var detail userDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf(userDetailURL, user.Login), nil, &detail)
	if errors.Is(err, ErrNotFound) {
		c.logger.Warnf("user not found: %s", user.Login)
		return false
	}
	if err != nil {
		c.logger.Warnf("fetch details for %s: %v", user.Login, err)
		return false
	}

	sponsors, sponsoring := c.sponsorship(ctx, user.Login)

	user.Followers = domain.KnownCount(detail.Followers)
	user.Following = domain.KnownCount(detail.Following)
	user.PublicRepos = domain.KnownCount(detail.PublicRepos)
	user.PublicGists = domain.KnownCount(detail.PublicGists)
	user.Location = detail.Location
	user.Name = detail.Name
	user.SponsorsCount = sponsors
	user.SponsoringCount = sponsoring
	// audit snapshot of the avatar URL at enrichment time, not used for
	// freshness decisions
	user.AvatarUpdatedAt = detail.AvatarURL
	return true
}

// sponsorship fetches sponsor/sponsoring totals via GraphQL. Without a
// token the call is guaranteed to fail, so it is skipped outright and both
// counts stay unknown.
func (c *Client) sponsorship(ctx context.Context, login string) (domain.Count, domain.Count) {
	if c.token == "" {
		return domain.UnknownCount(), domain.UnknownCount()
	}

	payload := map[string]any{
		"query":     sponsorshipQuery,
		"variables": map[string]string{"login": login},
	}
	var resp sponsorshipResponse
	if err := c.do(ctx, http.MethodPost, graphqlURL, payload, &resp); err != nil {
		c.logger.Warnf("fetch sponsorship for %s: %v", login, err)
		return domain.UnknownCount(), domain.UnknownCount()
	}
	if resp.Data.User == nil {
		return domain.UnknownCount(), domain.UnknownCount()
	}
	return domain.KnownCount(resp.Data.User.Sponsors.TotalCount),
		domain.KnownCount(resp.Data.User.Sponsoring.TotalCount)
}
