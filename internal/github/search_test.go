package github

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchBody(items ...[2]string) string {
	body := `{"items":[`
	for i, item := range items {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"login":%q,"avatar_url":"https://avatars.test/%s.png","type":%q}`,
			item[0], item[0], item[1])
	}
	return body + `]}`
}

func TestDiscoverFiltersAndStopsAtTarget(t *testing.T) {
	doer := script(t,
		response(http.StatusOK, searchBody(
			[2]string{"alice", "User"},
			[2]string{"orgcorp", "Organization"},
			[2]string{"bob", "User"},
		), nil),
		response(http.StatusOK, searchBody(
			[2]string{"carol", "User"},
			[2]string{"dave", "User"},
		), nil),
	)
	client, _, _ := newTestClient(t, doer)

	users := client.Discover(context.Background(), 3)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Login)
	assert.Equal(t, "bob", users[1].Login)
	assert.Equal(t, "carol", users[2].Login)
	for _, u := range users {
		assert.Equal(t, "User", u.Type)
		assert.NotEmpty(t, u.AvatarURL)
	}
}

func TestDiscoverTruncatesFinalPage(t *testing.T) {
	doer := script(t, response(http.StatusOK, searchBody(
		[2]string{"alice", "User"},
		[2]string{"bob", "User"},
		[2]string{"carol", "User"},
	), nil))
	client, _, _ := newTestClient(t, doer)

	users := client.Discover(context.Background(), 2)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Login)
	assert.Equal(t, "bob", users[1].Login)
}

func TestDiscoverContinuesPastFailedPage(t *testing.T) {
	doer := script(t,
		response(http.StatusInternalServerError, "boom", nil),
		response(http.StatusOK, searchBody([2]string{"alice", "User"}), nil),
		response(http.StatusOK, searchBody([2]string{"bob", "User"}), nil),
	)
	client, _, _ := newTestClient(t, doer, func(cfg *Config) { cfg.MaxAttempts = 1 })

	users := client.Discover(context.Background(), 5)
	// page budget is ceil(5/100)+2 = 3 pages; the failed first page
	// contributes nothing and the rest is returned as-is
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Login)
	assert.Equal(t, "bob", users[1].Login)
	assert.Len(t, doer.requests, 3)
}

func TestDiscoverRespectsPageBudget(t *testing.T) {
	doer := script(t, response(http.StatusOK, `{"items":[]}`, nil))
	client, _, _ := newTestClient(t, doer)

	users := client.Discover(context.Background(), 150)
	assert.Empty(t, users)
	// ceil(150/100) + 2 extra pages
	assert.Len(t, doer.requests, 4)
}

func TestDiscoverRequestsCarryQuery(t *testing.T) {
	doer := script(t, response(http.StatusOK, `{"items":[]}`, nil))
	client, _, _ := newTestClient(t, doer, func(cfg *Config) { cfg.Query = "followers:50..100" })

	client.Discover(context.Background(), 1)
	require.NotEmpty(t, doer.requests)
	q := doer.requests[0].URL.Query()
	assert.Equal(t, "followers:50..100", q.Get("q"))
	assert.Equal(t, "100", q.Get("per_page"))
	assert.Equal(t, "1", q.Get("page"))
}
