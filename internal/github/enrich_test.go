package github

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-faces/internal/domain"
)

const aliceDetail = `{
	"login": "alice",
	"followers": 1234,
	"following": 56,
	"public_repos": 78,
	"public_gists": 9,
	"location": "Berlin",
	"name": "Alice Example",
	"avatar_url": "https://avatars.test/alice.png?v=2"
}`

func TestEnrichNotFoundLeavesStubUntouched(t *testing.T) {
	doer := script(t, response(http.StatusNotFound, `{"message":"Not Found"}`, nil))
	client, _, _ := newTestClient(t, doer)

	stub := domain.User{Login: "ghost", AvatarURL: "https://avatars.test/ghost.png", Type: "User"}
	before := stub

	ok := client.Enrich(context.Background(), &stub)
	assert.False(t, ok)
	assert.Equal(t, before, stub, "stub must not gain partial fields")
}

func TestEnrichWithoutTokenSkipsSponsorship(t *testing.T) {
	doer := script(t, response(http.StatusOK, aliceDetail, nil))
	client, _, _ := newTestClient(t, doer)

	user := domain.User{Login: "alice", AvatarURL: "https://avatars.test/alice.png", Type: "User"}
	ok := client.Enrich(context.Background(), &user)
	require.True(t, ok)

	followers, known := user.Followers.Value()
	require.True(t, known)
	assert.Equal(t, 1234, followers)
	assert.Equal(t, "Berlin", user.Location)
	require.NotNil(t, user.Name)
	assert.Equal(t, "Alice Example", *user.Name)
	assert.Equal(t, "https://avatars.test/alice.png?v=2", user.AvatarUpdatedAt)

	assert.False(t, user.SponsorsCount.Known())
	assert.False(t, user.SponsoringCount.Known())

	// no credential means no GraphQL call at all
	require.Len(t, doer.requests, 1)
	assert.Equal(t, http.MethodGet, doer.requests[0].Method)
}

func TestEnrichWithTokenFetchesSponsorship(t *testing.T) {
	doer := script(t,
		response(http.StatusOK, aliceDetail, nil),
		response(http.StatusOK, `{"data":{"user":{"sponsors":{"totalCount":12},"sponsoring":{"totalCount":3}}}}`, nil),
	)
	client, _, _ := newTestClient(t, doer, func(cfg *Config) { cfg.Token = "tok" })

	user := domain.User{Login: "alice", Type: "User"}
	require.True(t, client.Enrich(context.Background(), &user))

	sponsors, known := user.SponsorsCount.Value()
	require.True(t, known)
	assert.Equal(t, 12, sponsors)
	sponsoring, known := user.SponsoringCount.Value()
	require.True(t, known)
	assert.Equal(t, 3, sponsoring)

	require.Len(t, doer.requests, 2)
	assert.Equal(t, http.MethodPost, doer.requests[1].Method)
}

func TestEnrichSponsorshipFailureDegradesToUnknown(t *testing.T) {
	doer := script(t,
		response(http.StatusOK, aliceDetail, nil),
		response(http.StatusInternalServerError, "boom", nil),
	)
	client, _, _ := newTestClient(t, doer, func(cfg *Config) {
		cfg.Token = "tok"
		cfg.MaxAttempts = 1
	})

	user := domain.User{Login: "alice", Type: "User"}
	require.True(t, client.Enrich(context.Background(), &user))

	assert.True(t, user.Followers.Known(), "detail fields survive a sponsorship failure")
	assert.False(t, user.SponsorsCount.Known())
	assert.False(t, user.SponsoringCount.Known())
}

func TestEnrichSponsorshipNullUser(t *testing.T) {
	doer := script(t,
		response(http.StatusOK, aliceDetail, nil),
		response(http.StatusOK, `{"data":{"user":null}}`, nil),
	)
	client, _, _ := newTestClient(t, doer, func(cfg *Config) { cfg.Token = "tok" })

	user := domain.User{Login: "alice", Type: "User"}
	require.True(t, client.Enrich(context.Background(), &user))
	assert.False(t, user.SponsorsCount.Known())
}
