package cache

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyDeterministic(t *testing.T) {
	k := NewKeyer("")

	a := k.Key("GET", "leaderboard/map/abc", url.Values{"offset": {"0"}, "length": {"50"}})
	b := k.Key("get", "/leaderboard/map/abc/", url.Values{"length": {"50"}, "offset": {"0"}})

	assert.Equal(t, a, b)
	assert.Equal(t, "tmio:GET:/leaderboard/map/abc?length=50&offset=0", a)
}

func TestKeyNormalization(t *testing.T) {
	k := NewKeyer("svc")

	tests := []struct {
		name   string
		method string
		path   string
		query  url.Values
		want   string
	}{
		{name: "no query", method: "GET", path: "player/abc", want: "svc:GET:/player/abc"},
		{name: "empty method", path: "/ads", want: "svc:GET:/ads"},
		{name: "double slash", method: "GET", path: "//player//abc", want: "svc:GET:/player/abc"},
		{name: "escaped", method: "GET", path: "/players/find%20me", want: "svc:GET:/players/find me"},
		{name: "repeated values sorted", method: "GET", path: "/x", query: url.Values{"id": {"b", "a"}}, want: "svc:GET:/x?id=a&id=b"},
		{name: "utm dropped", method: "GET", path: "/totd/0", query: url.Values{"utm_source": {"discord"}}, want: "svc:GET:/totd/0"},
		{name: "method kept distinct", method: "post", path: "/x", want: "svc:POST:/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, k.Key(tt.method, tt.path, tt.query))
		})
	}
}

func TestKeyDoesNotMutateQuery(t *testing.T) {
	q := url.Values{"id": {"b", "a"}, "utm_medium": {"x"}}
	NewKeyer("").Key("GET", "/x", q)

	assert.Equal(t, []string{"b", "a"}, q["id"])
	assert.Contains(t, q, "utm_medium")
}

func TestKeyDistinguishesRequests(t *testing.T) {
	k := NewKeyer("")
	assert.NotEqual(t,
		k.Key("GET", "/player/a", nil),
		k.Key("GET", "/player/b", nil),
	)
	assert.NotEqual(t,
		k.Key("GET", "/rooms/0", url.Values{"page": {"1"}}),
		k.Key("GET", "/rooms/0", url.Values{"page": {"2"}}),
	)
}
