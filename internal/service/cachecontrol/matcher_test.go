package cachecontrol

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestHTMLRuleWithLongDefault(t *testing.T) {
	rules := []CacheRule{{Path: "/*.html", CacheControl: "no-cache"}}

	assert.Equal(t, "no-cache", ResolveCacheControl("index.html", rules, "max-age=31536000"))
	assert.Equal(t, "max-age=31536000", ResolveCacheControl("app.js", rules, "max-age=31536000"))
}

func TestFirstMatchWins(t *testing.T) {
	rules := []CacheRule{
		{Path: "/assets/*", CacheControl: "max-age=31536000, immutable"},
		{Path: "*.js", CacheControl: "max-age=60"},
	}

	assert.Equal(t, "max-age=31536000, immutable", ResolveCacheControl("assets/app.js", rules, "no-cache"))
	assert.Equal(t, "max-age=60", ResolveCacheControl("vendor/lib.js", rules, "no-cache"))

	// 複数のルールに一致するキーだけが順序の影響を受ける
	reversed := []CacheRule{rules[1], rules[0]}
	assert.Equal(t, "max-age=60", ResolveCacheControl("assets/app.js", reversed, "no-cache"))
	assert.Equal(t, "max-age=31536000, immutable", ResolveCacheControl("assets/logo.png", reversed, "no-cache"))
	assert.Equal(t, ResolveCacheControl("assets/logo.png", rules, "no-cache"), ResolveCacheControl("assets/logo.png", reversed, "no-cache"))
}

func TestAnchoredVersusUnanchored(t *testing.T) {
	anchored := []CacheRule{{Path: "/static/*", CacheControl: "immutable"}}
	unanchored := []CacheRule{{Path: "static/*", CacheControl: "immutable"}}

	assert.Equal(t, "immutable", ResolveCacheControl("static/a.css", anchored, "default"))
	assert.Equal(t, "default", ResolveCacheControl("blog/static/a.css", anchored, "default"))
	assert.Equal(t, "immutable", ResolveCacheControl("blog/static/a.css", unanchored, "default"))
}

func TestDotIsLiteral(t *testing.T) {
	rules := []CacheRule{{Path: "/*.css", CacheControl: "css"}}
	assert.Equal(t, "default", ResolveCacheControl("style-css", rules, "default"))
	assert.Equal(t, "css", ResolveCacheControl("style.css", rules, "default"))
}

func TestNoRulesReturnsDefault(t *testing.T) {
	assert.Equal(t, "no-cache", ResolveCacheControl("index.html", nil, "no-cache"))
}

func TestMalformedRulesAreSkipped(t *testing.T) {
	logger, hook := test.NewNullLogger()
	matcher := Compile([]CacheRule{
		{Path: "", CacheControl: "empty"},
		{Path: "/(*.html", CacheControl: "broken"},
		{Path: "/*.html", CacheControl: "no-cache"},
	}, "default", logger)

	assert.Equal(t, 1, matcher.Len())
	assert.Equal(t, "no-cache", matcher.Resolve("index.html"))
	assert.Equal(t, "default", matcher.Resolve("app.js"))

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
	assert.Equal(t, "/(*.html", hook.AllEntries()[1].Data["pattern"])
}

func TestWildcardOnlyMatchesEverything(t *testing.T) {
	rules := []CacheRule{{Path: "/*", CacheControl: "all"}}
	assert.Equal(t, "all", ResolveCacheControl("deep/nested/file.txt", rules, "default"))
}
