package common

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// KeyFilter はオブジェクトキーに対するglobパターンの集合
type KeyFilter struct {
	patterns []string
	globs    []glob.Glob
}

// NewKeyFilter はパターン一覧をコンパイルする
// "/" を区切り文字として扱うため、"*" はディレクトリをまたがず "**" はまたぐ
func NewKeyFilter(patterns []string) (*KeyFilter, error) {
	filter := &KeyFilter{}
	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(strings.TrimSpace(pattern), "/")
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("パターン %q のコンパイルに失敗: %w", pattern, err)
		}
		filter.patterns = append(filter.patterns, pattern)
		filter.globs = append(filter.globs, g)
	}
	return filter, nil
}

// Match は一致したパターンを返す
func (f *KeyFilter) Match(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	key = strings.TrimPrefix(key, "/")
	for i, g := range f.globs {
		if g.Match(key) {
			return f.patterns[i], true
		}
	}
	return "", false
}

// Len は有効なパターン数を返す
func (f *KeyFilter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.globs)
}
