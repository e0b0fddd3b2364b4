// Package cachecontrol はオブジェクトキーに適用するCache-Controlヘッダーを
// キャッシュルールから決定する。
//
// ルールのパターンは "*" をワイルドカードとして扱い、先頭が "/" の場合は
// キーの先頭に固定される。それ以外はキーのどこに一致してもよい。
// ルールは定義順に評価され、最初に一致したものが採用される。
package cachecontrol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"clouddeploy/internal/service/common"

	"github.com/sirupsen/logrus"
)

// CacheRule はパスパターンとCache-Control値の組
type CacheRule struct {
	Path         string `json:"path" yaml:"path"`
	CacheControl string `json:"cacheControl" yaml:"cacheControl"`
}

var errEmptyPattern = errors.New("パターンが空です")

type compiledRule struct {
	pattern      string
	expr         *regexp.Regexp
	cacheControl string
}

// Matcher はコンパイル済みのキャッシュルール一覧
type Matcher struct {
	rules        []compiledRule
	defaultValue string
	log          logrus.FieldLogger
}

// Compile はルールを正規表現に変換する
// 変換できないルールは警告を出してスキップする
func Compile(rules []CacheRule, defaultValue string, logger logrus.FieldLogger) *Matcher {
	logger = common.LoggerOrDiscard(logger)
	m := &Matcher{defaultValue: defaultValue, log: logger}
	for i, rule := range rules {
		expr, err := compilePattern(rule.Path)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"rule":    i,
				"pattern": rule.Path,
			}).WithError(err).Warn("キャッシュルールをコンパイルできないためスキップします")
			continue
		}
		m.rules = append(m.rules, compiledRule{pattern: rule.Path, expr: expr, cacheControl: rule.CacheControl})
	}
	return m
}

// Resolve はキーに一致した最初のルールのCache-Control値を返す
// どのルールにも一致しない場合はデフォルト値を返す
func (m *Matcher) Resolve(key string) string {
	for _, rule := range m.rules {
		if rule.expr.MatchString(key) {
			m.log.WithFields(logrus.Fields{
				"key":     key,
				"pattern": rule.pattern,
			}).Debugf("キャッシュルール適用: %s", rule.cacheControl)
			return rule.cacheControl
		}
	}
	return m.defaultValue
}

// Len は有効なルール数を返す
func (m *Matcher) Len() int {
	return len(m.rules)
}

// ResolveCacheControl はルール一覧からキーのCache-Control値を一度だけ解決する
func ResolveCacheControl(key string, rules []CacheRule, defaultValue string) string {
	return Compile(rules, defaultValue, nil).Resolve(key)
}

// compilePattern は "." をエスケープし "*" を任意の文字列に置き換える
// "." と "*" 以外の文字は正規表現としてそのまま解釈される
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, errEmptyPattern
	}
	expr := strings.ReplaceAll(pattern, ".", `\.`)
	expr = strings.ReplaceAll(expr, "*", ".*")
	if strings.HasPrefix(expr, "/") {
		expr = "^" + expr[1:]
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("正規表現 %q: %w", expr, err)
	}
	return re, nil
}
