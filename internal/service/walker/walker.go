// Package walker はローカルディレクトリ配下の通常ファイルを遅延列挙する。
package walker

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"

	"clouddeploy/internal/service/common"

	"github.com/sirupsen/logrus"
)

// Walker はルートディレクトリ配下のファイルを深さ優先で列挙する
type Walker struct {
	root string
	log  logrus.FieldLogger
}

// New はWalkerを作成する
func New(root string, logger logrus.FieldLogger) *Walker {
	return &Walker{root: root, log: common.LoggerOrDiscard(logger)}
}

// CheckRoot はルートが存在するディレクトリかを確認する
// パイプライン開始前に一度だけ呼び出す
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return common.NewError(common.KindFilesystem, root, err)
	}
	if !info.IsDir() {
		return common.Errorf(common.KindFilesystem, root, "ディレクトリではありません")
	}
	return nil
}

// Root はルートディレクトリの絶対パスを返す
func (w *Walker) Root() (string, error) {
	return filepath.Abs(w.root)
}

// Files はルート配下の通常ファイルの絶対パスを返すイテレータ
// ディレクトリ自体は返さない。読み取りに失敗したディレクトリは (パス, エラー) として返し、列挙は続行する。
// 一度きりの列挙で、呼び出すたびにファイルシステムを読み直す。
func (w *Walker) Files() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		root, err := w.Root()
		if err != nil {
			yield(w.root, err)
			return
		}
		info, err := os.Stat(root)
		if err != nil {
			yield(root, err)
			return
		}
		if !info.IsDir() {
			yield(root, fmt.Errorf("%s はディレクトリではありません", root))
			return
		}
		w.walkDir(root, []os.FileInfo{info}, yield)
	}
}

// walkDir はyieldがfalseを返した時点でfalseを返す
// ancestors はルートからdirまでのディレクトリ情報（循環リンクの検出に使う）
func (w *Walker) walkDir(dir string, ancestors []os.FileInfo, yield func(string, error) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield(dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.Type()&fs.ModeSymlink != 0 {
			if !w.followLink(path, ancestors, yield) {
				return false
			}
			continue
		}

		switch {
		case entry.IsDir():
			info, err := entry.Info()
			if err != nil {
				if !yield(path, err) {
					return false
				}
				continue
			}
			if !w.walkDir(path, append(slices.Clip(ancestors), info), yield) {
				return false
			}
		case entry.Type().IsRegular():
			if !yield(path, nil) {
				return false
			}
		default:
			w.log.WithField("path", path).Debug("通常ファイルではないためスキップします")
		}
	}
	return true
}

func (w *Walker) followLink(path string, ancestors []os.FileInfo, yield func(string, error) bool) bool {
	info, err := os.Stat(path)
	if err != nil {
		w.log.WithField("path", path).WithError(err).Warn("リンク先を解決できないためスキップします")
		return true
	}

	if info.IsDir() {
		if isAncestor(info, ancestors) {
			w.log.WithField("path", path).Warn("循環するシンボリックリンクのためスキップします")
			return true
		}
		return w.walkDir(path, append(slices.Clip(ancestors), info), yield)
	}

	if info.Mode().IsRegular() {
		return yield(path, nil)
	}
	return true
}

func isAncestor(info os.FileInfo, ancestors []os.FileInfo) bool {
	for _, ancestor := range ancestors {
		if os.SameFile(info, ancestor) {
			return true
		}
	}
	return false
}
