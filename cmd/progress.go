package cmd

import (
	"os"

	"clouddeploy/internal/service/deploy"

	"github.com/schollz/progressbar/v3"
)

// newUploadProgressBar はアップロード件数のプログレスバーを作成する
// 件数が不明な場合（-1）はスピナー表示になる
func newUploadProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("アップロード中..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}

// countFiles はプログレスバーの総数を求めるためにファイルを数える
// 列挙に失敗した場合は件数不明として -1 を返す
func countFiles(source deploy.FileSource) int {
	total := 0
	for _, err := range source.Files() {
		if err != nil {
			return -1
		}
		total++
	}
	return total
}
