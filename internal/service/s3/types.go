package s3

import (
	"errors"
	"fmt"
	"time"

	"clouddeploy/internal/service/common"
)

// UploadTask は1ファイル分のアップロード内容
// ワーカーごとに生成され、完了後に破棄される
type UploadTask struct {
	LocalPath    string
	Key          string
	CacheControl string
	ContentType  string
}

// UploadResult は1ファイル分のアップロード結果
type UploadResult struct {
	Key       string
	LocalPath string
	Size      int64
	Attempts  int
	Err       error
}

// UploadSummary はアップロード全体の集計結果
type UploadSummary struct {
	Uploaded int
	Skipped  int
	Bytes    int64
	Failed   []UploadResult // キー順
	Duration time.Duration
}

func (s *UploadSummary) add(result UploadResult) {
	if result.Err != nil {
		s.Failed = append(s.Failed, result)
		return
	}
	s.Uploaded++
	s.Bytes += result.Size
}

// Total はアップロードを試みたファイル数を返す
func (s UploadSummary) Total() int {
	return s.Uploaded + len(s.Failed)
}

// Err は失敗したキーとその原因をまとめたUploadErrorを返す
// 失敗がなければnil
func (s UploadSummary) Err(bucket string) error {
	if len(s.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.Failed))
	for _, result := range s.Failed {
		errs = append(errs, common.NewError(common.KindUpload, result.Key, result.Err))
	}
	return common.NewError(common.KindUpload, bucket,
		fmt.Errorf("%d件のアップロードに失敗しました\n%w", len(s.Failed), errors.Join(errs...)))
}
