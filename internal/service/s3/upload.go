package s3

import (
	"context"
	"fmt"
	"iter"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"clouddeploy/internal/service/cachecontrol"
	"clouddeploy/internal/service/common"
	"clouddeploy/internal/service/retry"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultConcurrency は同時にアップロードするファイル数の既定値
	DefaultConcurrency = 5

	defaultContentType = "application/octet-stream"
	objectACL          = types.ObjectCannedACLPrivate
)

// Progress は処理済みファイル数の通知先
// *progressbar.ProgressBar はこのインターフェースを満たす
type Progress interface {
	Add(n int) error
}

// UploaderOptions はアップロードの設定
type UploaderOptions struct {
	Bucket      string
	Root        string // キーを算出する基準ディレクトリ
	Matcher     *cachecontrol.Matcher
	Exclude     *common.KeyFilter
	Concurrency int
	Retry       retry.Policy
	Progress    Progress
}

// Uploader はファイルを同時実行数を制限しながらアップロードする
type Uploader struct {
	client ObjectUploader
	opts   UploaderOptions
	log    logrus.FieldLogger
}

// NewUploader はUploaderを作成する
func NewUploader(client ObjectUploader, opts UploaderOptions, logger logrus.FieldLogger) *Uploader {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.Matcher == nil {
		opts.Matcher = cachecontrol.Compile(nil, "", logger)
	}
	if abs, err := filepath.Abs(opts.Root); err == nil {
		opts.Root = abs
	}
	return &Uploader{
		client: client,
		opts:   opts,
		log:    common.LoggerOrDiscard(logger).WithField("bucket", opts.Bucket),
	}
}

// UploadAll はfilesのすべてをアップロードする
// 空きスロットができるまで次のファイルは読み進めない。
// 再試行を使い切ったファイルは失敗として記録し、他のファイルの処理は続ける。
// 1件でも失敗があればUploadErrorを返す。
func (u *Uploader) UploadAll(ctx context.Context, files iter.Seq2[string, error]) (UploadSummary, error) {
	start := time.Now()
	executor := common.NewParallelExecutor(u.opts.Concurrency)
	summary := &UploadSummary{}
	var mu sync.Mutex

	record := func(result UploadResult) {
		mu.Lock()
		summary.add(result)
		mu.Unlock()
		if u.opts.Progress != nil {
			_ = u.opts.Progress.Add(1)
		}
	}

	u.log.Infof("%s %s を最大%d並列でアップロードします", common.RocketIcon, u.opts.Root, executor.MaxWorkers())

	for path, walkErr := range files {
		if walkErr != nil {
			u.log.WithField("path", path).WithError(walkErr).Errorf("%s ファイルの列挙に失敗しました", common.ErrorIcon)
			record(UploadResult{Key: path, LocalPath: path, Err: walkErr})
			continue
		}

		task, err := u.NewTask(path)
		if err != nil {
			record(UploadResult{Key: path, LocalPath: path, Err: err})
			continue
		}
		if pattern, ok := u.opts.Exclude.Match(task.Key); ok {
			u.log.WithFields(logrus.Fields{"key": task.Key, "pattern": pattern}).Info("除外パターンに一致したためスキップします")
			mu.Lock()
			summary.Skipped++
			mu.Unlock()
			if u.opts.Progress != nil {
				_ = u.opts.Progress.Add(1)
			}
			continue
		}

		if err := executor.ExecuteContext(ctx, func() { record(u.upload(ctx, task)) }); err != nil {
			break
		}
	}
	executor.Wait()

	summary.Duration = time.Since(start)
	slices.SortFunc(summary.Failed, func(a, b UploadResult) int {
		return strings.Compare(a.Key, b.Key)
	})

	if err := ctx.Err(); err != nil {
		return *summary, err
	}
	if err := summary.Err(u.opts.Bucket); err != nil {
		return *summary, err
	}
	u.log.Infof("%s %d件をアップロードしました (%s, %s)", common.SuccessIcon,
		summary.Uploaded, common.FormatBytes(summary.Bytes), common.FormatDuration(summary.Duration))
	return *summary, nil
}

// NewTask はローカルパスからアップロード内容を決定する
// Cache-Controlはファイルごとに毎回解決し、前のファイルの値を引き継がない
func (u *Uploader) NewTask(path string) (UploadTask, error) {
	key, err := u.KeyFor(path)
	if err != nil {
		return UploadTask{}, err
	}
	return UploadTask{
		LocalPath:    path,
		Key:          key,
		CacheControl: u.opts.Matcher.Resolve(key),
		ContentType:  ContentTypeFor(path),
	}, nil
}

// KeyFor はルートからの相対パスを "/" 区切りにしたキーを返す
func (u *Uploader) KeyFor(path string) (string, error) {
	rel, err := filepath.Rel(u.opts.Root, path)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s は %s の配下にありません", path, u.opts.Root)
	}
	return filepath.ToSlash(rel), nil
}

// ContentTypeFor は拡張子からContent-Typeを決定する
func ContentTypeFor(path string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		return contentType
	}
	return defaultContentType
}

func (u *Uploader) upload(ctx context.Context, task UploadTask) UploadResult {
	entry := u.log.WithField("key", task.Key)
	result := UploadResult{Key: task.Key, LocalPath: task.LocalPath}

	attempts, err := u.opts.Retry.Do(ctx, func(attempt int) error {
		size, err := u.put(ctx, task)
		attemptLog := entry.WithField("attempt", attempt)
		if err != nil {
			attemptLog.WithError(err).Warnf("%s アップロードに失敗しました", common.WarningIcon)
			return err
		}
		result.Size = size
		attemptLog.WithFields(logrus.Fields{
			"cache_control": task.CacheControl,
			"content_type":  task.ContentType,
		}).Info("アップロードしました")
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		entry.WithField("attempt", attempt).Infof("%s %s 後に再試行します", common.ProcessIcon, wait)
	})

	result.Attempts = attempts
	if err != nil {
		result.Err = err
		entry.WithField("attempts", attempts).Errorf("%s アップロードを断念しました: %s", common.ErrorIcon, common.DescribeCause(err))
	}
	return result
}

// put は試行ごとにファイルを開き直して送信する
func (u *Uploader) put(ctx context.Context, task UploadTask) (int64, error) {
	file, err := os.Open(task.LocalPath)
	if err != nil {
		return 0, retry.Permanent(err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, retry.Permanent(err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.opts.Bucket),
		Key:         aws.String(task.Key),
		Body:        file,
		ContentType: aws.String(task.ContentType),
		ACL:         objectACL,
	}
	if task.CacheControl != "" {
		input.CacheControl = aws.String(task.CacheControl)
	}

	if _, err := u.client.Upload(ctx, input); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
