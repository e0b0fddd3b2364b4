package s3

import (
	"context"
	"errors"
	"iter"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clouddeploy/internal/service/cachecontrol"
	"clouddeploy/internal/service/common"
	"clouddeploy/internal/service/retry"
	"clouddeploy/internal/service/walker"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func createTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o644))
	}
	return root
}

func newTestUploader(client ObjectUploader, root string, opts UploaderOptions) *Uploader {
	opts.Bucket = "not-real-bucket"
	opts.Root = root
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = fastRetry
	}
	return NewUploader(client, opts, nil)
}

func TestUploadAllBuildsRequestPerFile(t *testing.T) {
	root := createTree(t, "index.html", "assets/app.js", "data.weird123")
	mockUploader := NewMockUploader(nil)
	matcher := cachecontrol.Compile([]cachecontrol.CacheRule{{Path: "/*.html", CacheControl: "no-cache"}}, "max-age=31536000", nil)
	uploader := newTestUploader(mockUploader, root, UploaderOptions{Matcher: matcher})

	summary, err := uploader.UploadAll(context.Background(), walker.New(root, nil).Files())

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Uploaded)
	assert.Empty(t, summary.Failed)
	assert.Len(t, mockUploader.Requests, 3)

	index := mockUploader.RequestsFor("index.html")
	require.Len(t, index, 1)
	assert.Equal(t, "not-real-bucket", index[0].Bucket)
	assert.Equal(t, "no-cache", index[0].CacheControl)
	assert.True(t, strings.HasPrefix(index[0].ContentType, "text/html"))
	assert.Equal(t, types.ObjectCannedACLPrivate, index[0].ACL)
	assert.Equal(t, "content of index.html", index[0].Body)

	app := mockUploader.RequestsFor("assets/app.js")
	require.Len(t, app, 1)
	assert.Equal(t, "max-age=31536000", app[0].CacheControl)
	assert.Equal(t, mime.TypeByExtension(".js"), app[0].ContentType)

	data := mockUploader.RequestsFor("data.weird123")
	require.Len(t, data, 1)
	assert.Equal(t, "application/octet-stream", data[0].ContentType)
	assert.Equal(t, "max-age=31536000", data[0].CacheControl)

	assert.Equal(t, int64(len("content of index.html")+len("content of assets/app.js")+len("content of data.weird123")), summary.Bytes)
}

func TestUploadAllRetriesTransientFailures(t *testing.T) {
	root := createTree(t, "a.txt")
	mockUploader := NewMockUploader(map[string]int{"a.txt": 2})
	uploader := newTestUploader(mockUploader, root, UploaderOptions{})

	summary, err := uploader.UploadAll(context.Background(), walker.New(root, nil).Files())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Len(t, mockUploader.RequestsFor("a.txt"), 3)
}

func TestUploadAllIsolatesExhaustedFailures(t *testing.T) {
	root := createTree(t, "bad.txt", "good1.txt", "nested/good2.txt")
	mockUploader := NewMockUploader(map[string]int{"bad.txt": -1})
	uploader := newTestUploader(mockUploader, root, UploaderOptions{})

	summary, err := uploader.UploadAll(context.Background(), walker.New(root, nil).Files())

	require.Error(t, err)
	assert.ErrorIs(t, err, common.KindUpload)
	assert.Contains(t, err.Error(), "bad.txt")
	assert.Contains(t, err.Error(), "simulated upload failure")

	assert.Equal(t, 2, summary.Uploaded)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "bad.txt", summary.Failed[0].Key)
	assert.Equal(t, 5, summary.Failed[0].Attempts)
	assert.Len(t, mockUploader.RequestsFor("bad.txt"), 5)
	assert.Len(t, mockUploader.RequestsFor("good1.txt"), 1)
	assert.Len(t, mockUploader.RequestsFor("nested/good2.txt"), 1)

	// 再実行すると全ファイルが上書きされる
	retryUploader := NewMockUploader(nil)
	summary, err = newTestUploader(retryUploader, root, UploaderOptions{}).UploadAll(context.Background(), walker.New(root, nil).Files())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Uploaded)
	assert.Len(t, retryUploader.Requests, 3)
}

func TestUploadAllRespectsConcurrencyLimit(t *testing.T) {
	names := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		names = append(names, filepath.ToSlash(filepath.Join("dir", string(rune('a'+i))+".txt")))
	}
	root := createTree(t, names...)
	mockUploader := NewMockUploader(nil)
	mockUploader.delay = 5 * time.Millisecond
	uploader := newTestUploader(mockUploader, root, UploaderOptions{Concurrency: 3})

	summary, err := uploader.UploadAll(context.Background(), walker.New(root, nil).Files())

	require.NoError(t, err)
	assert.Equal(t, 20, summary.Uploaded)
	assert.LessOrEqual(t, mockUploader.Peak(), int32(3))
	assert.GreaterOrEqual(t, mockUploader.Peak(), int32(1))
}

func TestUploadAllDoesNotReadAheadOfFreeSlots(t *testing.T) {
	root := createTree(t, "a.txt", "b.txt", "c.txt", "d.txt")
	mockUploader := NewMockUploader(nil)
	mockUploader.delay = 20 * time.Millisecond
	uploader := newTestUploader(mockUploader, root, UploaderOptions{Concurrency: 1})

	var consumed int32
	var maxAhead int32
	files := func(yield func(string, error) bool) {
		for path, err := range walker.New(root, nil).Files() {
			n := atomic.AddInt32(&consumed, 1)
			ahead := n - int32(len(mockUploaderRequests(mockUploader)))
			if ahead > atomic.LoadInt32(&maxAhead) {
				atomic.StoreInt32(&maxAhead, ahead)
			}
			if !yield(path, err) {
				return
			}
		}
	}

	_, err := uploader.UploadAll(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, int32(4), consumed)
	// 処理中1件 + 空き待ちの1件より先は読まない
	assert.LessOrEqual(t, maxAhead, int32(2))
}

func mockUploaderRequests(m *MockUploader) []MockUploadRequest {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]MockUploadRequest(nil), m.Requests...)
}

func TestUploadAllSkipsExcludedKeys(t *testing.T) {
	root := createTree(t, "index.html", ".DS_Store", "img/.DS_Store", "app.js.map")
	filter, err := common.NewKeyFilter([]string{"**.DS_Store", "*.map"})
	require.NoError(t, err)
	mockUploader := NewMockUploader(nil)
	uploader := newTestUploader(mockUploader, root, UploaderOptions{Exclude: filter})

	summary, err := uploader.UploadAll(context.Background(), walker.New(root, nil).Files())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 3, summary.Skipped)
	require.Len(t, mockUploader.Requests, 1)
	assert.Equal(t, "index.html", mockUploader.Requests[0].Key)
}

func TestUploadAllRecordsWalkErrors(t *testing.T) {
	root := createTree(t, "ok.txt")
	walkErr := errors.New("permission denied")
	var files iter.Seq2[string, error] = func(yield func(string, error) bool) {
		if !yield(filepath.Join(root, "ok.txt"), nil) {
			return
		}
		yield(filepath.Join(root, "locked"), walkErr)
	}
	uploader := newTestUploader(NewMockUploader(nil), root, UploaderOptions{})

	summary, err := uploader.UploadAll(context.Background(), files)

	assert.ErrorIs(t, err, common.KindUpload)
	assert.ErrorIs(t, err, walkErr)
	assert.Equal(t, 1, summary.Uploaded)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, 0, summary.Failed[0].Attempts)
}

func TestUploadAllMissingFileIsNotRetried(t *testing.T) {
	root := createTree(t, "present.txt")
	var files iter.Seq2[string, error] = func(yield func(string, error) bool) {
		yield(filepath.Join(root, "vanished.txt"), nil)
	}
	mockUploader := NewMockUploader(nil)
	uploader := newTestUploader(mockUploader, root, UploaderOptions{})

	summary, err := uploader.UploadAll(context.Background(), files)

	assert.ErrorIs(t, err, os.ErrNotExist)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, 1, summary.Failed[0].Attempts)
	assert.Empty(t, mockUploader.Requests)
}

type countingProgress struct{ count int32 }

func (p *countingProgress) Add(n int) error {
	atomic.AddInt32(&p.count, int32(n))
	return nil
}

func TestUploadAllReportsProgress(t *testing.T) {
	root := createTree(t, "a.txt", "b.txt", "c/d.txt")
	progress := &countingProgress{}
	uploader := newTestUploader(NewMockUploader(nil), root, UploaderOptions{Progress: progress})

	_, err := uploader.UploadAll(context.Background(), walker.New(root, nil).Files())

	require.NoError(t, err)
	assert.Equal(t, int32(3), progress.count)
}

func TestUploadAllCountsExcludedKeysAsProgress(t *testing.T) {
	root := createTree(t, "index.html", "app.js", "app.js.map")
	filter, err := common.NewKeyFilter([]string{"*.map"})
	require.NoError(t, err)
	progress := &countingProgress{}
	uploader := newTestUploader(NewMockUploader(nil), root, UploaderOptions{Exclude: filter, Progress: progress})

	summary, err := uploader.UploadAll(context.Background(), walker.New(root, nil).Files())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Uploaded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, int32(3), progress.count)
}

func TestKeyForUsesForwardSlashes(t *testing.T) {
	root := t.TempDir()
	uploader := newTestUploader(NewMockUploader(nil), root, UploaderOptions{})

	key, err := uploader.KeyFor(filepath.Join(root, "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.txt", key)

	_, err = uploader.KeyFor(filepath.Join(filepath.Dir(root), "outside.txt"))
	assert.Error(t, err)
}

func TestNewTaskResolvesCacheControlFreshPerFile(t *testing.T) {
	root := t.TempDir()
	matcher := cachecontrol.Compile([]cachecontrol.CacheRule{{Path: "/*.html", CacheControl: "no-cache"}}, "max-age=600", nil)
	uploader := newTestUploader(NewMockUploader(nil), root, UploaderOptions{Matcher: matcher})

	first, err := uploader.NewTask(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	second, err := uploader.NewTask(filepath.Join(root, "app.css"))
	require.NoError(t, err)

	assert.Equal(t, "no-cache", first.CacheControl)
	assert.Equal(t, "max-age=600", second.CacheControl)
}

func TestContentTypeFor(t *testing.T) {
	assert.True(t, strings.HasPrefix(ContentTypeFor("/tmp/index.HTML"), "text/html"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("/tmp/LICENSE"))
}
