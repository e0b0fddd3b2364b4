package s3

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type MockUploadRequest struct {
	Bucket       string
	Key          string
	ContentType  string
	CacheControl string
	ACL          types.ObjectCannedACL
	Body         string
}

// MockUploader はアップロード要求を記録する
// failures[key] が正なら残り回数だけ失敗し、負なら常に失敗する
type MockUploader struct {
	Requests []MockUploadRequest
	failures map[string]int
	delay    time.Duration
	inFlight int32
	peak     int32
	lock     sync.Mutex
}

func NewMockUploader(failures map[string]int) *MockUploader {
	if failures == nil {
		failures = make(map[string]int)
	}
	return &MockUploader{failures: failures}
}

func (m *MockUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	current := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&m.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&m.peak, peak, current) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	key := aws.ToString(input.Key)
	m.Requests = append(m.Requests, MockUploadRequest{
		Bucket:       aws.ToString(input.Bucket),
		Key:          key,
		ContentType:  aws.ToString(input.ContentType),
		CacheControl: aws.ToString(input.CacheControl),
		ACL:          input.ACL,
		Body:         string(body),
	})
	if remaining, ok := m.failures[key]; ok && remaining != 0 {
		if remaining > 0 {
			m.failures[key] = remaining - 1
		}
		return nil, errors.New("simulated upload failure")
	}
	return &manager.UploadOutput{Key: input.Key}, nil
}

func (m *MockUploader) RequestsFor(key string) []MockUploadRequest {
	m.lock.Lock()
	defer m.lock.Unlock()
	var found []MockUploadRequest
	for _, request := range m.Requests {
		if request.Key == key {
			found = append(found, request)
		}
	}
	return found
}

func (m *MockUploader) Peak() int32 {
	return atomic.LoadInt32(&m.peak)
}

// MockBucketClient はページ単位のキー一覧を返し、削除要求を記録する
type MockBucketClient struct {
	Pages          [][]string
	ListErr        error
	DeleteErr      error
	DeleteErrors   []types.Error
	ListCalls      int
	DeleteRequests [][]string
	OnDelete       func(keys []string)
}

func (m *MockBucketClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	page := 0
	if params.ContinuationToken != nil {
		page, _ = strconv.Atoi(*params.ContinuationToken)
	}
	output := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if page < len(m.Pages) {
		for _, key := range m.Pages[page] {
			output.Contents = append(output.Contents, types.Object{Key: aws.String(key)})
		}
	}
	if page+1 < len(m.Pages) {
		output.IsTruncated = aws.Bool(true)
		output.NextContinuationToken = aws.String(strconv.Itoa(page + 1))
	}
	return output, nil
}

func (m *MockBucketClient) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	keys := make([]string, 0, len(params.Delete.Objects))
	for _, object := range params.Delete.Objects {
		keys = append(keys, aws.ToString(object.Key))
	}
	m.DeleteRequests = append(m.DeleteRequests, keys)
	if m.OnDelete != nil {
		m.OnDelete(keys)
	}
	if m.DeleteErr != nil {
		return nil, m.DeleteErr
	}
	return &s3.DeleteObjectsOutput{Errors: m.DeleteErrors}, nil
}
