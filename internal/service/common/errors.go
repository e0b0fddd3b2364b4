package common

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// エラーメッセージの絵文字定数
const (
	ErrorIcon   = "❌"
	SuccessIcon = "✅"
	WarningIcon = "⚠️"
	SearchIcon  = "🔍"
	InfoIcon    = "📋"
	ProcessIcon = "🔄"
	RocketIcon  = "🚀"
	WaitIcon    = "⏳"
	PartyIcon   = "🎉"
)

// ErrorKind はデプロイ処理で発生するエラーの種別
// errors.Is(err, KindUpload) のように種別で判定できる
type ErrorKind string

const (
	KindConfig             ErrorKind = "ConfigError"
	KindCredential         ErrorKind = "CredentialError"
	KindFilesystem         ErrorKind = "FilesystemError"
	KindUpload             ErrorKind = "UploadError"
	KindBucketList         ErrorKind = "BucketListError"
	KindBucketDelete       ErrorKind = "BucketDeleteError"
	KindInvalidationSubmit ErrorKind = "InvalidationSubmitError"
	KindInvalidationPoll   ErrorKind = "InvalidationPollError"
)

func (k ErrorKind) Error() string {
	return string(k)
}

// DeployError は種別・対象リソース・原因をまとめたエラー
type DeployError struct {
	Kind     ErrorKind
	Resource string // キー、バケット名、ディストリビューションIDなど
	Err      error
}

// NewError はDeployErrorを生成する
func NewError(kind ErrorKind, resource string, err error) *DeployError {
	return &DeployError{Kind: kind, Resource: resource, Err: err}
}

// Errorf はメッセージから原因を組み立ててDeployErrorを生成する
func Errorf(kind ErrorKind, resource, format string, args ...any) *DeployError {
	return NewError(kind, resource, fmt.Errorf(format, args...))
}

func (e *DeployError) Error() string {
	cause := DescribeCause(e.Err)
	if e.Resource == "" {
		return fmt.Sprintf("%s: %s", e.Kind, cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Resource, cause)
}

func (e *DeployError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindOf はエラーチェーンから最初に見つかった種別を返す
func KindOf(err error) (ErrorKind, bool) {
	var deployErr *DeployError
	if errors.As(err, &deployErr) {
		return deployErr.Kind, true
	}
	return "", false
}

// DescribeCause はAWS APIエラーであれば "コード: メッセージ" 形式で原因を返す
func DescribeCause(err error) string {
	if err == nil {
		return "不明なエラー"
	}
	var deployErr *DeployError
	if errors.As(err, &deployErr) && deployErr != err {
		return err.Error()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
