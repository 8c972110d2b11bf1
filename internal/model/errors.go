// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// Messageは呼び出し元にそのまま返されるため、文言の変更は互換性破壊になる。
type APIError struct {
	Code    string // エラーコード
	Message string // エラーメッセージ（APIレスポンスにそのまま載る）
	Status  int    // 対応するHTTPステータスコード
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNoContent         = "NO_CONTENT"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeMissingID         = "MISSING_ID"
	ErrCodeInvalidIDFormat   = "INVALID_ID_FORMAT"
	ErrCodeMomentNotFound    = "MOMENT_NOT_FOUND"
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeSongNotFound      = "SONG_NOT_FOUND"
	ErrCodeUpstreamDisabled  = "SERVICE_UNAVAILABLE"
)

// NewValidationError はバリデーション失敗エラーを生成する。
// メッセージはバリデータが返した文言をそのまま使用する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewNoContentError はシェアする内容が無い場合のエラーを生成する。
// サニタイズ後にノート付きハイライトが残らず、全体ノートも空の場合に返される。
func NewNoContentError() *APIError {
	return &APIError{
		Code:    ErrCodeNoContent,
		Message: "No content to share - add a general note or at least one highlight with a note",
		Status:  http.StatusBadRequest,
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:    ErrCodeRateLimitExceeded,
		Message: "Too many requests. Please try again later.",
		Status:  http.StatusTooManyRequests,
	}
}

// NewMissingIDError はモーメントID未指定エラーを生成する。
func NewMissingIDError() *APIError {
	return &APIError{
		Code:    ErrCodeMissingID,
		Message: "Moment ID is required",
		Status:  http.StatusBadRequest,
	}
}

// NewInvalidIDFormatError はモーメントIDの形式不正エラーを生成する。
// このエラーが返る場合、ストレージへの問い合わせは行われていない。
func NewInvalidIDFormatError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidIDFormat,
		Message: "Invalid moment ID format",
		Status:  http.StatusBadRequest,
	}
}

// NewMomentNotFoundError はモーメント未検出エラーを生成する。
func NewMomentNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeMomentNotFound,
		Message: "Moment not found",
		Status:  http.StatusNotFound,
	}
}

// NewInvalidJSONError はリクエストボディのJSONパース失敗エラーを生成する。
func NewInvalidJSONError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidJSON,
		Message: "Request body must be valid JSON",
		Status:  http.StatusBadRequest,
	}
}

// NewSongNotFoundError は楽曲未検出エラーを生成する。
func NewSongNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeSongNotFound,
		Message: "Song not found",
		Status:  http.StatusNotFound,
	}
}

// NewServiceUnavailableError は外部サービス無効時のエラーを生成する。
// APIの認証情報が設定されていない場合に返される。
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeUpstreamDisabled,
		Message: message,
		Status:  http.StatusServiceUnavailable,
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:    ErrCodeInternal,
		Message: "An unexpected error occurred",
		Status:  http.StatusInternalServerError,
	}
}
