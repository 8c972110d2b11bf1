// Package middleware はHTTPミドルウェアとレスポンス書き込みヘルパーを提供する。
package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/songdash/songdash/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// すべての失敗レスポンスは {error, code, timestamp} の形で返される。
type ErrorResponseBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスコードはAPIError自身が保持する値を使用する。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:     apiErr.Message,
		Code:      apiErr.Code,
		Timestamp: Timestamp(),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.NewInternalError())
}

// WriteJSON は任意のペイロードをJSONとして書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// Timestamp はレスポンスに載せるISO-8601形式の現在時刻を返す。
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
