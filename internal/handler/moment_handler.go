package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/songdash/songdash/internal/middleware"
	"github.com/songdash/songdash/internal/model"
	"github.com/songdash/songdash/internal/moment"
)

// MomentServiceInterface はモーメントハンドラーが必要とするサービスインターフェース。
type MomentServiceInterface interface {
	// Create は投稿データを検証・正規化して永続化する。
	Create(ctx context.Context, sub moment.Submission) (*moment.CreateResult, error)
	// Get はIDでモーメントを取得し、閲覧数を加算する。
	Get(ctx context.Context, id string) (*model.Moment, error)
	// List はモーメント一覧をページング取得する。
	List(ctx context.Context, page, limit int) (*moment.ListResult, error)
}

// MomentHandler はモーメント投稿・取得のHTTPハンドラー。
type MomentHandler struct {
	service MomentServiceInterface
}

// NewMomentHandler はMomentHandlerを生成する。
func NewMomentHandler(service MomentServiceInterface) *MomentHandler {
	return &MomentHandler{service: service}
}

// --- レスポンス型 ---

// createMomentResponse はモーメント作成のレスポンス。
type createMomentResponse struct {
	ID             string `json:"id"`
	ShareURL       string `json:"shareUrl"`
	HasGeneralNote bool   `json:"hasGeneralNote"`
	HighlightCount int    `json:"highlightCount"`
	Timestamp      string `json:"timestamp"`
}

// momentResponse はモーメント取得のレスポンス。
// 保存されたモーメント本体に派生フィールドを追加する。
type momentResponse struct {
	*model.Moment
	HasGeneralNote bool   `json:"hasGeneralNote"`
	HighlightCount int    `json:"highlightCount"`
	Timestamp      string `json:"timestamp"`
}

// momentListResponse はモーメント一覧のレスポンス。
type momentListResponse struct {
	Data       []*model.Moment   `json:"data"`
	Pagination moment.Pagination `json:"pagination"`
	Timestamp  string            `json:"timestamp"`
}

// CreateMoment はモーメントを作成する。
// POST /api/moments
func (h *MomentHandler) CreateMoment(w http.ResponseWriter, r *http.Request) {
	var req moment.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, model.NewInvalidJSONError())
		return
	}

	sub := moment.Normalize(&req)

	result, err := h.service.Create(r.Context(), sub)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, createMomentResponse{
		ID:             result.ID,
		ShareURL:       result.ShareURL,
		HasGeneralNote: result.HasGeneralNote,
		HighlightCount: result.HighlightCount,
		Timestamp:      middleware.Timestamp(),
	})
}

// GetMoments はモーメントの取得または一覧を返す。
// GET /api/moments?id=xxx        - ID指定で1件取得（閲覧数が加算される）
// GET /api/moments?page=1&limit=20 - ページング一覧
// どのパラメータも無い場合はMISSING_IDを返す。
func (h *MomentHandler) GetMoments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if id := query.Get("id"); id != "" {
		h.getMoment(w, r, id)
		return
	}

	if query.Has("page") || query.Has("limit") {
		h.listMoments(w, r)
		return
	}

	middleware.WriteErrorResponse(w, model.NewMissingIDError())
}

// getMoment はIDでモーメントを1件返す。
func (h *MomentHandler) getMoment(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, momentResponse{
		Moment:         m,
		HasGeneralNote: m.HasGeneralNote(),
		HighlightCount: m.HighlightCount(),
		Timestamp:      middleware.Timestamp(),
	})
}

// listMoments はページング付きの一覧を返す。
func (h *MomentHandler) listMoments(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	limit := parseIntParam(r, "limit", 0)

	result, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 空ページでもdataはnullではなく空配列で返す
	data := result.Moments
	if data == nil {
		data = []*model.Moment{}
	}

	middleware.WriteJSON(w, http.StatusOK, momentListResponse{
		Data:       data,
		Pagination: result.Pagination,
		Timestamp:  middleware.Timestamp(),
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// *model.APIErrorはそのまま統一フォーマットで返し、
// それ以外はログに記録して500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	slog.Error("unexpected service error",
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// parseIntParam はクエリパラメータを整数として解釈する。
// 欠落または不正な値の場合はfallbackを返す。
func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
