package moment

import (
	"strings"
	"unicode/utf8"

	"github.com/songdash/songdash/internal/model"
)

// maxGeneralNoteLength は全体ノートの最大文字数。
const maxGeneralNoteLength = 1000

// Validate は正規化済みの投稿データを構造的に検証する。
// 副作用とI/Oを持たない純粋関数で、最初に失敗したチェックのエラーを返す。
// エラーメッセージはAPI利用者にそのまま返されるため文言を変更しないこと。
// 検証に通過した場合はnilを返す。
func Validate(sub Submission) *model.APIError {
	if strings.TrimSpace(sub.SongID) == "" ||
		strings.TrimSpace(sub.SongTitle) == "" ||
		strings.TrimSpace(sub.SongArtist) == "" {
		return model.NewValidationError("Song must have id, title, and artist")
	}

	if !sub.HasHighlights {
		return model.NewValidationError("Highlights must be an array")
	}

	for _, h := range sub.Highlights {
		if h.Text == "" {
			return model.NewValidationError("Each highlight must have text")
		}
		if h.StartIndex == nil || h.EndIndex == nil {
			return model.NewValidationError("Highlight indices must be numbers")
		}
		if *h.StartIndex >= *h.EndIndex {
			return model.NewValidationError("Invalid highlight indices")
		}
	}

	if utf8.RuneCountInString(sub.GeneralNote) > maxGeneralNoteLength {
		return model.NewValidationError("General note too long (max 1000 characters)")
	}

	return nil
}
