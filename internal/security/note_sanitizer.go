// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NoteSanitizerService はユーザーが入力したノート本文（全体ノートおよび
// ハイライトごとのノート）をプレーンテキストに正規化し、
// シェアページでの表示時にXSS攻撃が成立しないことを保証する。
// bluemondayのStrictPolicyで全HTMLタグを除去したうえで、
// エスケープされた文字参照を元のテキストに戻す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NoteSanitizerService はノート本文のサニタイズ機能のインターフェースを定義する。
// モーメントの永続化前に使用される。
type NoteSanitizerService interface {
	// Clean はノート本文からHTMLタグを全て除去し、プレーンテキストを返す。
	// タグ除去後に残ったHTML文字参照（&amp;等）は元の文字に戻される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Clean(note string) string
}

// noteSanitizer はNoteSanitizerServiceの実装。
// StrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type noteSanitizer struct {
	policy *bluemonday.Policy
}

// NewNoteSanitizer はNoteSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全ての要素と属性を拒否する許可リスト（空リスト）ポリシーで、
// script、img、イベント属性などを含むあらゆるマークアップを除去する。
func NewNoteSanitizer() *noteSanitizer {
	return &noteSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean はノート本文からHTMLタグを全て除去し、プレーンテキストを返す。
func (s *noteSanitizer) Clean(note string) string {
	if note == "" {
		return ""
	}
	// StrictPolicyの出力はHTMLエスケープ済みテキストになるため、
	// プレーンテキストとして保存するにはアンエスケープが必要。
	stripped := s.policy.Sanitize(note)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
