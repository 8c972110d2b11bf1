package moment

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// idAlphabet はモーメントIDに使用する62記号のアルファベット。
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// idLength は生成するモーメントIDの長さ。
const idLength = 12

// idPattern は有効なモーメントIDの形式。
// 8〜20文字の英数字。生成IDは12文字だが、読み取りは旧IDも受け付ける。
var idPattern = regexp.MustCompile(`^[A-Za-z0-9]{8,20}$`)

// ValidIDFormat はモーメントIDが有効な形式かを返す。
// この検証に落ちたIDはストレージへの問い合わせ前に拒否される。
func ValidIDFormat(id string) bool {
	return idPattern.MatchString(id)
}

// GenerateID は12文字の英数字IDを暗号論的乱数から生成する。
// 剰余による偏りを避けるため棄却サンプリングを行う。
// 衝突チェックは呼び出し元（Service）がストアと照合して行う。
func GenerateID() (string, error) {
	// 256 % 62 = 8 なので、248以上のバイトを棄却すれば一様になる。
	const max = byte(248)

	id := make([]byte, 0, idLength)
	buf := make([]byte, 32)
	for len(id) < idLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("乱数の取得に失敗しました: %w", err)
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			id = append(id, idAlphabet[int(b)%len(idAlphabet)])
			if len(id) == idLength {
				break
			}
		}
	}
	return string(id), nil
}
