package security

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// PlainTextExcerpt はHTMLからテキストノードのみを取り出し、空白を正規化して
// 最大maxRunes文字の抜粋を返す。切り詰めた場合は末尾に「…」を付ける。
// maxRunesが0以下の場合は切り詰めない。
func PlainTextExcerpt(rawHTML string, maxRunes int) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))

	skipDepth := 0
loop:
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			break loop
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if isNonTextElement(string(tn)) {
				skipDepth++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if isNonTextElement(string(tn)) && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}

// isNonTextElement は本文として扱わない要素かを返す。
func isNonTextElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template":
		return true
	default:
		return false
	}
}
