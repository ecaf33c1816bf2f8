package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// ISBN はハイフンと空白を除去した比較用キーを返す。
// 全角数字・全角ハイフンは先に半角へ寄せる。
func ISBN(raw string) string {
	s := width.Narrow.String(raw)
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t', '\n', '\r', '‐', '‑', '‒', '–', '−':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// IsISBNFormat は正規化済みの値が10桁または13桁の数字かどうか
func IsISBNFormat(normalized string) bool {
	if len(normalized) != 10 && len(normalized) != 13 {
		return false
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NameList はカンマ区切りの著者名・タグ名を分解する。
// 前後空白除去、空要素除去、初出順を保った重複除去。
func NameList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return Dedup(strings.Split(raw, ","))
}

// Dedup は各要素を trim し、空要素と重複を除く（初出順）
func Dedup(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		name := strings.TrimSpace(n)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// StockCount は在庫数の入力値を解釈する。空なら def。
// 整数でない、または min 未満なら ok=false。
func StockCount(raw string, def, min int) (n int, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return 0, false
	}
	return v, true
}
