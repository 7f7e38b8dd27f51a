// Package directory は外部ディレクトリ（LDAP）から有効なプリンシパル名の集合を構築する。
// 照合パスごとに1回だけ取得し、以降は不変のLookupSetとして扱う。
package directory

import "context"

// LookupSet はディレクトリ上で有効なプリンシパル名の集合。
// 比較は完全一致で、大文字小文字の正規化は行わない。
type LookupSet struct {
	names map[string]struct{}
}

// NewLookupSet は与えられた名前から LookupSet を構築する。
// 重複は1件にまとめられる。空文字列は登録しない。
func NewLookupSet(names ...string) LookupSet {
	set := LookupSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n == "" {
			continue
		}
		set.names[n] = struct{}{}
	}
	return set
}

// Contains は名前が集合に含まれる場合にtrueを返す。
func (s LookupSet) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Len は集合の要素数を返す。
func (s LookupSet) Len() int {
	return len(s.names)
}

// Source は LookupSet の取得元のインターフェース。
// 取得に失敗した場合は部分的な集合を返さず、エラーのみを返す。
type Source interface {
	Fetch(ctx context.Context) (LookupSet, error)
}

// StaticSource はネットワークに接続せず、固定の集合を返す Source。
// テストやバイパス運用で、ライブディレクトリの代わりに使う唯一の手段。
type StaticSource struct {
	Set LookupSet
}

// Fetch は保持している集合をそのまま返す。
func (s StaticSource) Fetch(ctx context.Context) (LookupSet, error) {
	return s.Set, nil
}
