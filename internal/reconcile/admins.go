package reconcile

import "github.com/hitoshi/cleanupusers/internal/model"

// PrivilegedIDs は指定IDのアカウントを特権アカウントとみなす判定関数を返す。
// サイト管理者の一覧から Options.IsPrivileged を組み立てるときに使う。
func PrivilegedIDs(ids []int64) func(model.Account) bool {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(a model.Account) bool {
		_, ok := set[a.ID]
		return ok
	}
}
