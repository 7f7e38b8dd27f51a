package reconcile

import (
	"context"
	"fmt"
	"time"
)

// Provenance は停止の出所を表す。
// ToolSuspended か ManualSuspended のいずれかで、候補ごとに1回だけ判定する。
type Provenance interface {
	provenance()
}

// ToolSuspended はこのツールが停止したアカウント（マーカー行あり）。
type ToolSuspended struct {
	// MarkedAt はツールが停止した時刻。
	MarkedAt time.Time
}

// ManualSuspended はツール以外（管理者など）が停止したアカウント。
type ManualSuspended struct{}

func (ToolSuspended) provenance()   {}
func (ManualSuspended) provenance() {}

// provenanceOf はマーカー行の有無から停止の出所を判定する。
func (r *Reconciler) provenanceOf(ctx context.Context, id int64) (Provenance, error) {
	marker, err := r.store.FindMarker(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("停止の出所の判定に失敗しました (id=%d): %w", id, err)
	}
	if marker == nil {
		return ManualSuspended{}, nil
	}
	return ToolSuspended{MarkedAt: marker.Timestamp}, nil
}
