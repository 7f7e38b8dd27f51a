package repository

import (
	"testing"
	"time"
)

// PostgresAccountRepoは読み取り系の各インターフェースを満たすことを検証
func TestPostgresAccountRepo_ImplementsInterfaces(t *testing.T) {
	var _ AccountRepository = (*PostgresAccountRepo)(nil)
	var _ MarkerRepository = (*PostgresAccountRepo)(nil)
	var _ ArchiveRepository = (*PostgresAccountRepo)(nil)
	var _ SiteAdminRepository = (*PostgresAccountRepo)(nil)
}

// NewPostgresAccountRepoが正しく初期化されることを検証
func TestNewPostgresAccountRepo_Initializes(t *testing.T) {
	repo := NewPostgresAccountRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// lastaccess = 0 はゼロ値の時刻（未ログイン）に変換されることを検証
func TestAccountRow_ToModel_ZeroLastAccess(t *testing.T) {
	row := accountRow{ID: 7, Username: "never_logged_in_1", Auth: "shibboleth"}

	got := row.toModel()

	if !got.LastAccess.IsZero() {
		t.Errorf("LastAccess = %v, want zero", got.LastAccess)
	}
	if !got.NeverLoggedIn() {
		t.Error("NeverLoggedIn() = false, want true")
	}
	if got.AuthMethod != "shibboleth" {
		t.Errorf("AuthMethod = %q, want shibboleth", got.AuthMethod)
	}
}

// UNIX秒がUTCの時刻として復元されることを検証
func TestAccountRow_ToModel_LastAccess(t *testing.T) {
	want := time.Date(2025, 1, 14, 12, 0, 0, 0, time.UTC)
	row := accountRow{
		ID:         3,
		Username:   "to_suspend",
		Auth:       "shibboleth",
		Suspended:  true,
		Deleted:    false,
		LastAccess: want.Unix(),
	}

	got := row.toModel()

	if !got.LastAccess.Equal(want) {
		t.Errorf("LastAccess = %v, want %v", got.LastAccess, want)
	}
	if got.ID != 3 || got.Username != "to_suspend" || !got.Suspended || got.Deleted {
		t.Errorf("unexpected account: %+v", got)
	}
}

func TestToAccounts_PreservesOrder(t *testing.T) {
	rows := []accountRow{{ID: 1, Username: "a"}, {ID: 2, Username: "b"}, {ID: 5, Username: "c"}}

	got := toAccounts(rows)

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, wantID := range []int64{1, 2, 5} {
		if got[i].ID != wantID {
			t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, wantID)
		}
	}
}

func TestToAccounts_EmptyIsNonNil(t *testing.T) {
	if got := toAccounts(nil); got == nil {
		t.Error("toAccounts(nil) = nil, want empty slice")
	}
}
