package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aengwo/rfid-project/internal/campus/store"
	sqlitestore "github.com/aengwo/rfid-project/internal/campus/store/sqlite"
)

// ═══════════════════════════════════════════════════════════════════════════
// CreateUser / LookupCard
// ═══════════════════════════════════════════════════════════════════════════

func TestDirectoryStore_CreateAndLookup(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDirectoryStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	created := seedUser(t, ds, "A1B2C3D4", "Amina", "active")
	if created.ID == 0 {
		t.Fatal("expected an id to be assigned")
	}

	u, ok, err := ds.LookupCard(ctx, "A1B2C3D4")
	if err != nil {
		t.Fatalf("LookupCard: %v", err)
	}
	if !ok {
		t.Fatal("expected card to be found")
	}
	if u.Name != "Amina" || u.Status != "active" || u.AccessLevel != 1 {
		t.Errorf("unexpected user: %+v", u)
	}

	_, ok, err = ds.LookupCard(ctx, "FFFFFFFF")
	if err != nil {
		t.Fatalf("LookupCard unknown: %v", err)
	}
	if ok {
		t.Error("expected unknown card to be absent, not an error")
	}
}

func TestDirectoryStore_DuplicateCard(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDirectoryStore(conn, newTestWriter(t, conn))

	seedUser(t, ds, "A1B2C3D4", "Amina", "active")

	_, err := ds.CreateUser(context.Background(), store.UserRecord{
		CardID: "A1B2C3D4", Name: "Other", Email: "other@example.test", Status: "active", AccessLevel: 1,
	})
	if !errors.Is(err, store.ErrCardInUse) {
		t.Fatalf("expected ErrCardInUse, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// UpdateUser
// ═══════════════════════════════════════════════════════════════════════════

func TestDirectoryStore_UpdateUser(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDirectoryStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	u := seedUser(t, ds, "A1B2C3D4", "Amina", "active")
	other := seedUser(t, ds, "11223344", "Brian", "active")

	u.Status = "inactive"
	u.AccessLevel = 3
	updated, err := ds.UpdateUser(ctx, u)
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.Status != "inactive" || updated.AccessLevel != 3 {
		t.Errorf("update not applied: %+v", updated)
	}

	other.CardID = "A1B2C3D4"
	if _, err := ds.UpdateUser(ctx, other); !errors.Is(err, store.ErrCardInUse) {
		t.Errorf("expected ErrCardInUse when taking another user's card, got %v", err)
	}

	if _, err := ds.UpdateUser(ctx, store.UserRecord{ID: 999, CardID: "99999999", Name: "x", Email: "x@x", Status: "active", AccessLevel: 1}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// DeleteUser
// ═══════════════════════════════════════════════════════════════════════════

func TestDirectoryStore_DeleteReferencedUser(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	ds := sqlitestore.NewDirectoryStore(conn, w)
	as := sqlitestore.NewAccessLogStore(conn, w)
	ctx := context.Background()

	u := seedUser(t, ds, "A1B2C3D4", "Amina", "active")
	appendEvent(t, as, store.AccessEventRecord{
		CardID: u.CardID, UserID: &u.ID, Location: "Lab",
		Direction: "entry", Outcome: "denied", Reason: "inactive card", OccurredAt: base,
	})

	if err := ds.DeleteUser(ctx, u.ID); !errors.Is(err, store.ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}

	free := seedUser(t, ds, "11223344", "Brian", "active")
	if err := ds.DeleteUser(ctx, free.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := ds.DeleteUser(ctx, free.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// ListUsers
// ═══════════════════════════════════════════════════════════════════════════

func TestDirectoryStore_ListUsers_SearchAndLastAccess(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	ds := sqlitestore.NewDirectoryStore(conn, w)
	as := sqlitestore.NewAccessLogStore(conn, w)
	ctx := context.Background()

	amina := seedUser(t, ds, "A1B2C3D4", "Amina", "active")
	seedUser(t, ds, "11223344", "Brian", "active")
	seedUser(t, ds, "55667788", "Amos", "inactive")

	appendEvent(t, as, store.AccessEventRecord{
		CardID: amina.CardID, UserID: &amina.ID, Location: "Lab",
		Direction: "entry", Outcome: "granted", OccurredAt: base, TimeIn: ptr(base),
	})

	users, total, err := ds.ListUsers(ctx, store.UserQuery{Search: "Am", Limit: 10})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 2 || len(users) != 2 {
		t.Fatalf("expected 2 matches, got total=%d len=%d", total, len(users))
	}

	var found bool
	for _, u := range users {
		if u.ID == amina.ID {
			found = true
			if u.LastAccess == nil || !u.LastAccess.Equal(base) {
				t.Errorf("expected last access %v, got %v", base, u.LastAccess)
			}
		}
	}
	if !found {
		t.Error("expected Amina in search results")
	}

	n, err := ds.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 users, got %d", n)
	}
}

func TestDirectoryStore_ListUsers_Pagination(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDirectoryStore(conn, newTestWriter(t, conn))

	for _, c := range []string{"00000001", "00000002", "00000003"} {
		seedUser(t, ds, c, "User "+c, "active")
	}

	page, total, err := ds.ListUsers(context.Background(), store.UserQuery{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(page) != 1 || page[0].CardID != "00000001" {
		t.Errorf("expected the oldest user on the last page, got %+v", page)
	}
}
