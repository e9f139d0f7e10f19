package db

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gormDB, err := Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return NewStore(gormDB)
}

func TestUpsertRequestOverwritesSingleRow(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertRequest(42, 100, "tama", 1000); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertRequest(42, 100, "tama", 2000); err != nil {
		t.Fatal(err)
	}
	ts, found, err := s.GetRequest(42, 100, "tama")
	if err != nil || !found {
		t.Fatalf("GetRequest = (%d, %v, %v)", ts, found, err)
	}
	if ts != 2000 {
		t.Fatalf("timestamp = %d, want 2000 (overwritten)", ts)
	}

	var count int64
	s.db.Model(&RequestLog{}).Count(&count)
	if count != 1 {
		t.Fatalf("rows = %d, want 1: записи не должны накапливаться по одному ключу", count)
	}
}

func TestGetRequestAbsent(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.GetRequest(42, 100, "tama")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("absent key must report not found, not an error")
	}
}

func TestCommandCooldownFamilyIsSeparate(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertCommandCooldown(42, 100, "premium", 1000); err != nil {
		t.Fatal(err)
	}
	// Одинаковый ключ в другой таблице не виден
	_, found, err := s.GetRequest(42, 100, "premium")
	if err != nil || found {
		t.Fatalf("request family must not see command rows: (%v, %v)", found, err)
	}
	ts, found, err := s.GetCommandCooldown(42, 100, "premium")
	if err != nil || !found || ts != 1000 {
		t.Fatalf("GetCommandCooldown = (%d, %v, %v)", ts, found, err)
	}
}

func TestCreateOwnershipRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateOwnership(100, 555, 42, 1000); err != nil {
		t.Fatal(err)
	}
	err := s.CreateOwnership(100, 555, 99, 2000)
	if !errors.Is(err, ErrDuplicateOwnership) {
		t.Fatalf("err = %v, want ErrDuplicateOwnership", err)
	}
	owner, found, err := s.GetOwner(100, 555)
	if err != nil || !found || owner != 42 {
		t.Fatalf("owner = (%d, %v, %v), want 42", owner, found, err)
	}
}

func TestLinkMessageBestEffort(t *testing.T) {
	s := newTestStore(t)
	// Основного нет — привязка молча пропускается
	if err := s.LinkMessage(100, 555, 556); err != nil {
		t.Fatalf("link without primary must not fail: %v", err)
	}
	ids, err := s.GetLinkedMessages(100, 555)
	if err != nil || len(ids) != 0 {
		t.Fatalf("linked = (%v, %v), want empty", ids, err)
	}

	if err := s.CreateOwnership(100, 555, 42, 1000); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkMessage(100, 555, 556); err != nil {
		t.Fatal(err)
	}
	// Повторная привязка идемпотентна
	if err := s.LinkMessage(100, 555, 556); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkMessage(100, 555, 557); err != nil {
		t.Fatal(err)
	}
	ids, err = s.GetLinkedMessages(100, 555)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 556 || ids[1] != 557 {
		t.Fatalf("linked = %v, want [556 557]", ids)
	}
}

func TestDeleteOwnershipCascades(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateOwnership(100, 555, 42, 1000); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkMessage(100, 555, 556); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteOwnership(100, 555); err != nil {
		t.Fatal(err)
	}
	_, found, err := s.GetOwner(100, 555)
	if err != nil || found {
		t.Fatalf("owner must be gone: (%v, %v)", found, err)
	}
	ids, _ := s.GetLinkedMessages(100, 555)
	if len(ids) != 0 {
		t.Fatalf("links must be gone, got %v", ids)
	}
}

func TestDeleteOwnershipOlderThan(t *testing.T) {
	s := newTestStore(t)
	base := int64(1_000_000)
	if err := s.CreateOwnership(100, 1, 42, base); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkMessage(100, 1, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateOwnership(100, 3, 42, base+25*3600); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateOwnership(200, 1, 77, base+25*3600); err != nil {
		t.Fatal(err)
	}

	cutoff := base + 3600 // всё старше часа от base
	messages, links, err := s.DeleteOwnershipOlderThan(cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if messages != 1 || links != 1 {
		t.Fatalf("deleted (%d, %d), want (1, 1)", messages, links)
	}
	// Свежие записи, включая message_id=1 в другом чате, не тронуты
	if _, found, _ := s.GetOwner(100, 3); !found {
		t.Fatal("fresh record in chat 100 removed")
	}
	if _, found, _ := s.GetOwner(200, 1); !found {
		t.Fatal("record in chat 200 removed: sweep must be row-scoped by (chat, message)")
	}
}

func TestOwnershipStats(t *testing.T) {
	s := newTestStore(t)
	total, linked, err := s.OwnershipStats()
	if err != nil || total != 0 || linked != 0 {
		t.Fatalf("empty stats = (%d, %d, %v)", total, linked, err)
	}
	s.CreateOwnership(100, 1, 42, 1000)
	s.CreateOwnership(100, 2, 42, 1000)
	s.LinkMessage(100, 1, 10)
	total, linked, err = s.OwnershipStats()
	if err != nil || total != 2 || linked != 1 {
		t.Fatalf("stats = (%d, %d, %v), want (2, 1)", total, linked, err)
	}
}

func TestMarkPaymentSucceededExtendsPremium(t *testing.T) {
	s := newTestStore(t)
	user, err := s.GetOrCreateUser(42, "tester")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreatePayment(user.ID, "pay-1", 399, 3); err != nil {
		t.Fatal(err)
	}

	updated, err := s.MarkPaymentSucceeded("pay-1")
	if err != nil {
		t.Fatal(err)
	}
	if updated.PremiumUntil == nil {
		t.Fatal("premium_until not set")
	}
	wantMin := time.Now().Unix() + 3*30*24*60*60 - 5
	if *updated.PremiumUntil < wantMin {
		t.Fatalf("premium_until = %d, want >= %d", *updated.PremiumUntil, wantMin)
	}
	premium, err := s.IsPremium(42, time.Now().Unix())
	if err != nil || !premium {
		t.Fatalf("IsPremium = (%v, %v), want true", premium, err)
	}

	// Повторная доставка webhook не продлевает второй раз
	if _, err := s.MarkPaymentSucceeded("pay-1"); err == nil {
		t.Fatal("second delivery must not find a pending payment")
	}
}

func TestFindExpiringPremium(t *testing.T) {
	s := newTestStore(t)
	user, err := s.GetOrCreateUser(42, "tester")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().Unix()
	until := now + 2*24*60*60
	s.db.Model(&User{}).Where("id = ?", user.ID).Update("premium_until", until)

	users, err := s.FindExpiringPremium(now, now+3*24*60*60)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].TelegramID != 42 {
		t.Fatalf("expiring = %v, want user 42", users)
	}
	if err := s.MarkNotifiedEnd(user.ID); err != nil {
		t.Fatal(err)
	}
	users, err = s.FindExpiringPremium(now, now+3*24*60*60)
	if err != nil || len(users) != 0 {
		t.Fatalf("after notify: %v, %v, want empty", users, err)
	}
}
