package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"

	"Gift-Price-Telegram-bot/internal/db"
)

// Тесты гоняют лимитер на настоящем GORM-хранилище (sqlite в памяти)
// с подставным временем.

type testClock struct {
	now time.Time
}

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(t *testing.T) (*Limiter, *testClock) {
	t.Helper()
	gormDB, err := db.Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	clk := &testClock{now: time.Unix(1000, 0)}
	l := New(db.NewStore(gormDB), 60*time.Second, 3*time.Second)
	l.now = func() time.Time { return clk.now }
	return l, clk
}

func mustAllow(t *testing.T, l *Limiter, user, chat int64, key string) {
	t.Helper()
	allowed, seconds, err := l.CanRequest(user, chat, key)
	if err != nil {
		t.Fatalf("CanRequest(%d,%d,%q): %v", user, chat, key, err)
	}
	if !allowed || seconds != 0 {
		t.Fatalf("CanRequest(%d,%d,%q) = (%v, %d), want allowed", user, chat, key, allowed, seconds)
	}
}

func mustDeny(t *testing.T, l *Limiter, user, chat int64, key string, wantSeconds int) {
	t.Helper()
	allowed, seconds, err := l.CanRequest(user, chat, key)
	if err != nil {
		t.Fatalf("CanRequest(%d,%d,%q): %v", user, chat, key, err)
	}
	if allowed {
		t.Fatalf("CanRequest(%d,%d,%q) allowed, want denied", user, chat, key)
	}
	if seconds != wantSeconds {
		t.Fatalf("seconds remaining = %d, want %d", seconds, wantSeconds)
	}
}

func TestCooldownMonotonicity(t *testing.T) {
	l, clk := newTestLimiter(t)
	mustAllow(t, l, 42, 100, "tama")
	clk.advance(30 * time.Second)
	mustDeny(t, l, 42, 100, "tama", 30)
}

func TestNoRefreshOnDeny(t *testing.T) {
	l, clk := newTestLimiter(t)
	mustAllow(t, l, 42, 100, "tama")

	clk.advance(10 * time.Second)
	mustDeny(t, l, 42, 100, "tama", 50)

	// Отказ не сдвинул окно: остаток продолжает убывать
	clk.advance(10 * time.Second)
	mustDeny(t, l, 42, 100, "tama", 40)
}

func TestPostWindowReset(t *testing.T) {
	l, clk := newTestLimiter(t)
	mustAllow(t, l, 42, 100, "tama")
	clk.advance(60 * time.Second)
	mustAllow(t, l, 42, 100, "tama")
}

func TestDenyNeverReportsZero(t *testing.T) {
	l, clk := newTestLimiter(t)
	mustAllow(t, l, 42, 100, "tama")
	clk.advance(59 * time.Second)
	mustDeny(t, l, 42, 100, "tama", 1)
}

func TestIndependenceAcrossKeys(t *testing.T) {
	l, clk := newTestLimiter(t)
	mustAllow(t, l, 42, 100, "tama")
	clk.advance(10 * time.Second)

	mustDeny(t, l, 42, 100, "tama", 50)
	// Другой ресурс, другой пользователь, другой чат — независимы
	mustAllow(t, l, 42, 100, "durov's cap")
	mustAllow(t, l, 43, 100, "tama")
	mustAllow(t, l, 42, 200, "tama")
}

func TestResourceKeyNormalization(t *testing.T) {
	l, clk := newTestLimiter(t)
	mustAllow(t, l, 42, 100, "  Tama ")
	clk.advance(5 * time.Second)
	// Тот же ключ после нормализации
	mustDeny(t, l, 42, 100, "tama", 55)
}

func TestInvalidResourceKey(t *testing.T) {
	l, _ := newTestLimiter(t)
	for _, key := range []string{"", "   ", "\t\n"} {
		_, _, err := l.CanRequest(42, 100, key)
		if !errors.Is(err, ErrInvalidResourceKey) {
			t.Errorf("CanRequest(%q) err = %v, want ErrInvalidResourceKey", key, err)
		}
	}
	_, _, err := l.CanUseCommand(42, 100, " ")
	if !errors.Is(err, ErrInvalidCommandName) {
		t.Errorf("CanUseCommand err = %v, want ErrInvalidCommandName", err)
	}
}

func TestInlineSentinelChat(t *testing.T) {
	l, clk := newTestLimiter(t)
	mustAllow(t, l, 42, InlineChatID, "tama")
	clk.advance(5 * time.Second)
	mustDeny(t, l, 42, InlineChatID, "tama", 55)
	// Реальный чат не задет сентинелом
	mustAllow(t, l, 42, 100, "tama")
}

func TestCommandCooldownWindows(t *testing.T) {
	l, clk := newTestLimiter(t)
	l.SetCommandWindow("premium", 10*time.Second)

	allowed, _, err := l.CanUseCommand(42, 100, "help")
	if err != nil || !allowed {
		t.Fatalf("help: (%v, %v), want allowed", allowed, err)
	}
	allowed, seconds, err := l.CanUseCommand(42, 100, "help")
	if err != nil || allowed || seconds != 3 {
		t.Fatalf("help repeat: (%v, %d, %v), want denied 3s", allowed, seconds, err)
	}

	allowed, _, err = l.CanUseCommand(42, 100, "premium")
	if err != nil || !allowed {
		t.Fatalf("premium: (%v, %v), want allowed", allowed, err)
	}
	clk.advance(5 * time.Second)
	allowed, seconds, err = l.CanUseCommand(42, 100, "premium")
	if err != nil || allowed || seconds != 5 {
		t.Fatalf("premium repeat: (%v, %d, %v), want denied 5s", allowed, seconds, err)
	}
	// Дефолтное окно help к этому моменту уже истекло
	allowed, _, err = l.CanUseCommand(42, 100, "help")
	if err != nil || !allowed {
		t.Fatalf("help after window: (%v, %v), want allowed", allowed, err)
	}
}

func TestCanRequestWindowOverride(t *testing.T) {
	l, clk := newTestLimiter(t)
	// Укороченное окно для премиума
	allowed, _, err := l.CanRequestWindow(42, 100, "tama", 30*time.Second)
	if err != nil || !allowed {
		t.Fatalf("first: (%v, %v)", allowed, err)
	}
	clk.advance(30 * time.Second)
	allowed, _, err = l.CanRequestWindow(42, 100, "tama", 30*time.Second)
	if err != nil || !allowed {
		t.Fatalf("after short window: (%v, %v), want allowed", allowed, err)
	}
}

func TestOwnershipExclusivity(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.RegisterMessage(42, 100, 555); err != nil {
		t.Fatalf("RegisterMessage: %v", err)
	}
	ok, err := l.CanDeleteMessage(42, 100, 555)
	if err != nil || !ok {
		t.Fatalf("owner CanDeleteMessage = (%v, %v), want true", ok, err)
	}
	ok, err = l.CanDeleteMessage(99, 100, 555)
	if err != nil || ok {
		t.Fatalf("stranger CanDeleteMessage = (%v, %v), want false", ok, err)
	}
}

func TestFailClosedOnUnknownMessage(t *testing.T) {
	l, _ := newTestLimiter(t)
	ok, err := l.CanDeleteMessage(42, 100, 777)
	if err != nil {
		t.Fatalf("CanDeleteMessage: %v", err)
	}
	if ok {
		t.Fatal("unknown message must be denied")
	}
}

func TestIdempotentRegistration(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.RegisterMessage(42, 100, 555); err != nil {
		t.Fatalf("first RegisterMessage: %v", err)
	}
	if err := l.RegisterMessage(42, 100, 555); err != nil {
		t.Fatalf("same-owner re-register must be no-op, got %v", err)
	}
	err := l.RegisterMessage(99, 100, 555)
	if !errors.Is(err, db.ErrDuplicateOwnership) {
		t.Fatalf("re-register by another user: err = %v, want ErrDuplicateOwnership", err)
	}
	// Владелец не изменился
	owner, found, err := l.GetMessageOwner(100, 555)
	if err != nil || !found || owner != 42 {
		t.Fatalf("owner = (%d, %v, %v), want 42", owner, found, err)
	}
}

func TestCascadeLinkage(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.RegisterMessage(42, 100, 555); err != nil {
		t.Fatal(err)
	}
	if err := l.RegisterLinkedMessage(42, 100, 555, 556); err != nil {
		t.Fatalf("RegisterLinkedMessage: %v", err)
	}
	linked, err := l.GetLinkedMessages(100, 555)
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 1 || linked[0] != 556 {
		t.Fatalf("linked = %v, want [556]", linked)
	}
	// Привязка не создаёт самостоятельного владения
	ok, err := l.CanDeleteMessage(42, 100, 556)
	if err != nil || ok {
		t.Fatalf("linked message must not carry ownership, got (%v, %v)", ok, err)
	}
}

func TestLinkUnknownPrimaryIsNoop(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.RegisterLinkedMessage(42, 100, 999, 1000); err != nil {
		t.Fatalf("link to unknown primary must not fail, got %v", err)
	}
	linked, err := l.GetLinkedMessages(100, 999)
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 0 {
		t.Fatalf("linked = %v, want empty", linked)
	}
}

func TestForgetMessage(t *testing.T) {
	l, _ := newTestLimiter(t)
	if err := l.RegisterMessage(42, 100, 555); err != nil {
		t.Fatal(err)
	}
	if err := l.RegisterLinkedMessage(42, 100, 555, 556); err != nil {
		t.Fatal(err)
	}
	if err := l.ForgetMessage(100, 555); err != nil {
		t.Fatalf("ForgetMessage: %v", err)
	}
	ok, err := l.CanDeleteMessage(42, 100, 555)
	if err != nil || ok {
		t.Fatalf("forgotten message must be denied, got (%v, %v)", ok, err)
	}
	linked, _ := l.GetLinkedMessages(100, 555)
	if len(linked) != 0 {
		t.Fatalf("links must be removed with the primary, got %v", linked)
	}
}

func TestMaintenanceRespectsRetention(t *testing.T) {
	l, clk := newTestLimiter(t)
	if err := l.RegisterMessage(42, 100, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.RegisterLinkedMessage(42, 100, 1, 2); err != nil {
		t.Fatal(err)
	}
	clk.advance(25 * time.Hour)
	if err := l.RegisterMessage(42, 100, 3); err != nil {
		t.Fatal(err)
	}

	messages, links, err := l.CleanupOldMessageOwnership(24 * time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if messages != 1 || links != 1 {
		t.Fatalf("cleanup deleted (%d, %d), want (1, 1)", messages, links)
	}
	if ok, _ := l.CanDeleteMessage(42, 100, 1); ok {
		t.Fatal("expired record must be gone (and denied fail-closed)")
	}
	if ok, _ := l.CanDeleteMessage(42, 100, 3); !ok {
		t.Fatal("fresh record must survive the sweep")
	}

	total, linked, err := l.OwnershipStats()
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || linked != 0 {
		t.Fatalf("stats = (%d, %d), want (1, 0)", total, linked)
	}
}

// Сквозной сценарий из жизни бота: троттл цены + владение карточкой
func TestExampleScenario(t *testing.T) {
	l, clk := newTestLimiter(t)

	mustAllow(t, l, 42, 100, "tama") // t=1000
	clk.advance(30 * time.Second)
	mustDeny(t, l, 42, 100, "tama", 30) // t=1030
	clk.advance(31 * time.Second)
	mustAllow(t, l, 42, 100, "tama") // t=1061

	if err := l.RegisterMessage(42, 100, 555); err != nil {
		t.Fatal(err)
	}
	if ok, _ := l.CanDeleteMessage(99, 100, 555); ok {
		t.Fatal("user 99 must not control message 555")
	}
	if ok, _ := l.CanDeleteMessage(42, 100, 555); !ok {
		t.Fatal("user 42 must control message 555")
	}
	if err := l.RegisterLinkedMessage(42, 100, 555, 556); err != nil {
		t.Fatal(err)
	}
	linked, err := l.GetLinkedMessages(100, 555)
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 1 || linked[0] != 556 {
		t.Fatalf("linked = %v, want [556]", linked)
	}
}
