package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Design{}).TableName():       "designs",
		(Like{}).TableName():         "likes",
		(BoostLedger{}).TableName():  "boost_ledger",
		(BoostRecord{}).TableName():  "boost_records",
		(Notification{}).TableName(): "notifications",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMillis_TruncatesToUTCMilliseconds(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	in := time.Date(2026, 3, 1, 12, 0, 0, 123456789, loc)
	got := Millis(in)
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
	if got.Nanosecond() != 123000000 {
		t.Fatalf("expected ms truncation, got %d ns", got.Nanosecond())
	}
	if !got.Equal(in.Truncate(time.Millisecond)) {
		t.Fatalf("instant changed: %v vs %v", got, in)
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Design{}, &Like{}, &BoostLedger{}, &BoostRecord{}, &Notification{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Design{}, &Like{}, &BoostLedger{}, &BoostRecord{}, &Notification{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&Design{}, "idx_designs_owner") {
		t.Fatalf("expected index idx_designs_owner on designs")
	}
	if !m.HasIndex(&Like{}, "idx_likes_actor") {
		t.Fatalf("expected index idx_likes_actor on likes")
	}

	now := Millis(time.Now())
	d := &Design{ID: "d1", OwnerID: "u1", Visibility: VisibilityPublic, CreatedAt: now}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("insert design: %v", err)
	}

	// Composite primary key: a second like by the same actor is rejected.
	if err := db.Create(&Like{DesignID: "d1", ActorID: "a1", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert like: %v", err)
	}
	if err := db.Create(&Like{DesignID: "d1", ActorID: "a1", CreatedAt: now}).Error; err == nil {
		t.Fatalf("expected primary key violation on (design_id, actor_id)")
	}
	if err := db.Create(&BoostRecord{DesignID: "d1", ActorID: "a1", Count: 1, LastBoostAt: now}).Error; err != nil {
		t.Fatalf("insert boost record: %v", err)
	}

	// Negative counters are rejected by the check constraint.
	if err := db.Exec("UPDATE designs SET like_count = -1 WHERE id = ?", "d1").Error; err == nil {
		t.Fatalf("expected check constraint violation for negative like_count")
	}

	// CASCADE: deleting the design removes its likes and boost records.
	if err := db.Delete(&Design{}, "id = ?", "d1").Error; err != nil {
		t.Fatalf("delete design: %v", err)
	}
	var cnt int64
	if err := db.Model(&Like{}).Where("design_id = ?", "d1").Count(&cnt).Error; err != nil {
		t.Fatalf("count likes: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected likes to cascade-delete, got %d", cnt)
	}
	if err := db.Model(&BoostRecord{}).Where("design_id = ?", "d1").Count(&cnt).Error; err != nil {
		t.Fatalf("count boost records: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected boost records to cascade-delete, got %d", cnt)
	}
}
