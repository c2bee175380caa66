package sqlite

import (
	"testing"

	"github.com/memoirly/memoir-backend/internal/store"
	"github.com/memoirly/memoir-backend/internal/store/storetest"
)

func TestSqliteStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := OpenMemory()
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		if err := EnsureSchema(db); err != nil {
			t.Fatalf("ensure schema: %v", err)
		}
		return NewWithDB(db)
	})
}
