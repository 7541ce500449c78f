package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestSQLiteDatabase_Session(t *testing.T) {
	ctx := context.Background()

	t.Run("load with nothing stored", func(t *testing.T) {
		db := newTestDB(t)

		rec, err := db.LoadSession(ctx)
		if err != nil {
			t.Fatalf("LoadSession() error = %v", err)
		}
		if rec != nil {
			t.Errorf("LoadSession() = %+v, want nil", rec)
		}
	})

	t.Run("save then load", func(t *testing.T) {
		db := newTestDB(t)

		want := &SessionRecord{UserID: "u1", Email: "a@example.com", SealedToken: []byte{1, 2, 3}, CreatedAt: testTime}
		if err := db.SaveSession(ctx, want); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}

		got, err := db.LoadSession(ctx)
		if err != nil {
			t.Fatalf("LoadSession() error = %v", err)
		}
		if got == nil {
			t.Fatal("LoadSession() = nil, want record")
		}
		if got.UserID != want.UserID || got.Email != want.Email {
			t.Errorf("LoadSession() = %+v, want %+v", got, want)
		}
		if string(got.SealedToken) != string(want.SealedToken) {
			t.Errorf("SealedToken = %v, want %v", got.SealedToken, want.SealedToken)
		}
		if !got.CreatedAt.Equal(testTime) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, testTime)
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		db := newTestDB(t)

		db.SaveSession(ctx, &SessionRecord{UserID: "u1", Email: "a@example.com", SealedToken: []byte("a"), CreatedAt: testTime})
		if err := db.SaveSession(ctx, &SessionRecord{UserID: "u2", Email: "b@example.com", SealedToken: []byte("b"), CreatedAt: testTime}); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}

		got, _ := db.LoadSession(ctx)
		if got == nil || got.UserID != "u2" {
			t.Errorf("LoadSession() = %+v, want user u2", got)
		}
	})

	t.Run("clear", func(t *testing.T) {
		db := newTestDB(t)

		db.SaveSession(ctx, &SessionRecord{UserID: "u1", Email: "a@example.com", SealedToken: []byte("a"), CreatedAt: testTime})
		if err := db.ClearSession(ctx); err != nil {
			t.Fatalf("ClearSession() error = %v", err)
		}
		got, _ := db.LoadSession(ctx)
		if got != nil {
			t.Errorf("LoadSession() after clear = %+v, want nil", got)
		}

		// Clearing again is fine.
		if err := db.ClearSession(ctx); err != nil {
			t.Errorf("second ClearSession() error = %v", err)
		}
	})
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	ctx := context.Background()

	t.Run("create and list operations", func(t *testing.T) {
		db := newTestDB(t)

		op1, err := db.CreateOperation(ctx, "Upload", "shirt.jpg", testTime)
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		if op1.ID == 0 {
			t.Error("operation ID should be non-zero")
		}
		if op1.Status != StatusRunning {
			t.Errorf("Status = %q, want %q", op1.Status, StatusRunning)
		}

		op2, err := db.CreateOperation(ctx, "Load", "", testTime.Add(time.Minute))
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}

		ops, err := db.ListOperations(ctx, 10)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 2 {
			t.Fatalf("got %d operations, want 2", len(ops))
		}
		if ops[0].ID != op2.ID {
			t.Errorf("expected newest first: got ID %d, want %d", ops[0].ID, op2.ID)
		}
		if ops[1].Parameters != "shirt.jpg" {
			t.Errorf("Parameters = %q, want %q", ops[1].Parameters, "shirt.jpg")
		}
	})

	t.Run("limit", func(t *testing.T) {
		db := newTestDB(t)
		for i := 0; i < 5; i++ {
			db.CreateOperation(ctx, "Load", "", testTime)
		}

		ops, err := db.ListOperations(ctx, 3)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 3 {
			t.Errorf("got %d operations, want 3", len(ops))
		}
	})

	t.Run("finish operation sets status and time", func(t *testing.T) {
		db := newTestDB(t)

		op, _ := db.CreateOperation(ctx, "Remove", "id-1", testTime)
		if err := db.FinishOperation(ctx, op.ID, StatusFailed, testTime.Add(time.Second)); err != nil {
			t.Fatalf("FinishOperation() error = %v", err)
		}

		ops, _ := db.ListOperations(ctx, 1)
		if ops[0].Status != StatusFailed {
			t.Errorf("Status = %q, want %q", ops[0].Status, StatusFailed)
		}
		if !ops[0].FinishedAt.Valid {
			t.Error("FinishedAt should be set")
		}
	})

	t.Run("finish unknown operation", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.FinishOperation(ctx, 42, StatusSuccess, testTime); err == nil {
			t.Error("FinishOperation() expected error for unknown id")
		}
	})
}

func TestSQLiteDatabase_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	db.SaveSession(ctx, &SessionRecord{UserID: "u1", Email: "a@example.com", SealedToken: []byte("x"), CreatedAt: testTime})
	db.Close()

	reopened, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if got == nil || got.UserID != "u1" {
		t.Errorf("LoadSession() = %+v, want user u1", got)
	}
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	t.Run("fails on DB without migrations applied", func(t *testing.T) {
		conn, err := OpenConnection(":memory:")
		if err != nil {
			t.Fatalf("OpenConnection() error = %v", err)
		}
		db := NewSQLiteDatabaseFromDB(conn)
		defer db.Close()

		if err := db.CheckMigrations(); err == nil {
			t.Error("CheckMigrations() expected error for missing schema")
		}
	})

	t.Run("passes after open", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() = %v", err)
		}
	})
}
