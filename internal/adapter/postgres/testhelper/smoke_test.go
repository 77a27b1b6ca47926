//go:build integration

package testhelper

import (
	"context"
	"testing"
)

func TestSetupTestDB_Smoke(t *testing.T) {
	pool := SetupTestDB(t)
	Reset(t, pool)

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO facilities (name) VALUES ($1) RETURNING id`, "Groton").Scan(&id)
	if err != nil {
		t.Fatalf("insert facility: %v", err)
	}

	var name string
	err = pool.QueryRow(context.Background(),
		`SELECT name FROM facilities WHERE id = $1`, id).Scan(&name)
	if err != nil {
		t.Fatalf("expected facility in DB, got error: %v", err)
	}
	if name != "Groton" {
		t.Fatalf("expected name %q, got %q", "Groton", name)
	}
}
