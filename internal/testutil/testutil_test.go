package testutil

import (
	"math/rand"
	"testing"
)

func TestAssertNoError_Passes(t *testing.T) {
	AssertNoError(t, nil)
}

func TestMigratedDB(t *testing.T) {
	database := MigratedDB(t)
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name LIKE 'omp_%'`).Scan(&n)
	AssertNoError(t, err)
	if n != 3 {
		t.Errorf("expected 3 omp tables, got %d", n)
	}
}

func TestRandomCodes(t *testing.T) {
	codes := RandomCodes(rand.New(rand.NewSource(1)), 4, 3, 2)
	if len(codes) != 4 || len(codes[0]) != 3 || len(codes[0][0]) != 2 {
		t.Fatalf("unexpected shape %d×%d×%d", len(codes), len(codes[0]), len(codes[0][0]))
	}
	again := RandomCodes(rand.New(rand.NewSource(1)), 4, 3, 2)
	if again[3][2][1] != codes[3][2][1] {
		t.Error("same seed must give the same codes")
	}
}
