// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/banshee-data/spotcall/internal/db"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// MigratedDB opens a database in a temp dir with the embedded migrations
// applied. It is closed when the test finishes.
func MigratedDB(t *testing.T) *db.DB {
	t.Helper()
	migrations, err := db.MigrationsFS("")
	AssertNoError(t, err)
	database, err := db.OpenMigrated(filepath.Join(t.TempDir(), "spots.db"), migrations)
	AssertNoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// RandomCodes returns nGenes standard normal bled codes of shape
// [rounds][channels].
func RandomCodes(rng *rand.Rand, nGenes, rounds, channels int) [][][]float64 {
	codes := make([][][]float64, nGenes)
	for g := range codes {
		codes[g] = make([][]float64, rounds)
		for r := range codes[g] {
			codes[g][r] = make([]float64, channels)
			for c := range codes[g][r] {
				codes[g][r][c] = rng.NormFloat64()
			}
		}
	}
	return codes
}
