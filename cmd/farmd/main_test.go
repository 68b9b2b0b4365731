package main

import (
	"testing"

	"farmchain/config"
)

func TestOpenDatabaseBackends(t *testing.T) {
	for _, backend := range []string{config.DatabaseMemory, config.DatabaseBolt, config.DatabaseLevelDB} {
		t.Run(backend, func(t *testing.T) {
			db, err := openDatabase(backend, t.TempDir())
			if err != nil {
				t.Fatalf("open %s: %v", backend, err)
			}
			if err := db.Put([]byte("k"), []byte("v")); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, err := db.Get([]byte("k"))
			if err != nil || string(got) != "v" {
				t.Fatalf("get: %q %v", got, err)
			}
			if err := db.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
		})
	}
}

func TestOpenDatabaseRejectsUnknownBackend(t *testing.T) {
	if _, err := openDatabase("rocks", t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
