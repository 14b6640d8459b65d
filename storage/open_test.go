package storage

import (
	"path/filepath"
	"testing"
	"time"

	"todo-list/config"
)

func TestOpen(t *testing.T) {
	_, client := newTestRedis(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.Storage
		withRC  bool
		check   func(t *testing.T, b Backend)
		wantErr bool
	}{
		{
			name: "local",
			cfg:  config.Storage{Backend: config.BackendLocal, LocalPath: filepath.Join(dir, "a.db")},
			check: func(t *testing.T, b Backend) {
				if _, ok := b.(*Local); !ok {
					t.Fatalf("expected *Local, got %T", b)
				}
			},
		},
		{
			name: "remote",
			cfg:  config.Storage{Backend: config.BackendRemote, RemoteURL: "http://localhost:3000"},
			check: func(t *testing.T, b Backend) {
				r, ok := b.(*Remote)
				if !ok {
					t.Fatalf("expected *Remote, got %T", b)
				}
				if r.base != "http://localhost:3000/api/" {
					t.Fatalf("unexpected base url %q", r.base)
				}
			},
		},
		{
			name:   "cached local",
			cfg:    config.Storage{Backend: config.BackendLocal, LocalPath: filepath.Join(dir, "b.db"), CacheTTL: time.Minute},
			withRC: true,
			check: func(t *testing.T, b Backend) {
				c, ok := b.(*CachedBackend)
				if !ok {
					t.Fatalf("expected *CachedBackend, got %T", b)
				}
				if _, ok := c.base.(*Local); !ok {
					t.Fatalf("expected wrapped *Local, got %T", c.base)
				}
			},
		},
		{
			name:   "zero ttl skips cache",
			cfg:    config.Storage{Backend: config.BackendLocal, LocalPath: filepath.Join(dir, "c.db")},
			withRC: true,
			check: func(t *testing.T, b Backend) {
				if _, ok := b.(*Local); !ok {
					t.Fatalf("expected *Local, got %T", b)
				}
			},
		},
		{
			name: "table",
			cfg: config.Storage{
				Backend:          config.BackendTable,
				ConnectionString: "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;TableEndpoint=http://127.0.0.1:10002/devstoreaccount1;",
				Table:            "Items",
			},
			check: func(t *testing.T, b Backend) {
				if _, ok := b.(*Table); !ok {
					t.Fatalf("expected *Table, got %T", b)
				}
			},
		},
		{
			name:    "unknown",
			cfg:     config.Storage{Backend: "floppy"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rc = client
			if !tt.withRC {
				rc = nil
			}
			b, err := Open(tt.cfg, rc)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			t.Cleanup(func() { _ = Close(b) })
			tt.check(t, b)
		})
	}
}
