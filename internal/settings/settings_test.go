package settings

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func TestSaveMergesPartial(t *testing.T) {
	svc, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService() = %v", err)
	}

	merged, errs, err := svc.Save(Partial{
		FaceitAPIKey: strPtr("key-1234567890"),
		AutoUpload:   boolPtr(true),
	})
	if err != nil || len(errs) > 0 {
		t.Fatalf("Save() = %v errs=%v", err, errs)
	}
	if merged.FaceitAPIKey != "key-1234567890" || !merged.AutoUpload {
		t.Fatalf("merged = %+v", merged)
	}
	if merged.MaxMatches != 20 {
		t.Fatalf("untouched default changed: %+v", merged)
	}

	// Second partial must not clobber the first.
	merged, errs, err = svc.Save(Partial{MaxMatches: intPtr(50)})
	if err != nil || len(errs) > 0 {
		t.Fatalf("Save() = %v errs=%v", err, errs)
	}
	if merged.FaceitAPIKey != "key-1234567890" || merged.MaxMatches != 50 {
		t.Fatalf("merged = %+v", merged)
	}
}

func TestSavePersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(dir)
	if err != nil {
		t.Fatalf("NewService() = %v", err)
	}
	if _, _, err := svc.Save(Partial{FaceitPlayerID: strPtr("0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0")}); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	reopened, err := NewService(dir)
	if err != nil {
		t.Fatalf("NewService() reopen = %v", err)
	}
	if got := reopened.Load().FaceitPlayerID; got != "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0" {
		t.Fatalf("player id = %q", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		partial Partial
		wantErr int
	}{
		{"valid full", Partial{
			FaceitAPIKey:   strPtr("key-1234567890"),
			FaceitPlayerID: strPtr("0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0"),
			MaxMatches:     intPtr(25),
		}, 0},
		{"empty strings accepted", Partial{FaceitAPIKey: strPtr(""), FaceitPlayerID: strPtr("")}, 0},
		{"short api key", Partial{FaceitAPIKey: strPtr("short")}, 1},
		{"bad player id", Partial{FaceitPlayerID: strPtr("not-a-uuid")}, 1},
		{"max matches too high", Partial{MaxMatches: intPtr(500)}, 1},
		{"max matches too low", Partial{MaxMatches: intPtr(0)}, 1},
		{"everything wrong", Partial{
			FaceitAPIKey:   strPtr("x"),
			FaceitPlayerID: strPtr("y"),
			MaxMatches:     intPtr(-1),
		}, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if errs := Validate(tc.partial); len(errs) != tc.wantErr {
				t.Fatalf("Validate() = %v; want %d errors", errs, tc.wantErr)
			}
		})
	}
}

func TestSaveRejectsInvalidPartial(t *testing.T) {
	svc, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService() = %v", err)
	}

	_, errs, err := svc.Save(Partial{MaxMatches: intPtr(1000)})
	if err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if len(errs) == 0 {
		t.Fatal("invalid partial accepted")
	}
	if svc.Load().MaxMatches != 20 {
		t.Fatalf("settings changed despite validation failure: %+v", svc.Load())
	}
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(dir)
	if err != nil {
		t.Fatalf("NewService() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan Settings, 1)
	go func() {
		_ = svc.Watch(ctx, func(s Settings) {
			select {
			case changed <- s:
			default:
			}
		})
	}()

	// Give the watcher a moment to register.
	time.Sleep(50 * time.Millisecond)

	updated := Defaults()
	updated.AutoUpload = true
	data, _ := json.Marshal(updated)
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), data, 0o644); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}

	select {
	case got := <-changed:
		if !got.AutoUpload {
			t.Fatalf("reloaded settings = %+v; want autoUpload true", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not observe file change")
	}
}
