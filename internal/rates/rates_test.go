package rates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmynk/settler/internal/models"
)

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.json")
	if err := os.WriteFile(path, []byte(`{"USD": "1", "EUR": "1.08"}`), 0o644); err != nil {
		t.Fatalf("failed to write rate file: %v", err)
	}

	provider, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	table, err := provider.Rates(context.Background())
	if err != nil {
		t.Fatalf("Rates failed: %v", err)
	}
	if got, err := table.ToReference(1000, models.EUR); err != nil || got != 1080 {
		t.Errorf("ToReference = %d, %v; want 1080, nil", got, err)
	}
}

func TestFromFileRejectsBadTables(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unsupported currency", `{"XXX": "1"}`},
		{"non-decimal rate", `{"EUR": "lots"}`},
		{"zero rate", `{"EUR": "0"}`},
		{"not json", `EUR=1.08`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rates.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write rate file: %v", err)
			}
			if _, err := FromFile(path); err == nil {
				t.Fatal("FromFile succeeded, want error")
			}
		})
	}
}
