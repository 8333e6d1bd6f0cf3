package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/elenchus/internal/model"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ad Hominem (Personal Attack)", "ad hominem"},
		{"ad hominem", "ad hominem"},
		{"  Slippery   Slope!! ", "slippery slope"},
		{"Black-or-White", "blackorwhite"},
		{"", ""},
		{"(only parens)", ""},
	}

	for _, tt := range tests {
		if got := NormalizeLabel(tt.in); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeLabel_ParentheticalEquivalence(t *testing.T) {
	a := NormalizeLabel("Ad Hominem (Personal Attack)")
	b := NormalizeLabel("ad hominem")
	if a != b {
		t.Errorf("expected equal normalizations, got %q vs %q", a, b)
	}
}

func TestLoad_Bundled(t *testing.T) {
	tax, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tax.Len() != 13 {
		t.Errorf("expected 13 canonical fallacies, got %d", tax.Len())
	}

	name, ok := tax.Resolve("bandwagon")
	if !ok || name != "Bandwagon" {
		t.Errorf("Resolve(bandwagon) = %q, %v", name, ok)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallacies.json")
	content := `{"fallacies": [{"id": "x", "name": "Strawman", "alias": "Misrepresentation", "description": "d"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	tax, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tax.Len() != 1 {
		t.Errorf("expected 1 fallacy, got %d", tax.Len())
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolve_AliasAndUnknown(t *testing.T) {
	tax, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	name, ok := tax.Resolve("Ad Populum")
	if !ok || name != "Bandwagon" {
		t.Errorf("alias resolve = %q, %v; want Bandwagon", name, ok)
	}

	if _, ok := tax.Resolve("Gish Gallop"); ok {
		t.Error("unknown label should not resolve")
	}
}

func TestReconcile(t *testing.T) {
	tax := New([]model.FallacyDefinition{
		{Name: "Ad Hominem", Alias: "Personal Attack", Description: "d"},
		{Name: "Strawman", Description: "d"},
	})

	in := []model.Prediction{
		{Label: "AD HOMINEM (Personal Attack)", Score: 0.9},
		{Label: "Made Up Fallacy", Score: 0.8},
		{Label: "strawman", Score: 0.7},
	}

	out := tax.Reconcile(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 reconciled predictions, got %d", len(out))
	}
	if out[0].Label != "Ad Hominem" || out[1].Label != "Strawman" {
		t.Errorf("unexpected labels: %+v", out)
	}
}

func TestPromptLists(t *testing.T) {
	tax, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if tax.CompactList() == "" || tax.PromptList() == "" {
		t.Error("prompt lists should not be empty")
	}
}
