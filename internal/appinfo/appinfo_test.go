package appinfo

import (
	"strings"
	"testing"
)

func TestEmbeddedManifest(t *testing.T) {
	if Info.Slug != "pdf2mp3" {
		t.Errorf("Slug = %q, want %q", Info.Slug, "pdf2mp3")
	}
	if Info.BinaryName != "pdf2mp3" {
		t.Errorf("BinaryName = %q, want %q", Info.BinaryName, "pdf2mp3")
	}
	if Version() == "" {
		t.Error("Version() is empty")
	}
	if !strings.HasPrefix(UserAgent(), "pdf2mp3/") {
		t.Errorf("UserAgent() = %q, want pdf2mp3/ prefix", UserAgent())
	}
}

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
		check   func(t *testing.T, m Build)
	}{
		{
			name: "defaults derived from slug",
			doc:  "metadata:\n  slug: demo\n  version: 1.0.0\n",
			check: func(t *testing.T, m Build) {
				if m.Name != "demo" || m.Description != "demo" || m.BinaryName != "demo" || m.GeneratorID != "demo" {
					t.Errorf("metadata = %+v, want all identifiers to default to the slug", m)
				}
			},
		},
		{
			name: "entrypoint strips leading ./",
			doc:  "metadata:\n  slug: demo\n  version: 1.0.0\nspec:\n  entrypoint:\n    command: ./demo-bin\n",
			check: func(t *testing.T, m Build) {
				if m.BinaryName != "demo-bin" {
					t.Errorf("BinaryName = %q, want demo-bin", m.BinaryName)
				}
			},
		},
		{name: "missing version", doc: "metadata:\n  slug: demo\n", wantErr: "metadata.version"},
		{name: "missing slug", doc: "metadata:\n  version: 1.0.0\n", wantErr: "metadata.slug"},
		{name: "invalid yaml", doc: "metadata: [", wantErr: "decode manifest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parseManifest([]byte(tt.doc))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseManifest() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseManifest() error: %v", err)
			}
			tt.check(t, m)
		})
	}
}

func TestEventMetadata(t *testing.T) {
	md := EventMetadata("m1", "Kore")
	if md["model"] != "m1" || md["voice_id"] != "Kore" || md["generator"] != Info.GeneratorID {
		t.Errorf("EventMetadata = %v", md)
	}
}
