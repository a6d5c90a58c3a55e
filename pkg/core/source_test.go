package core

import "testing"

func TestSourceID(t *testing.T) {
	id := SourceID(KindFile, "filetail", "/var/log/nginx/access.log")
	if id != "file:filetail:/var/log/nginx/access.log" {
		t.Errorf("expected file:filetail:/var/log/nginx/access.log, got %s", id)
	}
}

func TestParseSourceID(t *testing.T) {
	tests := []struct {
		input     string
		wantKind  Kind
		wantProv  string
		wantNID   string
		wantError bool
	}{
		{"stdin:pipe:-", KindStdin, "pipe", "-", false},
		{"file:filetail:/var/log/app.log", KindFile, "filetail", "/var/log/app.log", false},
		{"exec:sh:kubectl logs -f web", KindExec, "sh", "kubectl logs -f web", false},
		{"invalid", "", "", "", true},
		{"only:two", "", "", "", true},
		{"exec:sh:curl -s http://localhost:8080", KindExec, "sh", "curl -s http://localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, prov, nid, err := ParseSourceID(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error for %q: %v", tt.input, err)
				return
			}
			if kind != tt.wantKind {
				t.Errorf("kind: got %q, want %q", kind, tt.wantKind)
			}
			if prov != tt.wantProv {
				t.Errorf("provider: got %q, want %q", prov, tt.wantProv)
			}
			if nid != tt.wantNID {
				t.Errorf("nativeID: got %q, want %q", nid, tt.wantNID)
			}
		})
	}
}

func TestParseSourceIDRoundTrip(t *testing.T) {
	original := SourceID(KindExec, "sh", "make serve")
	kind, prov, nid, err := ParseSourceID(original)
	if err != nil {
		t.Fatal(err)
	}
	reconstructed := SourceID(kind, prov, nid)
	if reconstructed != original {
		t.Errorf("round-trip failed: %q != %q", reconstructed, original)
	}
}
