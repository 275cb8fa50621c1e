package platform

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		goos, goarch string
		wantKey      string
		wantOK       bool
		wantExe      string
	}{
		{"linux", "amd64", "linux-amd64", true, "haystack"},
		{"darwin", "arm64", "darwin-arm64", true, "haystack"},
		{"windows", "amd64", "windows-amd64", true, "haystack.exe"},
		{"linux", "386", "linux-386", false, "haystack"},
		{"freebsd", "amd64", "freebsd-amd64", false, "haystack"},
		{"windows", "386", "windows-386", false, "haystack.exe"},
	}

	for _, tt := range tests {
		t.Run(tt.wantKey, func(t *testing.T) {
			p := Resolve(tt.goos, tt.goarch)
			if p.Key != tt.wantKey {
				t.Errorf("Key = %s, want %s", p.Key, tt.wantKey)
			}
			if p.Supported != tt.wantOK {
				t.Errorf("Supported = %v, want %v", p.Supported, tt.wantOK)
			}
			if p.Executable != tt.wantExe {
				t.Errorf("Executable = %s, want %s", p.Executable, tt.wantExe)
			}
		})
	}
}

func TestArchiveName(t *testing.T) {
	p := Resolve("darwin", "arm64")
	for _, v := range []string{"1.2.3", "v1.2.3"} {
		if got := p.ArchiveName(v); got != "haystack-darwin-arm64-v1.2.3.zip" {
			t.Errorf("ArchiveName(%q) = %s", v, got)
		}
	}
}
