package models

import (
	"errors"
	"testing"
)

func TestNewPackageRef(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"com.example.app", false},
		{"org.fdroid.fdroid", false},
		{"com.example.app_2", false},
		{"single", true},
		{"", true},
		{"com.example.app'; rm -rf /", true},
		{"1com.example", true},
		{"com..example", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := NewPackageRef(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPackageRef(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err == nil && ref.String() != tt.name {
				t.Errorf("String() = %q, want %q", ref.String(), tt.name)
			}
		})
	}
}

func TestArtifactLifecycle(t *testing.T) {
	ref := PackageRef{Name: "com.example.app"}
	a := NewArtifact(ref, "/data/local/tmp/apk-extractor/com.example.app/base.apk")

	if a.State != ArtifactReported {
		t.Fatalf("initial state = %s, want %s", a.State, ArtifactReported)
	}
	if a.RemoteName() != "base.apk" {
		t.Errorf("RemoteName() = %q", a.RemoteName())
	}

	a.MarkDownloaded("/out/base.apk", 500)
	if a.Target() != "/out/base.apk" || a.Terminal() {
		t.Fatalf("unexpected downloaded artifact: %+v", a)
	}

	a.MarkResolved("/out/com.example.app-base.apk")
	if a.Target() != "/out/com.example.app-base.apk" || !a.Terminal() {
		t.Fatalf("unexpected resolved artifact: %+v", a)
	}
}

func TestArtifactFailed(t *testing.T) {
	a := NewArtifact(PackageRef{Name: "com.example.app"})
	if a.PrimaryRemotePath() != "" {
		t.Errorf("expected empty primary path")
	}
	a.MarkFailed(errors.New("boom"))
	if !a.Terminal() || a.Error != "boom" {
		t.Fatalf("unexpected failed artifact: %+v", a)
	}
}
