package docker

import (
	"strings"
	"testing"
)

func TestGenerateRandomName(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name := GenerateRandomName()
		parts := strings.Split(name, "-")
		if len(parts) != 2 {
			t.Errorf("GenerateRandomName() = %q, expected adjective-noun format", name)
		}
		seen[name] = true
	}

	if len(seen) < 10 {
		t.Errorf("GenerateRandomName() generated too few unique names: %d", len(seen))
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"builder", "builder"},
		{"my builder/v2", "my-builder-v2"},
		{"  ..lead", "lead"},
		{"ok_name.1-2", "ok_name.1-2"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeName(tt.in); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContainerName(t *testing.T) {
	tests := []struct {
		profile    string
		instanceID string
		want       string
	}{
		{"builder", "0f8fad5b-d9cb-469f-a165-70867728950e", "dockercloud-builder-0f8fad5b"},
		{"linux/amd64", "abc", "dockercloud-linux-amd64-abc"},
		{"builder", "", "dockercloud-builder"},
	}

	for _, tt := range tests {
		t.Run(tt.profile+"_"+tt.instanceID, func(t *testing.T) {
			got := ContainerName(tt.profile, tt.instanceID)
			if got != tt.want {
				t.Errorf("ContainerName(%q, %q) = %q, want %q", tt.profile, tt.instanceID, got, tt.want)
			}
		})
	}
}

func TestContainerName_RandomWhenNoProfile(t *testing.T) {
	got := ContainerName("", "0f8fad5b-d9cb")
	if !strings.HasPrefix(got, NamePrefix+"-") || !strings.HasSuffix(got, "-0f8fad5b") {
		t.Errorf("ContainerName() = %q, want dockercloud-<random>-0f8fad5b", got)
	}
}
