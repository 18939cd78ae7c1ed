package config

import (
	"fmt"
	"path/filepath"

	"github.com/quantmind-br/gman/internal/helpers"
	"github.com/spf13/afero"
)

// SampleFileName is the file written by WriteSample
const SampleFileName = "gman.toml"

const sample = `# gman configuration

[paths]
# cache_dir = "~/.local/share/gman/cache"
# temp_dir = "/tmp/gman"
# db_file = "~/.local/share/gman/history.db"
# log_file = "~/.local/share/gman/gman.log"

[logging]
level = "info"   # trace, debug, info, warn, error, off
color = "auto"

[download]
chunk_size = 1048576

[install]
automatic_upgrade = "ask"   # ask, always, never
prompt = true
default_identifier = ""

[[repositories]]
name = "builds"
server = "https://teamcity.example.com"
platforms = ["Windows", "Mac"]
  [repositories.credentials]
  bearer_token = ""

[[repositories]]
name = "local"
folder = "~/gman-artifacts"

[[products]]
name = "HubKit"

  [[products.flavors]]
  platform = "Windows"
  id = "msi"
  package_type = "Msi"
  autorun = true
    [products.flavors.teamcity]
    build_type_id = "HubKit_Windows"
    artifact_path = "installer/HubKit.msi"
    [products.flavors.metadata]
    display_name_regex = "^HubKit$"
    install_path = 'C:\Program Files\HubKit\HubKit.exe'

  [[products.flavors]]
  platform = "Mac"
  id = "dmg"
  package_type = "App"
    [products.flavors.teamcity]
    build_type_id = "HubKit_Mac"
    artifact_path = "HubKit.dmg"
    [products.flavors.metadata]
    bundle_id = "com.example.hubkit"
    bundle_name = "HubKit"

[[publisher_identities]]
name = "Example"
id = "CN=Example"
platforms = ["Windows"]
`

// WriteSample writes a commented sample configuration into dir. An existing
// gman.toml is left alone and the sample goes to gman.toml.1, gman.toml.2...
func WriteSample(fs afero.Fs, dir string) (string, error) {
	path, err := helpers.NextFreePath(fs, filepath.Join(dir, SampleFileName), helpers.SuffixDot)
	if err != nil {
		return "", err
	}
	if err := afero.WriteFile(fs, path, []byte(sample), 0644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return path, nil
}
