package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bft-labs/haystack-sidecar/internal/ports"
)

const (
	versionFileName = "version.txt"
	configFileName  = "config.yaml"
)

// runtimeConfigFile is the on-disk shape of config.yaml as read by the
// sidecar at startup.
type runtimeConfigFile struct {
	Data struct {
		Path string `yaml:"path"`
	} `yaml:"data"`
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
}

// MarkerStore implements ports.MarkerStore with plain files in the
// install directory.
type MarkerStore struct {
	dir string
}

// NewMarkerStore creates a MarkerStore rooted at dir.
func NewMarkerStore(dir string) *MarkerStore {
	return &MarkerStore{dir: dir}
}

// ReadVersion returns the trimmed content of version.txt.
func (s *MarkerStore) ReadVersion() (string, error) {
	data, err := os.ReadFile(s.VersionPath())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteVersion replaces version.txt atomically.
func (s *MarkerStore) WriteVersion(version string) error {
	return s.writeAtomic(s.VersionPath(), []byte(version+"\n"))
}

// WriteRuntimeConfig renders cfg as YAML and replaces config.yaml atomically.
func (s *MarkerStore) WriteRuntimeConfig(cfg ports.RuntimeConfig) error {
	var file runtimeConfigFile
	file.Data.Path = cfg.DataPath
	file.Server.Host = cfg.Host
	file.Server.Port = cfg.Port

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshal runtime config: %w", err)
	}
	return s.writeAtomic(s.ConfigPath(), data)
}

// ReadRuntimeConfig parses config.yaml.
func (s *MarkerStore) ReadRuntimeConfig() (ports.RuntimeConfig, error) {
	data, err := os.ReadFile(s.ConfigPath())
	if err != nil {
		return ports.RuntimeConfig{}, err
	}
	var file runtimeConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return ports.RuntimeConfig{}, fmt.Errorf("parse %s: %w", configFileName, err)
	}
	return ports.RuntimeConfig{
		DataPath: file.Data.Path,
		Host:     file.Server.Host,
		Port:     file.Server.Port,
	}, nil
}

// Remove deletes both marker files. Missing files are ignored.
func (s *MarkerStore) Remove() error {
	var errs []error
	for _, path := range []string{s.VersionPath(), s.ConfigPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// VersionPath returns the full path to version.txt.
func (s *MarkerStore) VersionPath() string {
	return filepath.Join(s.dir, versionFileName)
}

// ConfigPath returns the full path to config.yaml.
func (s *MarkerStore) ConfigPath() string {
	return filepath.Join(s.dir, configFileName)
}

// writeAtomic writes to a temp file, then renames over path.
func (s *MarkerStore) writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
