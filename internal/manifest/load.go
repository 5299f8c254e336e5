package manifest

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is a manifest file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", errors.Wrapf(errdefs.ErrInvalidArgument, "unsupported manifest extension %q (expected .toml, .yaml, .yml or .json)", filepath.Ext(path))
	}
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	m, err := Parse(format, b)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return m, nil
}

// Parse decodes a manifest. Unknown keys are rejected in every format so a
// misspelled field cannot silently drop an artifact.
func Parse(format Format, data []byte) (*Manifest, error) {
	var (
		m   Manifest
		err error
	)
	switch format {
	case FormatTOML:
		err = toml.NewDecoder(bytes.NewReader(data)).Strict(true).Decode(&m)
	case FormatYAML:
		err = decodeYAML(data, &m)
	case FormatJSON:
		err = decodeJSON(data, &m)
	default:
		return nil, errors.Wrapf(errdefs.ErrInvalidArgument, "unknown manifest format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(errdefs.ErrInvalidArgument, "parse %s manifest: %v", format, err)
	}
	return &m, nil
}

func decodeYAML(data []byte, m *Manifest) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		if err == io.EOF {
			// Empty document.
			return nil
		}
		return err
	}
	var trailing yaml.Node
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return errors.New("multiple documents")
		}
		return err
	}
	return nil
}

func decodeJSON(data []byte, m *Manifest) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(m); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return errors.New("trailing data")
		}
		return err
	}
	return nil
}
