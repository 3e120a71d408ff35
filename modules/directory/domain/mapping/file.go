package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

var ErrUnsupportedFormat = errors.New("unsupported mapping format")

type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// File is the on-disk mapping document.
//
//	tenant_id: 00000000-0000-0000-0000-000000000001
//	entities:
//	  organization:
//	    warehouse:
//	      organization_id: org_id
type File struct {
	TenantID string                `yaml:"tenant_id,omitempty" toml:"tenant_id,omitempty"`
	Entities map[string]EntityFile `yaml:"entities" toml:"entities"`
}

type EntityFile struct {
	Table *string `yaml:"table,omitempty" toml:"table,omitempty"`
	// Dataset set to "" disables the warehouse feed for the type.
	Dataset    *string           `yaml:"dataset,omitempty" toml:"dataset,omitempty"`
	Relational map[string]string `yaml:"relational,omitempty" toml:"relational,omitempty"`
	Warehouse  map[string]string `yaml:"warehouse,omitempty" toml:"warehouse,omitempty"`
}

func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// Load reads overrides from path on top of the default mapping. An empty
// path yields the default mapping.
func Load(path string, catalog *entity.Catalog) (*Mapper, error) {
	if strings.TrimSpace(path) == "" {
		return Default(catalog), nil
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	m, err := Parse(data, format, catalog)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return m, nil
}

func Parse(data []byte, format Format, catalog *entity.Catalog) (*Mapper, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys: %v", undecoded)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return Default(catalog).apply(f)
}

// Encode writes f in the given format.
func Encode(f File, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(f)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(f); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
