// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"grimm.is/reachability/internal/errors"
)

// LoadOptions controls how snapshots are loaded
type LoadOptions struct {
	// StrictVersion fails if the snapshot version doesn't match CurrentSchemaVersion
	StrictVersion bool

	// SkipValidation returns the decoded snapshot without running Validate
	SkipValidation bool
}

// DefaultLoadOptions returns sensible defaults for loading snapshots
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{}
}

// LoadFile loads a snapshot, choosing the format from the file extension.
// Unknown extensions are tried as HCL, then YAML, then JSON.
func LoadFile(path string) (*Network, error) {
	return LoadFileWithOptions(path, DefaultLoadOptions())
}

// LoadFileWithOptions loads a snapshot file with explicit options
func LoadFileWithOptions(path string, opts LoadOptions) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindNotFound, "failed to read snapshot %s", path)
	}

	var net *Network
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		net, err = decodeHCL(data, path)
	case ".yaml", ".yml":
		net, err = decodeYAML(data)
	case ".json":
		net, err = decodeJSON(data)
	default:
		var hclErr error
		if net, hclErr = decodeHCL(data, path); hclErr == nil {
			break
		}
		if net, err = decodeYAML(data); err == nil {
			break
		}
		if net, err = decodeJSON(data); err != nil {
			return nil, errors.Wrap(hclErr, errors.KindValidation, "failed to parse snapshot as HCL, YAML or JSON")
		}
	}
	if err != nil {
		return nil, err
	}
	return finishLoad(net, opts)
}

// LoadHCL loads a snapshot from HCL bytes
func LoadHCL(data []byte, filename string) (*Network, error) {
	net, err := decodeHCL(data, filename)
	if err != nil {
		return nil, err
	}
	return finishLoad(net, DefaultLoadOptions())
}

// LoadYAML loads a snapshot from YAML bytes
func LoadYAML(data []byte) (*Network, error) {
	net, err := decodeYAML(data)
	if err != nil {
		return nil, err
	}
	return finishLoad(net, DefaultLoadOptions())
}

// LoadJSON loads a snapshot from JSON bytes
func LoadJSON(data []byte) (*Network, error) {
	net, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	return finishLoad(net, DefaultLoadOptions())
}

func decodeHCL(data []byte, filename string) (*Network, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Wrap(diags, errors.KindValidation, "failed to parse HCL")
	}
	var net Network
	if diags := gohcl.DecodeBody(file.Body, nil, &net); diags.HasErrors() {
		return nil, errors.Wrap(diags, errors.KindValidation, "failed to decode HCL")
	}
	return &net, nil
}

func decodeYAML(data []byte) (*Network, error) {
	var net Network
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&net); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "failed to parse YAML")
	}
	return &net, nil
}

func decodeJSON(data []byte) (*Network, error) {
	var net Network
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&net); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "failed to parse JSON")
	}
	return &net, nil
}

func finishLoad(net *Network, opts LoadOptions) (*Network, error) {
	if net.SchemaVersion == "" {
		net.SchemaVersion = CurrentSchemaVersion
	}
	if opts.StrictVersion && net.SchemaVersion != CurrentSchemaVersion {
		return nil, errors.Errorf(errors.KindValidation, "snapshot version %s does not match current version %s",
			net.SchemaVersion, CurrentSchemaVersion)
	}
	if !opts.SkipValidation {
		if errs := net.Validate(); errs.HasErrors() {
			return nil, errors.Wrap(errs, errors.KindValidation, "invalid snapshot")
		}
	}
	return net, nil
}

// SaveFile saves a snapshot, choosing the format from the file extension (JSON by default).
func SaveFile(net *Network, path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		data, err = GenerateHCL(net)
	case ".yaml", ".yml":
		data, err = yaml.Marshal(net)
	default:
		data, err = json.MarshalIndent(net, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to encode snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to create parent directory")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), errors.KindInternal, "failed to write snapshot")
}
