// Package appinfo exposes the identifiers baked into the binary from app.yaml.
package appinfo

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed app.yaml
var manifest []byte

// Build identifies this program in logs, user agents and published events.
type Build struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	GeneratorID string
	Version     string
}

// Info describes the running binary.
var Info = func() Build {
	b, err := parseManifest(manifest)
	if err != nil {
		panic(err)
	}
	return b
}()

// Version returns the semantic version from the manifest.
func Version() string { return Info.Version }

// UserAgent is sent with outbound HTTP requests.
func UserAgent() string { return Info.Slug + "/" + Info.Version }

// EventMetadata is attached to completion events.
func EventMetadata(model, voice string) map[string]string {
	return map[string]string{
		"generator": Info.GeneratorID,
		"model":     model,
		"voice_id":  voice,
	}
}

type manifestFile struct {
	Metadata struct {
		Name        string `yaml:"name"`
		Slug        string `yaml:"slug"`
		Description string `yaml:"description"`
		Version     string `yaml:"version"`
		Generator   string `yaml:"generator"`
	} `yaml:"metadata"`
	Spec struct {
		Entrypoint struct {
			Command string `yaml:"command"`
		} `yaml:"entrypoint"`
	} `yaml:"spec"`
}

func parseManifest(data []byte) (Build, error) {
	var f manifestFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Build{}, fmt.Errorf("appinfo: decode manifest: %w", err)
	}
	m := f.Metadata
	slug := strings.TrimSpace(m.Slug)
	version := strings.TrimSpace(m.Version)
	var missing []string
	if version == "" {
		missing = append(missing, "metadata.version")
	}
	if slug == "" {
		missing = append(missing, "metadata.slug")
	}
	if len(missing) > 0 {
		return Build{}, fmt.Errorf("appinfo: %s missing in manifest", strings.Join(missing, ", "))
	}

	name := fallback(m.Name, slug)
	return Build{
		Name:        name,
		BinaryName:  fallback(strings.TrimPrefix(strings.TrimSpace(f.Spec.Entrypoint.Command), "./"), slug),
		Slug:        slug,
		Description: fallback(m.Description, name),
		GeneratorID: fallback(m.Generator, slug),
		Version:     version,
	}, nil
}

// fallback returns s trimmed, or def when s is blank.
func fallback(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
