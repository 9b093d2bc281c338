// Package config decodes the on-disk YAML configuration document into the
// structures the router and event loop consume. This mirrors
// original_source/src/config.rs, which decodes the same document shape with
// serde_yaml into #[derive(Deserialize)] structs; here gopkg.in/yaml.v3
// plays the same role.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the top-level configuration document: an ordered list of
// virtual-host-bearing server blocks.
type Document struct {
	Servers []ServerConfig `yaml:"servers"`
}

// ServerConfig is one server block: a bind host, one or more ports, the
// virtual hosts it answers to, its error-page overrides, an optional
// request-body ceiling, and its route table.
type ServerConfig struct {
	Host              string         `yaml:"host"`
	Ports             []uint16       `yaml:"ports"`
	ServerNames       []string       `yaml:"server_names,omitempty"`
	ErrorPages        map[int]string `yaml:"error_pages,omitempty"`
	ClientMaxBodySize int            `yaml:"client_max_body_size,omitempty"`
	Routes            []RouteConfig  `yaml:"routes"`
}

// RouteConfig is a single routing rule within a server block.
type RouteConfig struct {
	Path          string            `yaml:"path"`
	Root          string            `yaml:"root,omitempty"`
	Index         string            `yaml:"index,omitempty"`
	Methods       []string          `yaml:"methods,omitempty"`
	Autoindex     bool              `yaml:"autoindex,omitempty"`
	Redirect      string            `yaml:"redirect,omitempty"`
	AllowUploads  bool              `yaml:"allow_uploads,omitempty"`
	CGIExtensions map[string]string `yaml:"cgi_extensions,omitempty"`
}

// HasRoot reports whether the route declares a non-empty filesystem root.
// An explicitly empty root is treated the same as an unset one.
func (r RouteConfig) HasRoot() bool { return r.Root != "" }

// AllowsMethod reports whether method is permitted on this route. A route
// with no declared methods list allows everything.
func (r RouteConfig) AllowsMethod(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Load reads and decodes the YAML document at path.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if len(doc.Servers) == 0 {
		return nil, fmt.Errorf("config %q: no servers declared", path)
	}
	for i := range doc.Servers {
		if len(doc.Servers[i].Ports) == 0 {
			return nil, fmt.Errorf("config %q: server %d declares no ports", path, i)
		}
	}
	return &doc, nil
}
