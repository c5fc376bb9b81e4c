package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// varRef matches ${VAR} and ${VAR:-default}.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// secretKeys are key fragments whose environment-sourced values are
// registered for log redaction.
var secretKeys = []string{"token", "secret", "password", "pass", "key"}

// Load reads the configuration at path. Variable references are expanded
// in scalar values after parsing, so a variable's value can never change
// the shape of the document. A relative data_dir is resolved against the
// directory of path; an empty one gets DefaultDataDir.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	var cfg Config
	if doc.Kind != 0 {
		x := expander{lookup: os.LookupEnv}
		x.walk(&doc, "")
		if err := errors.Join(x.errs...); err != nil {
			return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
		}
		if err := doc.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		cfg.Secrets = x.secrets
	}

	switch {
	case cfg.DataDir == "":
		cfg.DataDir = DefaultDataDir()
	case !filepath.IsAbs(cfg.DataDir):
		cfg.DataDir = filepath.Join(filepath.Dir(path), cfg.DataDir)
	}
	return &cfg, nil
}

// expander rewrites variable references in a parsed document.
type expander struct {
	lookup  func(string) (string, bool)
	errs    []error
	secrets []string
}

func (x *expander) walk(n *yaml.Node, path string) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			x.walk(c, path)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			x.walk(n.Content[i+1], joinPath(path, n.Content[i].Value))
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			x.walk(c, path+"["+strconv.Itoa(i)+"]")
		}
	case yaml.ScalarNode:
		x.scalar(n, path)
	}
}

func (x *expander) scalar(n *yaml.Node, path string) {
	if !strings.Contains(n.Value, "${") {
		return
	}
	secret := isSecretKey(path)
	n.Value = varRef.ReplaceAllStringFunc(n.Value, func(ref string) string {
		m := varRef.FindStringSubmatch(ref)
		name, def := m[1], m[2]
		if v, ok := x.lookup(name); ok {
			if secret && v != "" {
				x.secrets = append(x.secrets, v)
			}
			return v
		}
		if strings.Contains(ref, ":-") {
			return def
		}
		x.errs = append(x.errs, fmt.Errorf("%s (line %d): unresolved variable %s", path, n.Line, name))
		return ref
	})
	// Let a plain scalar resolve to int, bool or duration again.
	if n.Style&yaml.TaggedStyle == 0 {
		n.Tag = ""
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// isSecretKey reports whether the last key of path names a credential.
func isSecretKey(path string) bool {
	last := strings.ToLower(path[strings.LastIndexByte(path, '.')+1:])
	for _, k := range secretKeys {
		if strings.Contains(last, k) {
			return true
		}
	}
	return false
}
