package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

// APIDeclarations maps interface name to its declared GET/SET APIs.
type APIDeclarations map[string]models.APIDeclaration

// Interfaces returns the declared interface names, sorted.
func (d APIDeclarations) Interfaces() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseAPIDeclarations reads a get/set YAML document:
//
//	interface_1:
//	  get: [get_user, list_items]
//	  set: [update_user]
//
// Names are trimmed and lowercased; blank or non-string entries and
// interfaces whose value is not a mapping are ignored.
func ParseAPIDeclarations(data []byte) (APIDeclarations, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: get/set declarations: %v", apperrors.ErrInvalidSpec, err)
	}
	decls := make(APIDeclarations, len(raw))
	for iface, v := range raw {
		buckets, ok := v.(map[string]any)
		if !ok {
			continue
		}
		decls[iface] = models.APIDeclaration{
			Get: normalizeAPINames(buckets[models.ClassificationGet]),
			Set: normalizeAPINames(buckets[models.ClassificationSet]),
		}
	}
	return decls, nil
}

// LoadAPIDeclarations reads and parses a get/set YAML file.
func LoadAPIDeclarations(path string) (APIDeclarations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMissingInput, err)
	}
	return ParseAPIDeclarations(data)
}

func normalizeAPINames(v any) []string {
	list, _ := v.([]any)
	names := []string{}
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			names = append(names, s)
		}
	}
	return names
}

// FindDeclarationsDir returns root when it holds yamlName, otherwise the
// first directory below root (in lexical walk order) that does.
func FindDeclarationsDir(root, yamlName string) (string, error) {
	st, err := os.Stat(root)
	if err != nil || !st.IsDir() {
		return "", fmt.Errorf("%w: base folder %s does not exist", apperrors.ErrMissingInput, root)
	}
	if fileExists(filepath.Join(root, yamlName)) {
		return root, nil
	}

	var found string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == yamlName {
			found = filepath.Dir(path)
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s for %s: %w", root, yamlName, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s not found under %s", apperrors.ErrMissingInput, yamlName, root)
	}
	return found, nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
