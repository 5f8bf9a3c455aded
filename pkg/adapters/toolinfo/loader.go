// Package toolinfo introspects API implementation files for the parameter
// schema they declare at runtime through their get_info() accessor.
package toolinfo

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

// Loader obtains the runtime-declared parameter schema of one implementation file.
type Loader interface {
	// Load introspects req.Path. Per-file failures are returned as *LoadError.
	Load(ctx context.Context, req LoadRequest) (*models.ToolInfo, error)
}

// LoadRequest identifies one implementation file.
type LoadRequest struct {
	Interface string
	APIName   string // file stem
	Path      string
	ClassName string // CamelCase of APIName
}

// NewLoadRequest builds the request for an implementation file, deriving the
// API name from the file stem and the class name from the API name.
func NewLoadRequest(iface, path string) LoadRequest {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return LoadRequest{
		Interface: iface,
		APIName:   stem,
		Path:      path,
		ClassName: ClassNameFor(stem),
	}
}

// ClassNameFor converts a snake_case file stem to the CamelCase class name
// expected inside the file: get_user_orders → GetUserOrders.
func ClassNameFor(stem string) string {
	var b strings.Builder
	for _, part := range strings.Split(stem, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(strings.ToLower(part[1:]))
	}
	return b.String()
}

// Reasons a file can be skipped during introspection.
const (
	ReasonImportFailed    = "import_failed"
	ReasonClassMissing    = "class_missing"
	ReasonAccessorMissing = "accessor_missing"
	ReasonAccessorFailed  = "accessor_failed"
	ReasonInvalidSchema   = "invalid_schema"
	ReasonTimeout         = "timeout"
)

// LoadError is a per-file introspection failure. The run skips the file and continues.
type LoadError struct {
	Reason string
	Path   string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadError(reason, path string, err error) *LoadError {
	return &LoadError{Reason: reason, Path: path, Err: err}
}
