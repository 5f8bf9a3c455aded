package toolinfo

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
	"github.com/ekaya-inc/ekaya-sanity/pkg/pysource"
)

const accessorName = "get_info"

// LiteralLoader reads get_info() without an interpreter: the accessor's
// return value must be a literal expression (names bound to literals resolve).
type LiteralLoader struct {
	logger *zap.Logger
}

var _ Loader = (*LiteralLoader)(nil)

// NewLiteralLoader creates a loader that statically evaluates get_info().
func NewLiteralLoader(logger *zap.Logger) *LiteralLoader {
	return &LiteralLoader{logger: logger.Named("literal-loader")}
}

func (l *LiteralLoader) Load(ctx context.Context, req LoadRequest) (*models.ToolInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, loadError(ReasonImportFailed, req.Path, err)
	}
	mod, err := pysource.Parse(string(src))
	if err != nil {
		return nil, loadError(ReasonImportFailed, req.Path, err)
	}
	if _, ok := mod.Class(req.ClassName); !ok {
		return nil, loadError(ReasonClassMissing, req.Path, fmt.Errorf("class %s not defined", req.ClassName))
	}
	accessor, ok := mod.Method(req.ClassName, accessorName)
	if !ok {
		return nil, loadError(ReasonAccessorMissing, req.Path, fmt.Errorf("%s.%s not defined", req.ClassName, accessorName))
	}

	info, err := mod.ReturnLiteral(accessor)
	if err != nil {
		reason := ReasonAccessorFailed
		if errors.Is(err, pysource.ErrNotLiteral) {
			reason = ReasonInvalidSchema
		}
		return nil, loadError(reason, req.Path, err)
	}

	l.logger.Debug("Evaluated get_info literal",
		zap.String("interface", req.Interface),
		zap.String("api_name", req.APIName))
	return FromInfo(req, info)
}
