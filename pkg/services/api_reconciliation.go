package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/adapters/toolinfo"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
	"github.com/ekaya-inc/ekaya-sanity/pkg/pysource"
	"github.com/ekaya-inc/ekaya-sanity/pkg/workerpool"
)

// APIReconcilerConfig names the on-disk layout of an API tree.
type APIReconcilerConfig struct {
	InterfaceDirs []string // interface folder names, searched in order
	IgnoredFiles  []string // file names never treated as APIs
	YAMLFilename  string   // get/set declaration file
}

// DefaultAPIReconcilerConfig returns the conventional layout:
// interface_1..interface_5 and get_set_APIs.yaml.
func DefaultAPIReconcilerConfig() APIReconcilerConfig {
	dirs := make([]string, 5)
	for i := range dirs {
		dirs[i] = fmt.Sprintf("interface_%d", i+1)
	}
	return APIReconcilerConfig{
		InterfaceDirs: dirs,
		IgnoredFiles:  []string{"__init__.py", "policy.md"},
		YAMLFilename:  "get_set_APIs.yaml",
	}
}

// APIReconciler cross-checks get/set declarations, implementation files,
// invoke signatures and runtime-declared parameter schemas.
type APIReconciler interface {
	// Reconcile runs one full reconciliation over baseDir. Only missing
	// inputs and malformed declarations fail the run; per-file problems are
	// reported in the result.
	Reconcile(ctx context.Context, baseDir string) (*models.APISanityReport, error)
}

type apiReconciler struct {
	config     APIReconcilerConfig
	loader     toolinfo.Loader
	workerPool *workerpool.Pool
	logger     *zap.Logger
}

var _ APIReconciler = (*apiReconciler)(nil)

// NewAPIReconciler creates a reconciler introspecting files through loader.
func NewAPIReconciler(config APIReconcilerConfig, loader toolinfo.Loader, workerPool *workerpool.Pool, logger *zap.Logger) APIReconciler {
	if config.YAMLFilename == "" {
		config.YAMLFilename = DefaultAPIReconcilerConfig().YAMLFilename
	}
	if workerPool == nil {
		workerPool = workerpool.New(workerpool.DefaultConfig(), logger)
	}
	return &apiReconciler{
		config:     config,
		loader:     loader,
		workerPool: workerPool,
		logger:     logger.Named("api-reconciler"),
	}
}

// interfaceFiles maps lowercased API name to implementation path for one interface.
type interfaceFiles map[string]string

func (r *apiReconciler) Reconcile(ctx context.Context, baseDir string) (*models.APISanityReport, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base folder: %w", err)
	}
	base, err = FindDeclarationsDir(base, r.config.YAMLFilename)
	if err != nil {
		return nil, err
	}
	yamlPath := filepath.Join(base, r.config.YAMLFilename)
	decls, err := LoadAPIDeclarations(yamlPath)
	if err != nil {
		return nil, err
	}

	files, err := r.scanInterfaces(base)
	if err != nil {
		return nil, err
	}

	toolsInfo, skipped, err := r.collectToolsInfo(ctx, base, files)
	if err != nil {
		return nil, err
	}

	report := &models.APISanityReport{
		ID:                          uuid.New(),
		Title:                       "API sanity: " + filepath.Base(base),
		BaseFolder:                  base,
		Timestamp:                   time.Now().UTC(),
		Interfaces:                  unionSorted(decls.Interfaces(), sortedKeys(files)),
		IgnoredFiles:                sortedCopy(r.config.IgnoredFiles),
		YAMLPath:                    yamlPath,
		Summary:                     summarizeDeclarations(decls),
		Duplicates:                  findDuplicateAPIs(decls),
		InterfaceFileYAMLComparison: compareFilesWithDeclarations(decls, files),
		ToolsInfo:                   toolsInfo,
		Skipped:                     skipped,
	}
	report.APIs, report.ExtraAPIsInToolsInfo = r.buildRecords(decls, files, toolsInfo)

	r.logger.Info("API reconciliation complete",
		zap.String("base_folder", base),
		zap.Int("apis", len(report.APIs)),
		zap.Int("duplicates", len(report.Duplicates)),
		zap.Int("skipped", len(skipped)))
	return report, nil
}

// scanInterfaces lists the implementation files of every configured interface folder present under base.
func (r *apiReconciler) scanInterfaces(base string) (map[string]interfaceFiles, error) {
	ignored := make(map[string]bool, len(r.config.IgnoredFiles))
	for _, name := range r.config.IgnoredFiles {
		ignored[name] = true
	}

	out := make(map[string]interfaceFiles)
	for _, iface := range r.config.InterfaceDirs {
		dir := filepath.Join(base, iface)
		if !dirExists(dir) {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		files := make(interfaceFiles)
		for _, e := range entries {
			if e.IsDir() || ignored[e.Name()] || !strings.EqualFold(filepath.Ext(e.Name()), ".py") {
				continue
			}
			if !e.Type().IsRegular() && !fileExists(filepath.Join(dir, e.Name())) {
				continue
			}
			api := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))))
			if api != "" {
				files[api] = filepath.Join(dir, e.Name())
			}
		}
		out[iface] = files
	}
	return out, nil
}

// collectToolsInfo introspects every implementation file. Files the loader
// rejects are skipped and reported; any other loader failure aborts the run.
func (r *apiReconciler) collectToolsInfo(ctx context.Context, base string, files map[string]interfaceFiles) ([]models.ToolInfo, []models.SkippedFile, error) {
	var items []workerpool.WorkItem[*models.ToolInfo]
	var requests []toolinfo.LoadRequest
	for _, iface := range r.config.InterfaceDirs {
		paths, ok := files[iface]
		if !ok {
			continue
		}
		for _, api := range sortedKeys(paths) {
			req := toolinfo.NewLoadRequest(iface, paths[api])
			requests = append(requests, req)
			items = append(items, workerpool.WorkItem[*models.ToolInfo]{
				ID: iface + "/" + req.APIName,
				Execute: func(ctx context.Context) (*models.ToolInfo, error) {
					return r.loader.Load(ctx, req)
				},
			})
		}
	}

	toolsInfo := []models.ToolInfo{}
	skipped := []models.SkippedFile{}
	for i, res := range workerpool.Process(ctx, r.workerPool, items, nil) {
		req := requests[i]
		if res.Err == nil {
			toolsInfo = append(toolsInfo, *res.Result)
			continue
		}
		var le *toolinfo.LoadError
		if !errors.As(res.Err, &le) {
			return nil, nil, fmt.Errorf("introspect %s: %w", req.Path, res.Err)
		}
		r.logger.Warn("Skipping implementation file",
			zap.String("path", req.Path),
			zap.String("reason", le.Reason),
			zap.Error(le.Err))
		sf := models.SkippedFile{
			Interface: req.Interface,
			APIName:   strings.ToLower(req.APIName),
			Path:      relativeTo(base, req.Path),
			Reason:    le.Reason,
		}
		if le.Err != nil {
			sf.Error = le.Err.Error()
		}
		skipped = append(skipped, sf)
	}
	return toolsInfo, skipped, nil
}

// buildRecords reconciles every declared API and lists introspected APIs
// that no declaration mentions.
func (r *apiReconciler) buildRecords(decls APIDeclarations, files map[string]interfaceFiles, toolsInfo []models.ToolInfo) ([]models.APIRecord, []models.APIKey) {
	tools := make(map[models.APIKey][]models.Param, len(toolsInfo))
	for _, ti := range toolsInfo {
		tools[models.APIKey{Interface: ti.Interface, APIName: strings.ToLower(ti.APIName)}] = ti.Params
	}

	records := []models.APIRecord{}
	seen := make(map[models.APIKey]bool)
	signatures := make(map[string][]models.Param)
	for _, iface := range decls.Interfaces() {
		d := decls[iface]
		for _, group := range []struct {
			classification string
			names          []string
		}{{models.ClassificationGet, d.Get}, {models.ClassificationSet, d.Set}} {
			for _, api := range group.names {
				key := models.APIKey{Interface: iface, APIName: api}
				parsed := []models.Param{}
				if path, ok := files[iface][api]; ok {
					if _, cached := signatures[path]; !cached {
						signatures[path] = r.invokeSignature(path)
					}
					parsed = signatures[path]
				}

				rec := models.APIRecord{
					Interface:      iface,
					APIName:        api,
					Classification: group.classification,
					Params:         parsed,
				}
				if toolParams, ok := tools[key]; ok {
					rec.ParamMatch, rec.ParamMismatch = CompareParams(parsed, toolParams)
				} else {
					rec.ParamMismatch = models.ParamMismatch{
						NotInToolsInfo:     true,
						MissingInTools:     []string{},
						ExtraInTools:       []string{},
						TypeOrOptionalDiff: []models.ParamDiff{},
					}
				}
				records = append(records, rec)
				seen[key] = true
			}
		}
	}

	extra := []models.APIKey{}
	for key := range tools {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Slice(extra, func(i, j int) bool {
		if extra[i].Interface != extra[j].Interface {
			return extra[i].Interface < extra[j].Interface
		}
		return extra[i].APIName < extra[j].APIName
	})
	return records, extra
}

// invokeSignature reads the parameters of the file's invoke entry point.
// An unreadable or unparseable file, or one without invoke, yields no parameters.
func (r *apiReconciler) invokeSignature(path string) []models.Param {
	params := []models.Param{}
	src, err := os.ReadFile(path)
	if err != nil {
		r.logger.Debug("Cannot read implementation file", zap.String("path", path), zap.Error(err))
		return params
	}
	mod, err := pysource.Parse(string(src))
	if err != nil {
		r.logger.Debug("Cannot parse implementation file", zap.String("path", path), zap.Error(err))
		return params
	}
	fn, ok := mod.FindInvoke()
	if !ok {
		return params
	}
	for _, p := range fn.SignatureParams() {
		params = append(params, models.Param{
			Name:     p.Name,
			Type:     NormalizeTypeToken(p.Annotation),
			Optional: p.HasDefault || p.IsUnionWithNone(),
		})
	}
	return params
}

// CompareParams reconciles a parsed signature against a runtime-declared
// schema. Missing/extra are named from the runtime side; types are compared
// after normalization.
func CompareParams(parsed, tools []models.Param) (bool, models.ParamMismatch) {
	index := func(params []models.Param) map[string]models.ParamSide {
		out := make(map[string]models.ParamSide, len(params))
		for _, p := range params {
			out[p.Name] = models.ParamSide{Type: NormalizeTypeToken(p.Type), Optional: p.Optional}
		}
		return out
	}
	pp, tp := index(parsed), index(tools)

	mismatch := models.ParamMismatch{
		MissingInTools:     []string{},
		ExtraInTools:       []string{},
		TypeOrOptionalDiff: []models.ParamDiff{},
	}
	for _, name := range sortedKeys(pp) {
		b, ok := tp[name]
		if !ok {
			mismatch.MissingInTools = append(mismatch.MissingInTools, name)
			continue
		}
		if a := pp[name]; a != b {
			mismatch.TypeOrOptionalDiff = append(mismatch.TypeOrOptionalDiff, models.ParamDiff{Name: name, Parsed: a, Tools: b})
		}
	}
	for _, name := range sortedKeys(tp) {
		if _, ok := pp[name]; !ok {
			mismatch.ExtraInTools = append(mismatch.ExtraInTools, name)
		}
	}

	match := len(mismatch.MissingInTools) == 0 && len(mismatch.ExtraInTools) == 0 && len(mismatch.TypeOrOptionalDiff) == 0
	return match, mismatch
}

// summarizeDeclarations counts declared GET/SET APIs per interface and overall.
func summarizeDeclarations(decls APIDeclarations) models.APISummary {
	summary := models.APISummary{Interfaces: make(map[string]models.ClassificationSummary, len(decls))}
	var get, set int
	for iface, d := range decls {
		summary.Interfaces[iface] = classificationSummary(len(d.Get), len(d.Set))
		get += len(d.Get)
		set += len(d.Set)
	}
	summary.Overall = classificationSummary(get, set)
	return summary
}

func classificationSummary(get, set int) models.ClassificationSummary {
	total := get + set
	return models.ClassificationSummary{
		TotalAPIs: total,
		Get:       models.ClassificationCount{Count: get, Percent: percent(get, total)},
		Set:       models.ClassificationCount{Count: set, Percent: percent(set, total)},
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

// findDuplicateAPIs reports API names declared by more than one interface.
func findDuplicateAPIs(decls APIDeclarations) []models.DuplicateAPI {
	occurrences := make(map[string][]string)
	for _, iface := range decls.Interfaces() {
		for _, api := range decls[iface].All() {
			occurrences[api] = append(occurrences[api], iface)
		}
	}
	dups := []models.DuplicateAPI{}
	for _, api := range sortedKeys(occurrences) {
		if ifaces := occurrences[api]; len(ifaces) > 1 {
			dups = append(dups, models.DuplicateAPI{APIName: api, InterfacesInvolved: ifaces})
		}
	}
	return dups
}

// compareFilesWithDeclarations reports, per interface, files nobody declared
// and declarations without a file.
func compareFilesWithDeclarations(decls APIDeclarations, files map[string]interfaceFiles) map[string]models.InterfaceComparison {
	out := make(map[string]models.InterfaceComparison)
	for _, iface := range unionSorted(decls.Interfaces(), sortedKeys(files)) {
		onDisk := files[iface]
		declared := make(map[string]bool)
		for _, api := range decls[iface].All() {
			declared[api] = true
		}

		cmp := models.InterfaceComparison{
			FilesCount:    len(onDisk),
			YAMLCount:     len(declared),
			MissingInYAML: []string{},
			ExtraInYAML:   []string{},
		}
		for _, api := range sortedKeys(onDisk) {
			if !declared[api] {
				cmp.MissingInYAML = append(cmp.MissingInYAML, api)
			}
		}
		for _, api := range sortedKeys(declared) {
			if _, ok := onDisk[api]; !ok {
				cmp.ExtraInYAML = append(cmp.ExtraInYAML, api)
			}
		}
		out[iface] = cmp
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unionSorted(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		set[s] = true
	}
	return sortedKeys(set)
}

func sortedCopy(s []string) []string {
	out := append([]string{}, s...)
	sort.Strings(out)
	return out
}

func relativeTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}
