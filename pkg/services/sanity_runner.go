package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
	"github.com/ekaya-inc/ekaya-sanity/pkg/workerpool"
)

// BundleLayout names the parts of a data sanity bundle.
type BundleLayout struct {
	DataDir           string // folder of <table>.json files
	EnumsFile         string
	RelationshipsFile string
}

// DefaultBundleLayout returns data/, enums.yaml and relationships.yaml.
func DefaultBundleLayout() BundleLayout {
	return BundleLayout{
		DataDir:           "data",
		EnumsFile:         "enums.yaml",
		RelationshipsFile: "relationships.yaml",
	}
}

// DataSanityInput is everything one data sanity run consumes.
type DataSanityInput struct {
	Title         string
	Tables        Tables
	Enums         models.EnumSpec
	Relationships models.RelationshipSpec
}

// SanityRunner runs the relational sanity engine end to end.
type SanityRunner interface {
	// Run checks already-loaded tables against the enum and relationship declarations.
	Run(ctx context.Context, in DataSanityInput) (*models.DataSanityReport, error)

	// RunBundle loads a bundle directory and runs it.
	RunBundle(ctx context.Context, dir string) (*models.DataSanityReport, error)
}

type sanityRunner struct {
	layout        BundleLayout
	relationships RelationshipValidator
	generic       GenericFKValidator
	logger        *zap.Logger
}

var _ SanityRunner = (*sanityRunner)(nil)

// NewSanityRunner creates a runner sharing one worker pool across both validators.
func NewSanityRunner(layout BundleLayout, workerPool *workerpool.Pool, logger *zap.Logger) SanityRunner {
	if workerPool == nil {
		workerPool = workerpool.New(workerpool.DefaultConfig(), logger)
	}
	return &sanityRunner{
		layout:        layout,
		relationships: NewRelationshipValidator(workerPool, logger),
		generic:       NewGenericFKValidator(workerPool, logger),
		logger:        logger.Named("sanity-runner"),
	}
}

func (r *sanityRunner) Run(ctx context.Context, in DataSanityInput) (*models.DataSanityReport, error) {
	enums := NormalizeEnumSpec(in.Enums)
	parts := DataReportParts{
		Title:       in.Title,
		Tables:      in.Tables,
		TableChecks: make(map[string][]models.CheckResult, len(in.Tables)),
		EnumChecks:  make(map[string][]models.CheckResult, len(in.Tables)),
	}
	for _, name := range in.Tables.Names() {
		t := in.Tables[name]
		parts.TableChecks[name] = BasicTableChecks(t)
		parts.EnumChecks[name] = CheckEnums(t, enums)
	}

	var err error
	if len(in.Relationships.ForeignKeys) > 0 {
		parts.ForeignKeys, err = r.relationships.CheckRelationships(ctx, in.Relationships.ForeignKeys, in.Tables)
		if err != nil {
			return nil, err
		}
	}
	if len(in.Relationships.GenericForeignKeys) > 0 {
		parts.GenericLinks, err = r.generic.CheckGenericForeignKeys(ctx, in.Relationships.GenericForeignKeys, in.Tables)
		if err != nil {
			return nil, err
		}
	}

	report := AssembleDataReport(parts)
	r.logger.Info("Data sanity run complete",
		zap.Int("tables", len(in.Tables)),
		zap.Int("checks", report.Summary.TotalChecks),
		zap.Int("fails", report.Summary.Fails))
	return report, nil
}

func (r *sanityRunner) RunBundle(ctx context.Context, dir string) (*models.DataSanityReport, error) {
	in, err := LoadBundle(dir, r.layout)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, *in)
}

// LoadBundle reads a bundle directory. A directory whose only entry is a
// folder is treated as a wrapper and descended into once.
func LoadBundle(dir string, layout BundleLayout) (*DataSanityInput, error) {
	root, err := bundleRoot(dir)
	if err != nil {
		return nil, err
	}

	dataDir := filepath.Join(root, layout.DataDir)
	if !dirExists(dataDir) {
		return nil, fmt.Errorf("%w: folder %s", apperrors.ErrMissingInput, layout.DataDir)
	}
	enumsPath := filepath.Join(root, layout.EnumsFile)
	if !fileExists(enumsPath) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingInput, layout.EnumsFile)
	}
	relsPath := filepath.Join(root, layout.RelationshipsFile)
	if !fileExists(relsPath) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingInput, layout.RelationshipsFile)
	}

	tables, err := LoadTablesDir(dataDir)
	if err != nil {
		return nil, err
	}

	enumData, err := os.ReadFile(enumsPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", layout.EnumsFile, err)
	}
	enums, err := ParseEnumSpec(enumData)
	if err != nil {
		return nil, err
	}

	relData, err := os.ReadFile(relsPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", layout.RelationshipsFile, err)
	}
	rels, err := ParseRelationshipSpec(relData)
	if err != nil {
		return nil, err
	}

	return &DataSanityInput{
		Title:         "Data sanity check - " + filepath.Base(root),
		Tables:        tables,
		Enums:         enums,
		Relationships: rels,
	}, nil
}

func bundleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: bundle %s: %v", apperrors.ErrMissingInput, dir, err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// LoadTablesDir loads every <table>.json file of dir, keyed by file stem.
func LoadTablesDir(dir string) (Tables, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMissingInput, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	tables := make(Tables, len(names))
	for _, file := range names {
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		name := strings.TrimSuffix(file, ".json")
		t, err := LoadTable(name, data)
		if err != nil {
			return nil, err
		}
		tables[name] = t
	}
	return tables, nil
}

// ParseEnumSpec reads the top-level "enums" mapping (table → column → allowed
// values) and normalizes boolean tokens. An empty document declares no enums.
func ParseEnumSpec(data []byte) (models.EnumSpec, error) {
	var doc struct {
		Enums models.EnumSpec `yaml:"enums"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: enums: %v", apperrors.ErrInvalidSpec, err)
	}
	if doc.Enums == nil {
		return models.EnumSpec{}, nil
	}
	return NormalizeEnumSpec(doc.Enums), nil
}

// ParseRelationshipSpec reads the foreign_keys and generic_foreign_keys lists.
// Relationship types are validated per descriptor when checked, not here.
func ParseRelationshipSpec(data []byte) (models.RelationshipSpec, error) {
	var spec models.RelationshipSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return models.RelationshipSpec{}, fmt.Errorf("%w: relationships: %v", apperrors.ErrInvalidSpec, err)
	}
	return spec, nil
}
