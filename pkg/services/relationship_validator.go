package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
	"github.com/ekaya-inc/ekaya-sanity/pkg/workerpool"
)

// RelationshipValidator validates declared foreign-key relationships against loaded tables.
// Each descriptor is evaluated independently; a broken descriptor yields failing
// results but never stops the others.
type RelationshipValidator interface {
	// CheckRelationships validates every descriptor and returns the results in
	// descriptor order. It only fails when ctx is cancelled.
	CheckRelationships(ctx context.Context, descriptors []models.RelationshipDescriptor, tables Tables) ([]models.CheckResult, error)
}

type relationshipValidator struct {
	workerPool *workerpool.Pool
	logger     *zap.Logger
}

// NewRelationshipValidator creates a new relationship validator service.
func NewRelationshipValidator(workerPool *workerpool.Pool, logger *zap.Logger) RelationshipValidator {
	return &relationshipValidator{
		workerPool: workerPool,
		logger:     logger.Named("relationship-validator"),
	}
}

var _ RelationshipValidator = (*relationshipValidator)(nil)

func (v *relationshipValidator) CheckRelationships(ctx context.Context, descriptors []models.RelationshipDescriptor, tables Tables) ([]models.CheckResult, error) {
	items := make([]workerpool.WorkItem[[]models.CheckResult], len(descriptors))
	for i, d := range descriptors {
		items[i] = workerpool.WorkItem[[]models.CheckResult]{
			ID: d.Label(),
			Execute: func(ctx context.Context) ([]models.CheckResult, error) {
				return v.checkRelationship(d, tables), nil
			},
		}
	}

	var results []models.CheckResult
	for _, r := range workerpool.Process(ctx, v.workerPool, items, nil) {
		if r.Err != nil {
			return nil, fmt.Errorf("check relationship %s: %w", r.ID, r.Err)
		}
		results = append(results, r.Result...)
	}
	return results, nil
}

// fkResults accumulates results for one descriptor.
type fkResults struct {
	label   string
	results []models.CheckResult
}

func (r *fkResults) add(label, check string, ok bool, details map[string]any) {
	if label == "" {
		label = r.label
	}
	r.results = append(r.results, models.CheckResult{
		Check:        check,
		Result:       ok,
		Relationship: label,
		Kind:         models.KindForeignKey,
		Details:      details,
	})
}

func (v *relationshipValidator) checkRelationship(d models.RelationshipDescriptor, tables Tables) []models.CheckResult {
	out := &fkResults{label: d.Label()}

	rtype, typeErr := NormalizeRelationshipType(d.Type)
	if typeErr != nil {
		v.logger.Warn("Unsupported relationship type",
			zap.String("relationship", out.label),
			zap.String("type", d.Type))
	}

	if missing := missingTables(tables, d.ParentTable, d.ChildTable); len(missing) > 0 {
		details := map[string]any{"reason": "Missing table(s)", "missing_tables": missing}
		if hints := tableNameHints(tables, missing); len(hints) > 0 {
			details["did_you_mean"] = hints
		}
		out.add("", "Tables present", false, details)
		return out.results
	}

	parent, child := tables[d.ParentTable], tables[d.ChildTable]
	out.add("", "Parent column exists", parent.HasColumn(d.ParentColumn),
		map[string]any{"table": d.ParentTable, "column": d.ParentColumn})
	out.add("", "Child column exists", child.HasColumn(d.ChildColumn),
		map[string]any{"table": d.ChildTable, "column": d.ChildColumn})
	if !parent.HasColumn(d.ParentColumn) || !child.HasColumn(d.ChildColumn) {
		return out.results
	}

	parentVals := parent.Column(d.ParentColumn)
	parentSet := newValueSet(nonNull(parentVals))
	childCast := castLike(child.Column(d.ChildColumn), parentVals)
	childVals := nonNull(childCast)

	out.add("", "Child column nulls", true, map[string]any{
		"column":         d.ChildColumn,
		"null_count":     len(childCast) - len(childVals),
		"non_null_count": len(childVals),
	})

	orphans := missingFrom(childVals, parentSet)
	out.add("", "All children have parents", len(orphans) == 0, map[string]any{
		"column":             d.ChildColumn,
		"missing_ids_sample": sample(orphans, defaultSampleSize),
		"count":              len(orphans),
	})

	dupParents := duplicated(nonNull(parentVals))
	out.add("", "Parent column unique", len(dupParents) == 0, map[string]any{
		"column":                      d.ParentColumn,
		"duplicate_parent_ids_sample": sample(dupParents, defaultSampleSize),
		"count":                       len(dupParents),
	})

	if typeErr != nil {
		out.add("", "Unknown relationship type", false, map[string]any{"type": d.Type})
		return out.results
	}

	switch rtype {
	case models.Cardinality1To1:
		checkOneToOne(out, d, parentSet, childVals)
	case models.Cardinality1ToN:
		checkOneToMany(out, d, parentSet, childVals)
	case models.CardinalityMToN:
		checkManyToMany(out, d, parent, child)
	}
	return out.results
}

func checkOneToOne(out *fkResults, d models.RelationshipDescriptor, parentSet valueSet, childVals []jsonutil.Value) {
	dupChildren := duplicated(childVals)
	out.add("", "Child column unique (1:1)", len(dupChildren) == 0, map[string]any{
		"column":                     d.ChildColumn,
		"duplicate_child_ids_sample": sample(dupChildren, defaultSampleSize),
		"count":                      len(dupChildren),
	})

	if !d.Mandatory {
		return
	}
	unreferenced := missingFrom(parentSet.sorted(), newValueSet(childVals))
	// Child values referenced more than once, plus child values with no parent.
	mismatched := newValueSet(dupChildren)
	for _, v := range missingFrom(childVals, parentSet) {
		mismatched[v.Key()] = v
	}
	overReferenced := mismatched.sorted()
	out.add("", "Mandatory 1:1 coverage (each parent exactly once)",
		len(unreferenced) == 0 && len(overReferenced) == 0,
		map[string]any{
			"missing_parent_ids_sample":           sample(unreferenced, defaultSampleSize),
			"over_or_under_referenced_ids_sample": sample(overReferenced, defaultSampleSize),
			"missing_count":                       len(unreferenced),
			"over_or_under_count":                 len(overReferenced),
		})
}

func checkOneToMany(out *fkResults, d models.RelationshipDescriptor, parentSet valueSet, childVals []jsonutil.Value) {
	counts := countValues(childVals)
	out.add("", "Children per parent (distribution)", true, distribution(counts))

	if d.MinChildren != nil || d.MaxChildren != nil {
		// Parents nobody references have zero children and count against a minimum.
		perParent := append([]valueCount(nil), counts...)
		referenced := newValueSet(childVals)
		for _, p := range parentSet.sorted() {
			if !referenced.has(p) {
				perParent = append(perParent, valueCount{Value: p, Count: 0})
			}
		}

		if d.MinChildren != nil {
			below := countsWhere(perParent, func(n int) bool { return n < *d.MinChildren })
			out.add("", fmt.Sprintf("Min children per parent ≥ %d", *d.MinChildren), len(below) == 0, map[string]any{
				"violating_parent_ids_sample": sample(below, defaultSampleSize),
				"violations":                  len(below),
			})
		}
		if d.MaxChildren != nil {
			above := countsWhere(counts, func(n int) bool { return n > *d.MaxChildren })
			out.add("", fmt.Sprintf("Max children per parent ≤ %d", *d.MaxChildren), len(above) == 0, map[string]any{
				"violating_parent_ids_sample": sample(above, defaultSampleSize),
				"violations":                  len(above),
			})
		}
	}

	if d.Mandatory {
		unreferenced := missingFrom(parentSet.sorted(), newValueSet(childVals))
		out.add("", "Mandatory 1:N coverage (each parent at least once)", len(unreferenced) == 0, map[string]any{
			"missing_parent_ids_sample": sample(unreferenced, defaultSampleSize),
			"missing_count":             len(unreferenced),
		})
	}
}

func checkManyToMany(out *fkResults, d models.RelationshipDescriptor, parent, link *Table) {
	lp, lc := d.LinkParentColumn, d.LinkChildColumn
	linkLabel := fmt.Sprintf("%s (%s,%s)", d.ChildTable, lp, lc)

	present := link.HasColumn(lp) && link.HasColumn(lc)
	out.add(linkLabel, "Link columns present (M:N)", present, map[string]any{
		"table":           d.ChildTable,
		"parent_link_col": lp,
		"child_link_col":  lc,
	})
	if !present {
		return
	}

	parentCol, childCol := link.Column(lp), link.Column(lc)
	pairs := make([]jsonutil.Value, len(parentCol))
	for i := range parentCol {
		pairs[i] = jsonutil.ArrayValue(parentCol[i], childCol[i])
	}
	dupPairs := duplicated(pairs)
	out.add(linkLabel, "Composite uniqueness (parent, child)", len(dupPairs) == 0, map[string]any{
		"duplicate_pairs_sample": sample(dupPairs, defaultSampleSize),
		"count":                  len(dupPairs),
	})

	parentVals := parent.Column(d.ParentColumn)
	linkParents := nonNull(castLike(parentCol, parentVals))
	orphans := missingFrom(linkParents, newValueSet(nonNull(parentVals)))
	out.add(d.ParentTable+"."+d.ParentColumn+" → "+d.ChildTable+"."+lp, "All link parent IDs have parents", len(orphans) == 0,
		map[string]any{
			"missing_ids_sample": sample(orphans, defaultSampleSize),
			"count":              len(orphans),
		})
}

// distribution summarizes children-per-parent counts: avg, min, max and the
// five most referenced parents.
func distribution(counts []valueCount) map[string]any {
	details := map[string]any{"avg": 0.0, "min": 0, "max": 0, "top5_parents_by_children": []map[string]any{}}
	if len(counts) == 0 {
		return details
	}

	sorted := append([]valueCount(nil), counts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return jsonutil.Compare(sorted[i].Value, sorted[j].Value) < 0
	})

	total := 0
	for _, c := range counts {
		total += c.Count
	}
	top := make([]map[string]any, 0, 5)
	for i := 0; i < len(sorted) && i < 5; i++ {
		top = append(top, map[string]any{"parent": sorted[i].Value.Interface(), "children": sorted[i].Count})
	}

	details["avg"] = round2(float64(total) / float64(len(counts)))
	details["min"] = sorted[len(sorted)-1].Count
	details["max"] = sorted[0].Count
	details["top5_parents_by_children"] = top
	return details
}

// missingFrom returns the distinct values of vals absent from set, sorted.
func missingFrom(vals []jsonutil.Value, set valueSet) []jsonutil.Value {
	missing := make(valueSet)
	for _, v := range vals {
		if !set.has(v) {
			missing[v.Key()] = v
		}
	}
	return missing.sorted()
}

// countsWhere returns the values whose count satisfies pred, sorted.
func countsWhere(counts []valueCount, pred func(int) bool) []jsonutil.Value {
	var out []jsonutil.Value
	for _, c := range counts {
		if pred(c.Count) {
			out = append(out, c.Value)
		}
	}
	jsonutil.SortValues(out)
	return out
}

func missingTables(tables Tables, names ...string) []string {
	var missing []string
	for _, name := range names {
		if !tables.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// tableNameHints suggests loaded tables whose name is the singular or plural
// form of a missing one (orders vs order).
func tableNameHints(tables Tables, missing []string) map[string]string {
	hints := make(map[string]string)
	for _, name := range missing {
		if name == "" {
			continue
		}
		for _, candidate := range []string{inflection.Plural(name), inflection.Singular(name)} {
			if candidate != name && tables.Has(candidate) {
				hints[name] = candidate
				break
			}
		}
	}
	return hints
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
