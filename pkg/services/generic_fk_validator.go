package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
	"github.com/ekaya-inc/ekaya-sanity/pkg/workerpool"
)

// Conventional column names the generic validator inspects when present.
const (
	actionColumn    = "action"
	fieldNameColumn = "field_name"
	createdAtColumn = "created_at"
	userIDColumn    = "user_id"
	usersTable      = "users"
)

// GenericFKValidator validates polymorphic foreign keys, whose parent table is
// chosen per row by a discriminator column.
type GenericFKValidator interface {
	// CheckGenericForeignKeys validates every descriptor and returns the results
	// in descriptor order, all tagged with kind "generic".
	CheckGenericForeignKeys(ctx context.Context, descriptors []models.GenericForeignKeyDescriptor, tables Tables) ([]models.CheckResult, error)
}

type genericFKValidator struct {
	workerPool *workerpool.Pool
	logger     *zap.Logger
}

// NewGenericFKValidator creates a new generic foreign-key validator service.
func NewGenericFKValidator(workerPool *workerpool.Pool, logger *zap.Logger) GenericFKValidator {
	return &genericFKValidator{
		workerPool: workerPool,
		logger:     logger.Named("generic-fk-validator"),
	}
}

var _ GenericFKValidator = (*genericFKValidator)(nil)

func (v *genericFKValidator) CheckGenericForeignKeys(ctx context.Context, descriptors []models.GenericForeignKeyDescriptor, tables Tables) ([]models.CheckResult, error) {
	items := make([]workerpool.WorkItem[[]models.CheckResult], len(descriptors))
	for i, d := range descriptors {
		items[i] = workerpool.WorkItem[[]models.CheckResult]{
			ID: d.Label(),
			Execute: func(ctx context.Context) ([]models.CheckResult, error) {
				return v.checkDescriptor(d, tables), nil
			},
		}
	}

	var results []models.CheckResult
	for _, r := range workerpool.Process(ctx, v.workerPool, items, nil) {
		if r.Err != nil {
			return nil, fmt.Errorf("check generic foreign key %s: %w", r.ID, r.Err)
		}
		results = append(results, r.Result...)
	}
	return results, nil
}

type genericResults struct {
	results []models.CheckResult
}

func (r *genericResults) add(relationship, check string, ok bool, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	r.results = append(r.results, models.CheckResult{
		Check:        check,
		Result:       ok,
		Relationship: relationship,
		Kind:         models.KindGeneric,
		Details:      details,
	})
}

func (v *genericFKValidator) checkDescriptor(d models.GenericForeignKeyDescriptor, tables Tables) []models.CheckResult {
	out := &genericResults{}
	label := d.Label()

	child, ok := tables[d.ChildTable]
	if d.ChildTable == "" || !ok {
		out.add(label, "Child table present", false, map[string]any{"child_table": d.ChildTable})
		return out.results
	}

	columnsOK := true
	for _, c := range []struct{ name, what string }{{d.TypeColumn, "type column"}, {d.IDColumn, "id column"}} {
		if !child.HasColumn(c.name) {
			out.add(label, "Child "+c.what+" present", false, map[string]any{"column": c.name})
			columnsOK = false
		}
	}
	if !columnsOK {
		return out.results
	}

	// Discriminators are compared in their string form so that a numeric type
	// column still matches the string keys of the mapping.
	typeCells := child.Column(d.TypeColumn)
	dataTypes := make(map[string]bool)
	for _, c := range typeCells {
		if !c.IsNull() {
			dataTypes[c.String()] = true
		}
	}

	var unmapped, stale []string
	for t := range dataTypes {
		if _, ok := d.Mapping[t]; !ok {
			unmapped = append(unmapped, t)
		}
	}
	for t := range d.Mapping {
		if !dataTypes[t] {
			stale = append(stale, t)
		}
	}
	sort.Strings(unmapped)
	sort.Strings(stale)

	out.add(label, "All type values are mapped", len(unmapped) == 0, map[string]any{
		"unmapped_types": headStrings(unmapped, typeSampleSize),
		"count":          len(unmapped),
	})
	if len(stale) > 0 {
		out.add(label, "Stale mapping entries (info)", true, map[string]any{
			"stale_types": headStrings(stale, typeSampleSize),
			"count":       len(stale),
		})
	}

	types := make([]string, 0, len(dataTypes))
	for t := range dataTypes {
		if _, ok := d.Mapping[t]; ok {
			types = append(types, t)
		}
	}
	sort.Strings(types)

	for _, t := range types {
		rows := make([]int, 0)
		for i, c := range typeCells {
			if !c.IsNull() && c.String() == t {
				rows = append(rows, i)
			}
		}
		v.checkDiscriminator(out, d, t, d.Mapping[t], rows, child, tables)
	}

	checkUserLinks(out, child, tables)
	return out.results
}

// checkDiscriminator validates the rows carrying one mapped discriminator value.
func (v *genericFKValidator) checkDiscriminator(out *genericResults, d models.GenericForeignKeyDescriptor, t string, target *models.GenericTarget, rows []int, child *Table, tables Tables) {
	var parentTable, parentColumn string
	if target != nil {
		parentTable, parentColumn = target.ParentTable, target.ParentColumn
	}
	relationship := fmt.Sprintf("%s.%s (type='%s') → %s.%s", d.ChildTable, d.IDColumn, t, parentTable, parentColumn)

	parent, ok := tables[parentTable]
	if target == nil || !ok || !parent.HasColumn(parentColumn) {
		out.add(relationship, "Parent table/column present", false, map[string]any{
			"parent_table":  parentTable,
			"parent_column": parentColumn,
		})
		return
	}

	parentVals := parent.Column(parentColumn)
	parentSet := newValueSet(nonNull(parentVals))
	idCells := castLike(pick(child.Column(d.IDColumn), rows), parentVals)
	ids := nonNull(idCells)

	orphans := missingFrom(ids, parentSet)
	out.add(relationship, "All children have parents (polymorphic)", len(orphans) == 0, map[string]any{
		"type":         t,
		"child_column": d.IDColumn,
		"missing_ids":  sample(orphans, defaultSampleSize),
		"count":        len(orphans),
	})

	counts := countValues(ids)
	avg, maxChildren := 0.0, 0
	if len(counts) > 0 {
		for _, c := range counts {
			if c.Count > maxChildren {
				maxChildren = c.Count
			}
		}
		avg = round2(float64(len(ids)) / float64(len(counts)))
	}
	out.add(relationship, "Average children per parent (info)", true, map[string]any{
		"type":                           t,
		"avg":                            avg,
		"max_children_for_single_parent": maxChildren,
	})

	if len(target.AllowedActions) > 0 && child.HasColumn(actionColumn) {
		allowed := make(map[string]bool, len(target.AllowedActions))
		for _, a := range target.AllowedActions {
			allowed[a] = true
		}
		invalid, count := invalidStrings(pick(child.Column(actionColumn), rows), func(s string) bool { return allowed[s] })
		allowedSorted := append([]string(nil), target.AllowedActions...)
		sort.Strings(allowedSorted)
		out.add(relationship, "Action allowed for type", count == 0, map[string]any{
			"type":            t,
			"invalid_actions": headStrings(invalid, defaultSampleSize),
			"count":           count,
			"allowed_actions": allowedSorted,
		})
	}

	if child.HasColumn(fieldNameColumn) {
		cells := nonNull(pick(child.Column(fieldNameColumn), rows))
		if len(cells) > 0 {
			invalid, count := invalidStrings(cells, parent.HasColumn)
			columns := append([]string(nil), parent.Columns()...)
			sort.Strings(columns)
			out.add(relationship, "field_name valid for parent type", count == 0, map[string]any{
				"type":                        t,
				"invalid_field_names":         headStrings(invalid, defaultSampleSize),
				"count":                       count,
				"parent_table_columns_sample": headStrings(columns, typeSampleSize),
			})
		}
	}

	if child.HasColumn(createdAtColumn) && parent.HasColumn(createdAtColumn) {
		violations, unparseable := timestampOrderViolations(
			idCells, pick(child.Column(createdAtColumn), rows),
			parentVals, parent.Column(createdAtColumn),
		)
		out.add(relationship, "created_at sequence valid (child ≥ parent)", violations == 0, map[string]any{
			"type":        t,
			"violations":  violations,
			"unparseable": unparseable,
		})
	}
}

// checkUserLinks verifies every child user_id resolves to a row of the users table.
func checkUserLinks(out *genericResults, child *Table, tables Tables) {
	if !child.HasColumn(userIDColumn) {
		return
	}
	relationship := child.Name + ".user_id → users.user_id"
	users, ok := tables[usersTable]
	if !ok || !users.HasColumn(userIDColumn) {
		out.add(relationship, "Users table present", false, map[string]any{
			"reason": "users table or user_id column not found",
		})
		return
	}

	userVals := users.Column(userIDColumn)
	childUsers := nonNull(castLike(child.Column(userIDColumn), userVals))
	missing := missingFrom(childUsers, newValueSet(nonNull(userVals)))
	out.add(relationship, "All children have valid users", len(missing) == 0, map[string]any{
		"missing_user_ids": sample(missing, defaultSampleSize),
		"count":            len(missing),
	})
}

// timestampOrderViolations joins child rows to their parent by id and counts
// children created before their parent. Rows without a parent are ignored and
// rows with an unparseable timestamp on either side are counted as unparseable.
func timestampOrderViolations(childIDs, childTS, parentIDs, parentTS []jsonutil.Value) (violations, unparseable int) {
	parentCreated := make(map[string]jsonutil.Value, len(parentIDs))
	for i, id := range parentIDs {
		if id.IsNull() {
			continue
		}
		if _, seen := parentCreated[id.Key()]; !seen {
			parentCreated[id.Key()] = parentTS[i]
		}
	}

	for i, id := range childIDs {
		if id.IsNull() {
			continue
		}
		pts, ok := parentCreated[id.Key()]
		if !ok {
			continue
		}
		c, cerr := ParseTimestamp(childTS[i])
		p, perr := ParseTimestamp(pts)
		if cerr != nil || perr != nil {
			unparseable++
			continue
		}
		if c.Before(p) {
			violations++
		}
	}
	return violations, unparseable
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// ParseTimestamp parses a timestamp cell: ISO-8601 style strings (zone-less
// values are taken as UTC) or a number of Unix seconds.
func ParseTimestamp(v jsonutil.Value) (time.Time, error) {
	switch v.Kind() {
	case jsonutil.KindNumber:
		f, _ := v.AsNumber()
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), nil
	case jsonutil.KindString:
		s, _ := v.AsString()
		s = strings.TrimSpace(s)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("timestamp is %s", v.Kind())
	}
}

// pick returns vals at the given row positions.
func pick(vals []jsonutil.Value, rows []int) []jsonutil.Value {
	out := make([]jsonutil.Value, len(rows))
	for i, r := range rows {
		out[i] = vals[r]
	}
	return out
}

// invalidStrings stringifies non-null cells and returns the distinct values
// rejected by valid (sorted) and the number of rejected cells.
func invalidStrings(cells []jsonutil.Value, valid func(string) bool) ([]string, int) {
	seen := make(map[string]bool)
	var distinct []string
	count := 0
	for _, c := range cells {
		if c.IsNull() {
			continue
		}
		s := c.String()
		if valid(s) {
			continue
		}
		count++
		if !seen[s] {
			seen[s] = true
			distinct = append(distinct, s)
		}
	}
	sort.Strings(distinct)
	return distinct, count
}

func headStrings(s []string, n int) []string {
	if s == nil {
		return []string{}
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
