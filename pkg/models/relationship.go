package models

// RelationshipDescriptor declares a foreign-key relationship between two tables.
// For M:N relationships ChildTable is the junction table and the Link* columns
// name its two foreign columns.
type RelationshipDescriptor struct {
	ParentTable      string `yaml:"parent_table" json:"parent_table"`
	ParentColumn     string `yaml:"parent_column" json:"parent_column"`
	ChildTable       string `yaml:"child_table" json:"child_table"`
	ChildColumn      string `yaml:"child_column" json:"child_column"`
	Type             string `yaml:"type" json:"type"`
	Mandatory        bool   `yaml:"mandatory" json:"mandatory"`
	MinChildren      *int   `yaml:"min_children,omitempty" json:"min_children,omitempty"`
	MaxChildren      *int   `yaml:"max_children,omitempty" json:"max_children,omitempty"`
	LinkParentColumn string `yaml:"link_parent_column,omitempty" json:"link_parent_column,omitempty"`
	LinkChildColumn  string `yaml:"link_child_column,omitempty" json:"link_child_column,omitempty"`
}

// Label is the human-readable relationship name used in check results.
func (d RelationshipDescriptor) Label() string {
	return d.ParentTable + "." + d.ParentColumn + " → " + d.ChildTable + "." + d.ChildColumn
}

// GenericTarget is one discriminator value's resolved parent.
type GenericTarget struct {
	ParentTable    string   `yaml:"parent_table" json:"parent_table"`
	ParentColumn   string   `yaml:"parent_column" json:"parent_column"`
	AllowedActions []string `yaml:"allowed_actions,omitempty" json:"allowed_actions,omitempty"`
}

// GenericForeignKeyDescriptor declares a polymorphic foreign key: the parent table
// of IDColumn is chosen per row by the value of TypeColumn.
type GenericForeignKeyDescriptor struct {
	ChildTable string                    `yaml:"child_table" json:"child_table"`
	TypeColumn string                    `yaml:"type_column" json:"type_column"`
	IDColumn   string                    `yaml:"id_column" json:"id_column"`
	Mapping    map[string]*GenericTarget `yaml:"mapping" json:"mapping"`
}

// Label is the human-readable descriptor name used in check results.
func (d GenericForeignKeyDescriptor) Label() string {
	return d.ChildTable + "." + d.IDColumn + " (type via " + d.TypeColumn + ")"
}

// RelationshipSpec is the declarative relationships document.
type RelationshipSpec struct {
	ForeignKeys        []RelationshipDescriptor      `yaml:"foreign_keys" json:"foreign_keys"`
	GenericForeignKeys []GenericForeignKeyDescriptor `yaml:"generic_foreign_keys" json:"generic_foreign_keys"`
}

// EnumSpec maps table → column → allowed values. Boolean tokens in the
// declarative source are normalized to "on"/"off" before use.
type EnumSpec map[string]map[string][]any
