package report

// Report keys shared by collectors and readers of saved reports.
const (
	KeyType              = "type"
	KeyRequired          = "required"
	KeyTranslatable      = "translatable"
	KeyCardinality       = "cardinality"
	KeyTargetType        = "target_type"
	KeyTargetBundles     = "target_bundles"
	KeyHistogram         = "histogram"
	KeyFields            = "fields"
	KeyInstances         = "instances"
	KeyIsNodeEditing     = "is_node_editing"
	KeyIsTaxonomyEditing = "is_taxonomy_editing"
)

// CardinalityUnlimited marks a multi-value field without an upper bound.
const CardinalityUnlimited = -1

// FieldRecord describes one field definition.
type FieldRecord struct {
	Type         string
	Required     bool
	Translatable bool
	Cardinality  int

	// Reference is set for entity reference fields; only then are the
	// target keys emitted.
	Reference     bool
	TargetType    string
	TargetBundles []string

	// Histogram is omitted when nil.
	Histogram Histogram
}

// Node renders the record with its keys in a fixed order.
func (f FieldRecord) Node() *Node {
	n := NewNode()
	n.Set(KeyType, f.Type)
	n.Set(KeyRequired, f.Required)
	n.Set(KeyTranslatable, f.Translatable)
	n.Set(KeyCardinality, f.Cardinality)

	if !f.Reference {
		return n
	}

	bundles := f.TargetBundles
	if bundles == nil {
		bundles = []string{}
	}

	n.Set(KeyTargetType, f.TargetType)
	n.Set(KeyTargetBundles, bundles)

	if f.Histogram != nil {
		n.Set(KeyHistogram, f.Histogram)
	}

	return n
}

// EditingFlags tell whether a role may edit content or taxonomy.
type EditingFlags struct {
	Node     bool
	Taxonomy bool
}

// GroupRecord summarizes a bundle or a role.
type GroupRecord struct {
	Instances int

	// Fields maps field pseudonyms to field nodes; omitted when nil.
	Fields *Node

	// Editing is only set for roles.
	Editing *EditingFlags
}

// Node renders the record.
func (g GroupRecord) Node() *Node {
	n := NewNode()

	if g.Fields != nil {
		n.Set(KeyFields, g.Fields)
	}

	n.Set(KeyInstances, g.Instances)

	if g.Editing != nil {
		n.Set(KeyIsNodeEditing, g.Editing.Node)
		n.Set(KeyIsTaxonomyEditing, g.Editing.Taxonomy)
	}

	return n
}
