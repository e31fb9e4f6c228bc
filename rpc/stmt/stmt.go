// Package stmt models parsed SQL statements: the statement kind taxonomy the
// SQL surface dispatches on, the parsed-statement record itself, and the
// typed literal values carried by INSERT and SET.
package stmt

import "strings"

// --------------------------------------------------------------------------
// Statement kinds
// --------------------------------------------------------------------------

// Kind identifies one parsed SQL statement type
type Kind int

const (
	KindParseError Kind = iota
	KindDummy
	KindSelect
	KindInsert
	KindReplace
	KindDelete
	KindShowWarnings
	KindShowStatus
	KindShowMeta
	KindSet
	KindBegin
	KindCommit
	KindRollback
	KindCall
	KindDescribe
	KindShowTables
	KindCreateTable
	KindCreateTableLike
	KindDropTable
	KindShowCreateTable
	KindUpdate
	KindCreateFunction
	KindDropFunction
	KindAttachIndex
	KindFlushRTIndex
	KindFlushRAMChunk
	KindShowVariables
	KindTruncateRTIndex
	KindSelectSysvar
	KindShowCollation
	KindShowCharacterSet
	KindOptimizeIndex
	KindShowAgentStatus
	KindShowIndexStatus
	KindReloadPlugins
	KindShowPlugins
	KindShowThreads
	KindFacet
	KindAlterAdd
	KindAlterDrop
	KindShowProfile
	KindAlterReconfigure
	KindShowIndexSettings
	KindFlushIndex
	KindReloadIndexes
	KindReloadIndex
	KindFlushHostnames
	KindFlushLogs
	KindSysfilters
	KindDebug
	KindAlterKlistTarget
	KindAlterIndexSettings
	KindJoinCluster
	KindClusterCreate
	KindClusterDelete
	KindClusterAlterAdd
	KindClusterAlterDrop
	KindClusterAlterUpdate
	KindExplain
	KindImportTable

	KindTotal
)

var kindNames = [KindTotal]string{
	"parse_error", "dummy", "select", "insert", "replace", "delete",
	"show_warnings", "show_status", "show_meta", "set", "begin", "commit",
	"rollback", "call", "describe", "show_tables", "create_table",
	"create_table_like", "drop_table", "show_create_table", "update",
	"create_function", "drop_function", "attach_index", "flush_rtindex",
	"flush_ramchunk", "show_variables", "truncate_rtindex", "select_sysvar",
	"show_collation", "show_character_set", "optimize_index",
	"show_agent_status", "show_index_status", "reload_plugins",
	"show_plugins", "show_threads", "facet", "alter_add", "alter_drop",
	"show_profile", "alter_reconfigure", "show_index_settings",
	"flush_index", "reload_indexes", "reload_index", "flush_hostnames",
	"flush_logs", "sysfilters", "debug", "alter_klist_target",
	"alter_index_settings", "join_cluster", "cluster_create",
	"cluster_delete", "cluster_alter_add", "cluster_alter_drop",
	"cluster_alter_update", "explain", "import_table",
}

func (k Kind) String() string {
	if k < 0 || k >= KindTotal {
		return "unknown"
	}
	return kindNames[k]
}

// NeedsWriteAccess reports whether the statement mutates index data
func (k Kind) NeedsWriteAccess() bool {
	switch k {
	case KindInsert, KindReplace, KindDelete, KindUpdate,
		KindTruncateRTIndex, KindAttachIndex, KindImportTable:
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// Typed literals
// --------------------------------------------------------------------------

// ValueType tags one parsed literal
type ValueType int

const (
	ValueNone ValueType = iota
	ValueInt
	ValueFloat
	ValueString
	ValueList // parenthesized integer list, e.g. an MVA literal
)

// InsertValue is one literal from an INSERT/REPLACE values list or a SET
type InsertValue struct {
	Type ValueType

	IntVal    int64
	FloatVal  float32
	StringVal string
	ListVal   []int64
}

// SetOp selects what a SET statement targets
type SetOp int

const (
	SetLocal SetOp = iota
	SetGlobalUservar
	SetGlobalServervar
	SetIndexUservar
	SetClusterUservar
)

// --------------------------------------------------------------------------
// Parsed statement
// --------------------------------------------------------------------------

// Stmt is one parsed SQL statement with the fields of every variant; the
// Kind says which ones are meaningful
type Stmt struct {
	Kind Kind

	// Index names the target index; Cluster scopes it to a replication
	// cluster when the statement came in cluster:index form
	Index   string
	Cluster string

	// insert / replace
	InsertValues []InsertValue
	InsertSchema []string
	SchemaLen    int
	RowsAffected int

	// set
	SetOp       SetOp
	SetName     string
	SetIntVal   int64
	SetFloatVal float32
	SetStrVal   string
	SetListVal  []int64

	// call
	CallProc      string
	CallValues    []InsertValue
	CallOptNames  []string
	CallOptValues []InsertValue

	// update
	UpdateAttrs  []string
	UpdateValues []InsertValue

	// alter
	AlterAttr string

	// generic scalar parameters (threads columns, debug subcommands, ...)
	IntParam    int
	StringParam string

	// EndRow marks where this statement ends in a multi-statement batch
	EndRow int
}

// NewStmt creates a statement of the given kind
func NewStmt(kind Kind) *Stmt {
	return &Stmt{Kind: kind}
}

// AddSchemaItem appends one column name to the INSERT schema; names are
// case-folded and must be unique within the statement
func (s *Stmt) AddSchemaItem(name string) bool {
	name = strings.ToLower(name)
	for _, existing := range s.InsertSchema {
		if existing == name {
			return false
		}
	}
	s.InsertSchema = append(s.InsertSchema, name)
	s.SchemaLen = len(s.InsertSchema)
	return true
}

// CheckInsertIntegrity closes one VALUES row: the accumulated values must
// line up with the schema width times the rows seen so far
func (s *Stmt) CheckInsertIntegrity() bool {
	if s.SchemaLen == 0 {
		s.SchemaLen = len(s.InsertSchema)
	}
	s.RowsAffected++
	return len(s.InsertValues) == s.RowsAffected*s.SchemaLen
}
