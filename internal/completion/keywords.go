package completion

// commonKeywords are SQL keywords every dialect understands.
var commonKeywords = []string{
	"select", "from", "where", "join", "left", "right", "inner", "outer",
	"full", "cross", "on", "and", "or", "not", "in", "exists", "between",
	"like", "is", "null", "as", "case", "when", "then", "else", "end",
	"insert", "into", "values", "update", "set", "delete", "create", "alter",
	"drop", "table", "view", "index", "unique", "primary", "key", "foreign",
	"references", "constraint", "default", "check", "cascade", "group",
	"by", "order", "asc", "desc", "having", "limit", "offset", "distinct",
	"all", "union", "intersect", "except", "with", "recursive", "begin",
	"commit", "rollback", "transaction", "explain", "temporary", "temp",
}

var dialectKeywords = map[string][]string{
	"duckdb": {
		"attach", "detach", "use", "pivot", "unpivot", "qualify", "sample",
		"using", "columns", "describe", "summarize", "pragma", "install",
		"load", "copy", "export", "import", "macro", "returning", "ilike",
	},
	"sqlite": {
		"pragma", "attach", "detach", "autoincrement", "glob", "reindex",
		"indexed", "without", "rowid", "strict", "vacuum", "returning",
	},
	"postgres": {
		"ilike", "similar", "lateral", "materialized", "concurrently",
		"schema", "extension", "sequence", "returning", "copy", "analyze",
		"vacuum", "truncate", "grant", "revoke",
	},
	"mysql": {
		"use", "show", "describe", "databases", "tables", "engine",
		"charset", "collate", "auto_increment", "unsigned", "truncate",
		"grant", "revoke",
	},
}

var commonFunctions = []string{
	"coalesce", "nullif", "cast", "lower", "upper", "trim", "ltrim",
	"rtrim", "length", "substring", "replace", "concat", "abs", "ceil",
	"floor", "round", "now", "current_timestamp", "current_date",
	"row_number", "rank", "dense_rank", "lag", "lead", "first_value",
	"last_value", "ntile",
}

var commonAggregates = []string{
	"count", "sum", "avg", "min", "max", "string_agg", "array_agg",
	"bool_and", "bool_or",
}

// Keywords returns the static keyword items for a dialect.
func Keywords(dialect string) []Item {
	labels := append(append([]string{}, commonKeywords...), dialectKeywords[dialect]...)
	return newItems(labels, "kw", PriorityKeyword)
}

// Functions returns the static function and aggregate items.
func Functions() []Item {
	items := newItems(commonFunctions, "fn", PriorityFunction)
	return append(items, newItems(commonAggregates, "agg", PriorityFunction)...)
}
