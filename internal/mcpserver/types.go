package mcpserver

// SearchInput defines inputs for the caseindex_search MCP tool.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"legal question or keywords"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"first-stage candidates to rerank (default from config)"`
	TopN     int    `json:"top_n,omitempty" jsonschema:"number of passages to return (default from config)"`
	FullText bool   `json:"full_text,omitempty" jsonschema:"return whole passages instead of snippets"`
}

// SearchResultItem is one reranked passage.
type SearchResultItem struct {
	Rank        int     `json:"rank"`
	ChunkID     int     `json:"chunk_id"`
	File        string  `json:"file"`
	BaseScore   float64 `json:"base_score"`
	RerankScore float64 `json:"rerank_score"`
	Text        string  `json:"text"`
}

// SearchOutput is the output for caseindex_search.
type SearchOutput struct {
	QueryID    string             `json:"query_id"`
	Query      string             `json:"query"`
	Candidates int                `json:"candidates"`
	Count      int                `json:"count"`
	Results    []SearchResultItem `json:"results"`
}

// StatusInput defines inputs for caseindex_status.
type StatusInput struct{}

// IndexStats holds counts for the served generation.
type IndexStats struct {
	Chunks        int    `json:"chunks"`
	Documents     int    `json:"documents"`
	Sources       int    `json:"sources"`
	Dimensions    int    `json:"dimensions"`
	Model         string `json:"model"`
	DatabaseSize  string `json:"database_size"`
	DatabaseBytes int64  `json:"database_bytes"`
}

// StatusOutput reports whether the corpus is indexed and how fresh it is.
type StatusOutput struct {
	Indexed     bool        `json:"indexed"`
	IndexDir    string      `json:"index_dir"`
	Generation  string      `json:"generation,omitempty"`
	Stamp       string      `json:"stamp,omitempty"`
	BuiltAt     string      `json:"built_at,omitempty"`
	IndexAge    string      `json:"index_age,omitempty"`
	Stats       *IndexStats `json:"stats,omitempty"`
	IsStale     bool        `json:"is_stale"`
	StaleReason string      `json:"stale_reason,omitempty"`
}
