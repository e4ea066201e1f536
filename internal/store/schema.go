package store

// schema holds the full logical schema from the persisted database spec:
// projects, threads, nodes, thread_summary_cache, states, tags, references,
// code_chunks, code_nodes, code_edges, symbol_definitions, repo_maps,
// oracle_sessions, oracle_conversations, index_delta_queue, plus the
// code_chunk_fts virtual table that mirrors searchable chunk fields.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS threads (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'archived', 'recovered')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_threads_project ON threads(project_id);

CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
	sequence_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	prev_node_id TEXT,
	embedding BLOB,
	UNIQUE (thread_id, sequence_id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_thread_seq ON nodes(thread_id, sequence_id);

CREATE TABLE IF NOT EXISTS thread_summary_cache (
	thread_id TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	last_node_id TEXT,
	node_count INTEGER NOT NULL DEFAULT 0,
	model TEXT NOT NULL DEFAULT '',
	tokens_used INTEGER NOT NULL DEFAULT 0,
	generated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_thread_summary_cache_thread ON thread_summary_cache(thread_id);

-- states/tags/references round out the Node annotation surface referenced by
-- the persisted schema list; kept generic (key/value over a node) since
-- nothing in the pipeline needs more structure than that.
CREATE TABLE IF NOT EXISTS states (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_states_node ON states(node_id);

CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	tag TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tags_node ON tags(node_id);

CREATE TABLE IF NOT EXISTS "references" (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	target TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_references_node ON "references"(node_id);

CREATE TABLE IF NOT EXISTS code_chunks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_hash TEXT NOT NULL,
	kind TEXT NOT NULL,
	short_name TEXT NOT NULL DEFAULT '',
	qualified_name TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL DEFAULT 0,
	end_line INTEGER NOT NULL DEFAULT 0,
	imports TEXT,
	class_context TEXT,
	signature TEXT,
	decorators TEXT,
	docstring TEXT,
	body TEXT NOT NULL DEFAULT '',
	embedding BLOB,
	token_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_code_chunks_project_file ON code_chunks(project_id, file_path);
CREATE INDEX IF NOT EXISTS idx_code_chunks_project_name ON code_chunks(project_id, short_name);

CREATE VIRTUAL TABLE IF NOT EXISTS code_chunk_fts USING fts5(
	chunk_id UNINDEXED,
	name,
	qualified_name,
	signature,
	docstring,
	body,
	tokenize = 'porter unicode61'
);

CREATE TABLE IF NOT EXISTS code_nodes (
	qualified_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	file TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	signature TEXT,
	line INTEGER,
	docstring TEXT,
	centrality_score REAL,
	PRIMARY KEY (project_id, qualified_id)
);

CREATE INDEX IF NOT EXISTS idx_code_nodes_project_file ON code_nodes(project_id, file);
CREATE INDEX IF NOT EXISTS idx_code_nodes_project_name ON code_nodes(project_id, name);
CREATE INDEX IF NOT EXISTS idx_code_nodes_centrality ON code_nodes(project_id, centrality_score DESC);

CREATE TABLE IF NOT EXISTS code_edges (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	line INTEGER,
	count INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_code_edges_source ON code_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_code_edges_target ON code_edges(target_id);

CREATE TABLE IF NOT EXISTS symbol_definitions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	file TEXT NOT NULL,
	line INTEGER NOT NULL,
	kind TEXT NOT NULL,
	scope TEXT,
	signature TEXT,
	language TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_symbol_definitions_project_name ON symbol_definitions(project_id, name);
CREATE INDEX IF NOT EXISTS idx_symbol_definitions_project_file ON symbol_definitions(project_id, file);

CREATE TABLE IF NOT EXISTS repo_maps (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	scope TEXT,
	text TEXT NOT NULL DEFAULT '',
	token_count INTEGER NOT NULL DEFAULT 0,
	budget_used INTEGER NOT NULL DEFAULT 0,
	files_included INTEGER NOT NULL DEFAULT 0,
	symbols_included INTEGER NOT NULL DEFAULT 0,
	symbols_total INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_repo_maps_project_scope_created ON repo_maps(project_id, scope, created_at DESC);

CREATE TABLE IF NOT EXISTS oracle_sessions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	user TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS oracle_conversations (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	user TEXT NOT NULL,
	token_budget INTEGER NOT NULL DEFAULT 16000,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	compressed_summary TEXT,
	exchanges TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'compressed', 'closed')),
	last_activity DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL,
	compression_count INTEGER NOT NULL DEFAULT 0,
	mentioned_symbols TEXT NOT NULL DEFAULT '[]',
	mentioned_files TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_oracle_conversations_project_user ON oracle_conversations(project_id, user);

CREATE TABLE IF NOT EXISTS index_delta_queue (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	kind TEXT NOT NULL,
	old_hash TEXT,
	new_hash TEXT,
	lines_changed_est INTEGER NOT NULL DEFAULT 0,
	priority INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'queued' CHECK (status IN ('queued', 'running', 'done', 'failed')),
	error TEXT,
	queued_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_index_delta_queue_project_status ON index_delta_queue(project_id, status);
CREATE INDEX IF NOT EXISTS idx_index_delta_queue_priority ON index_delta_queue(project_id, priority DESC, queued_at ASC);

CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
