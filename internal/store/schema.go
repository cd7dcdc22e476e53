package store

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  owner_id TEXT NOT NULL DEFAULT '',
  batch_json TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_sessions (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  seed INTEGER NOT NULL,
  shuffle INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  submitted_at INTEGER
);

CREATE TABLE IF NOT EXISTS session_questions (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES quiz_sessions(id) ON DELETE CASCADE,
  display_index INTEGER NOT NULL,
  q_type TEXT NOT NULL,
  stem TEXT NOT NULL,
  options_json TEXT NOT NULL,
  blank_count INTEGER NOT NULL DEFAULT 0,
  citations_json TEXT NOT NULL,
  points REAL NOT NULL,
  private_payload TEXT NOT NULL,
  source_index INTEGER NOT NULL,
  UNIQUE (session_id, display_index)
);

CREATE TABLE IF NOT EXISTS session_answers (
  session_id TEXT NOT NULL REFERENCES quiz_sessions(id) ON DELETE CASCADE,
  session_question_id TEXT NOT NULL REFERENCES session_questions(id) ON DELETE CASCADE,
  payload TEXT NOT NULL,
  is_correct INTEGER NOT NULL DEFAULT 0,
  score REAL NOT NULL DEFAULT 0,
  feedback TEXT NOT NULL DEFAULT '',
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (session_id, session_question_id)
);

CREATE TABLE IF NOT EXISTS context_chunks (
  document_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  text TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  PRIMARY KEY (document_id, position)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  owner_id TEXT NOT NULL DEFAULT '',
  batch_json TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_sessions (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  seed BIGINT NOT NULL,
  shuffle BOOLEAN NOT NULL DEFAULT FALSE,
  status TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  submitted_at BIGINT
);

CREATE TABLE IF NOT EXISTS session_questions (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES quiz_sessions(id) ON DELETE CASCADE,
  display_index INTEGER NOT NULL,
  q_type TEXT NOT NULL,
  stem TEXT NOT NULL,
  options_json TEXT NOT NULL,
  blank_count INTEGER NOT NULL DEFAULT 0,
  citations_json TEXT NOT NULL,
  points DOUBLE PRECISION NOT NULL,
  private_payload TEXT NOT NULL,
  source_index INTEGER NOT NULL,
  UNIQUE (session_id, display_index)
);

CREATE TABLE IF NOT EXISTS session_answers (
  session_id TEXT NOT NULL REFERENCES quiz_sessions(id) ON DELETE CASCADE,
  session_question_id TEXT NOT NULL REFERENCES session_questions(id) ON DELETE CASCADE,
  payload TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL DEFAULT FALSE,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  feedback TEXT NOT NULL DEFAULT '',
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (session_id, session_question_id)
);

CREATE TABLE IF NOT EXISTS context_chunks (
  document_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  text TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  PRIMARY KEY (document_id, position)
);
`
