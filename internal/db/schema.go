package db

// TaskTable holds one record per generation task, keyed by task id.
const TaskTable = "task_history"

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS task_history SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS task_id ON task_history TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON task_history TYPE string
        ASSERT $value IN ["pending", "processing", "completed", "failed"];
    DEFINE FIELD IF NOT EXISTS progress ON task_history TYPE int
        ASSERT $value >= 0 AND $value <= 100;
    DEFINE FIELD IF NOT EXISTS message ON task_history TYPE string;
    DEFINE FIELD IF NOT EXISTS result ON task_history TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error ON task_history TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS url ON task_history TYPE string;
    DEFINE FIELD IF NOT EXISTS provider ON task_history TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS model ON task_history TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON task_history TYPE datetime;
    DEFINE FIELD IF NOT EXISTS updated_at ON task_history TYPE datetime;
    DEFINE FIELD IF NOT EXISTS completed_at ON task_history TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS task_history_created ON task_history FIELDS created_at;
    DEFINE INDEX IF NOT EXISTS task_history_status ON task_history FIELDS status;
`
