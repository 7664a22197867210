package storage

// Timestamps are stored as Unix nanoseconds in UTC so that due comparisons
// are plain integer comparisons.
const schema = `
-- The 'sets' table stores the named collections items are grouped into.
CREATE TABLE IF NOT EXISTS sets (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sets_owner ON sets(owner_id, created_at);

-- The 'items' table stores one question/answer image pair per row.
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    set_id TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    question_image_url TEXT NOT NULL DEFAULT '',
    answer_image_url TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,

    FOREIGN KEY(set_id) REFERENCES sets(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_items_owner_set ON items(owner_id, set_id);

-- The 'review_states' table holds the scheduling state of each item.
-- 'version' is bumped by every write and guards concurrent updates.
CREATE TABLE IF NOT EXISTS review_states (
    item_id TEXT PRIMARY KEY,
    last_answered_at INTEGER,
    next_due_at INTEGER NOT NULL,
    interval_days INTEGER NOT NULL DEFAULT 0 CHECK (interval_days >= 0),
    ease_factor REAL NOT NULL CHECK (ease_factor > 0),
    lapse_count INTEGER NOT NULL DEFAULT 0 CHECK (lapse_count >= 0),
    version INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(item_id) REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_review_states_due ON review_states(next_due_at);
`
