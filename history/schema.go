package history

import "tiff2dzi/contracts"

// Schema creates the conversions table. One row per conversion attempt,
// moving from in_progress to succeeded or failed.
const Schema = `
CREATE TABLE IF NOT EXISTS conversions (
    id TEXT PRIMARY KEY,
    input_path TEXT NOT NULL,
    output_dir TEXT NOT NULL,
    base_name TEXT NOT NULL,
    engine TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('in_progress', 'succeeded', 'failed')),
    stage TEXT,
    error_message TEXT,
    width INTEGER,
    height INTEGER,
    levels INTEGER,
    started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_conversions_base_name ON conversions(base_name);
CREATE INDEX IF NOT EXISTS idx_conversions_started_at ON conversions(started_at);
`

type Run struct {
	ID           string
	InputPath    string
	OutputDir    string
	BaseName     string
	Engine       string
	Status       contracts.RunStatus
	Stage        string
	ErrorMessage string
	Width        int
	Height       int
	Levels       int
	StartedAt    string
	FinishedAt   string
}
