package history

// Schema defines the SQLite schema for the run journal. Each row is one
// write attempt against a device.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    image_path TEXT NOT NULL,
    device_path TEXT NOT NULL,
    os_kind TEXT,
    status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'failed')),
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_device ON runs(device_path);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Status constants
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run represents one write attempt
type Run struct {
	ID           int64
	ImagePath    string
	DevicePath   string
	OSKind       string
	Status       string
	ErrorMessage string
	CreatedAt    string
	UpdatedAt    string
}
