package engine

import (
	"encoding/json"
	"strconv"

	"github.com/dustin/go-humanize"
)

// RunSummary is produced per run (§3). Counters are incremented as the
// engine executes each phase; a non-empty FatalError means a phase aborted
// the rest of the run.
type RunSummary struct {
	RunID string `json:"run_id"`

	Uploaded           int `json:"uploaded"`
	Downloaded         int `json:"downloaded"`
	Renamed            int `json:"renamed"`
	Conflicts          int `json:"conflicts"`
	RemoteSoftDeleted  int `json:"remote_soft_deleted"`
	LocalSoftDeleted   int `json:"local_soft_deleted"`
	RemoteFoldersCleaned int `json:"remote_folders_cleaned"`
	RetrySuccess       int `json:"retry_success"`
	RetryFailed        int `json:"retry_failed"`
	RetryDiscarded     int `json:"retry_discarded"`
	Errors             int `json:"errors"`

	LocalTotal  int `json:"local_total"`
	RemoteTotal int `json:"remote_total"`
	RemoteRootID string `json:"remote_root_id"`

	UploadedBytes   int64 `json:"uploaded_bytes"`
	DownloadedBytes int64 `json:"downloaded_bytes"`

	FatalError   string `json:"fatal_error,omitempty"`
	ScopeWarning string `json:"scope_warning,omitempty"`
	DryRun       bool   `json:"dry_run,omitempty"`
	DryRunNote   string `json:"dry_run_skips_remote_operations,omitempty"`
}

// HumanLine renders a one-line, human-readable summary for the structured
// log, using humanize for byte counts as the teacher's logs do.
func (s RunSummary) HumanLine() string {
	return "uploaded=" + strconv.Itoa(s.Uploaded) +
		" downloaded=" + strconv.Itoa(s.Downloaded) +
		" renamed=" + strconv.Itoa(s.Renamed) +
		" conflicts=" + strconv.Itoa(s.Conflicts) +
		" errors=" + strconv.Itoa(s.Errors) +
		" uploaded_bytes=" + humanize.Bytes(uint64(max64(s.UploadedBytes, 0))) +
		" downloaded_bytes=" + humanize.Bytes(uint64(max64(s.DownloadedBytes, 0)))
}

// JSON renders the summary for persistence in SyncRun.SummaryJSON; a
// marshal failure here would mean a programmer error (struct tags), not a
// runtime condition worth surfacing, so it degrades to an empty object.
func (s RunSummary) JSON() string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func max64(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}
