package testutil

// KillPointEnvVar is the environment variable used to set the kill point target.
// Builds without the crashtest tag define it but ignore it.
const KillPointEnvVar = "RAFTIO_KILL_POINT"

// Kill point names, "Operation:Step". They sit between the steps of
// durability-critical operations so crash tests can stop the process where a
// torn result would be visible.
const (
	// MakeFile kill points
	KPMakeFileAfterCreate = "MakeFile:AfterCreate" // File exists, nothing written
	KPMakeFileAfterWrite  = "MakeFile:AfterWrite"  // Content written, not synced
	KPMakeFileAfterSync   = "MakeFile:AfterSync"   // Content synced, handle open

	// TruncateFile kill points
	KPTruncateAfterResize = "TruncateFile:AfterResize" // Size changed, not synced

	// Writer kill points
	KPWriterAfterSubmit = "Writer:AfterSubmit" // Write issued, completion not reaped
)
