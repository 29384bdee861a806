package state

// HasActiveRun checks if a bootstrap is currently running for the project.
// This checks both the existence of a run record and whether the process
// is still alive.
func HasActiveRun(projectDir string) (bool, error) {
	fs := New(projectDir)
	return fs.HasActiveRun()
}

// ClearRunState removes the run record and archived history for a project.
func ClearRunState(projectDir string) error {
	fs := New(projectDir)
	if err := fs.ClearRun(); err != nil {
		return err
	}
	return fs.ClearHistory()
}
