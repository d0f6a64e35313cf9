package deps

import (
	"fmt"
	"os/exec"
)

// Status reports whether the cache tool can be run.
type Status struct {
	Name      string
	Command   string
	Purpose   string
	Optional  bool
	Available bool
	Detail    string
}

// CheckCacheTool resolves the configured cache tool and reports whether it
// is runnable. Optional is set when the configured index does not need it.
func CheckCacheTool(configured string, optional bool) Status {
	command := ResolveCacheTool(configured)
	status := Status{
		Name:     DefaultCacheTool,
		Command:  command,
		Purpose:  "Reports cached revisions (scan-cache)",
		Optional: optional,
	}
	if _, err := exec.LookPath(command); err != nil {
		status.Detail = fmt.Sprintf("%s not found on PATH or in user bin directories", command)
		return status
	}
	status.Available = true
	return status
}
