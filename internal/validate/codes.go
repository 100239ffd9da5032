package validate

// ExitCodes maps type checker exit codes to their descriptions
var ExitCodes = map[int]string{
	0: "Success",
	1: "Type errors, output skipped",
	2: "Type errors, output generated",
	3: "Invalid project, output skipped",
	4: "Project reference cycle, output skipped",
}

// IsSuccess returns true if the exit code indicates a clean type check
func IsSuccess(code int) bool {
	return code == 0
}

// GetErrorMessage returns the error message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ExitCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
