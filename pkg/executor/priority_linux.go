package executor

// The raw getpriority(2) syscall on Linux returns 20 - nice so that the
// result is never negative.
func niceFromGetpriority(raw int) int {
	return 20 - raw
}
