//go:build !linux

package executor

func niceFromGetpriority(raw int) int {
	return raw
}
