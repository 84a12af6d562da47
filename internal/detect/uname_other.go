//go:build !unix

package detect

func unameMachine() string {
	return ""
}
