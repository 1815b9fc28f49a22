//go:build !unix

package netpoll

func platformDefault() Backend {
	return deadlineBackend{}
}
