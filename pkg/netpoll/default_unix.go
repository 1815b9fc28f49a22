//go:build unix && !linux

package netpoll

func platformDefault() Backend {
	return NewSelectBackend()
}
