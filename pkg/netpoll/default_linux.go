//go:build linux

package netpoll

func platformDefault() Backend {
	return NewPollBackend()
}
