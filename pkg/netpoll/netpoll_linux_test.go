//go:build linux

package netpoll

import "testing"

func Test_pollBackend(t *testing.T) {
	testBackendReadiness(t, NewPollBackend())
}

func Test_platformDefault_linux(t *testing.T) {
	if platformDefault().Name() != "poll" {
		t.Fatal("linux default is not poll")
	}
}
