package pool

import (
	"sync"

	"github.com/miekg/dns"
)

var msgPool = sync.Pool{
	New: func() interface{} {
		return new(dns.Msg)
	},
}

// GetMsg returns a *dns.Msg from the pool. The msg is not zeroed;
// the caller must Unpack into it or otherwise fully initialize it.
func GetMsg() *dns.Msg {
	return msgPool.Get().(*dns.Msg)
}

// ReleaseMsg returns m to the pool. The caller must not touch m afterwards.
func ReleaseMsg(m *dns.Msg) {
	*m = dns.Msg{}
	msgPool.Put(m)
}
