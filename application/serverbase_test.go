package application

import (
	"path"
	"testing"

	"github.com/GNS-Foundation/trip-protocol/application/testutil"
)

func TestResolveAndListen(t *testing.T) {
	dir, teardown := testutil.CreateTLSCertForTest(t)
	defer teardown()

	addr := &ServerAddress{
		Address:     "tcp://" + testutil.PublicConnection,
		TLSCertPath: path.Join(dir, "server.pem"),
		TLSKeyPath:  path.Join(dir, "server.key"),
	}
	ln, _ := addr.resolveAndListen()
	defer ln.Close()

	addr = &ServerAddress{
		Address: "unix://" + testutil.LocalConnection,
	}
	ln, _ = addr.resolveAndListen()
	defer ln.Close()
}

func TestResolveAndListenPanicsOnUnknownScheme(t *testing.T) {
	addr := &ServerAddress{
		Address: "http://" + testutil.PublicConnection,
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected resolveAndListen to panic on an unknown scheme")
		}
	}()
	addr.resolveAndListen()
}
