// Package testutil provides TLS certificate generation and raw byte
// dialers for exercising application.ServerBase in tests, adapted from
// the teacher's keyserver/testutil package.
package testutil

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"io/ioutil"
	"math/big"
	"net"
	"os"
	"path"
	"testing"
	"time"
)

const (
	// TestDirPrefix names the temp directory created for generated TLS
	// material.
	TestDirPrefix = "tripverifiertest"
	// PublicConnection is the loopback TCP address used by tests.
	PublicConnection = "127.0.0.1:34443"
	// LocalConnection is the Unix socket path used by tests.
	LocalConnection = "/tmp/tripverifiertest.sock"
)

// CreateTLSCert writes a self-signed server.pem/server.key pair for
// 127.0.0.1/localhost into dir.
func CreateTLSCert(dir string) error {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(1 * time.Hour)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"TRIP Verifier Test"},
		},
		NotBefore: notBefore,
		NotAfter:  notAfter,

		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	template.Subject.CommonName = "localhost"
	template.IPAddresses = append(template.IPAddresses, net.ParseIP("127.0.0.1"))

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return err
	}

	certOut, err := os.Create(path.Join(dir, "server.pem"))
	if err != nil {
		return err
	}
	pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	certOut.Close()

	keyOut, err := os.OpenFile(path.Join(dir, "server.key"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	b, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: b})
	keyOut.Close()
	return nil
}

// CreateTLSCertForTest creates a temp directory containing a TLS
// cert/key pair and returns it along with a teardown func.
func CreateTLSCertForTest(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", TestDirPrefix)
	if err != nil {
		t.Fatal(err)
	}
	if err := CreateTLSCert(dir); err != nil {
		t.Fatal(err)
	}
	return dir, func() {
		os.RemoveAll(dir)
	}
}

// NewTCPClient dials PublicConnection over TLS, writes msg, and returns
// whatever the server wrote back.
func NewTCPClient(msg []byte) ([]byte, error) {
	conf := &tls.Config{InsecureSkipVerify: true}

	conn, err := net.Dial("tcp", PublicConnection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tlsConn := tls.Client(conn, conf)
	if _, err := tlsConn.Write(msg); err != nil {
		return nil, err
	}
	if c, ok := conn.(interface{ CloseWrite() error }); ok {
		c.CloseWrite()
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, tlsConn, 8192); err != nil && err != io.EOF {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewUnixClient dials LocalConnection, writes msg, and returns whatever
// the server wrote back.
func NewUnixClient(msg []byte) ([]byte, error) {
	unixaddr := &net.UnixAddr{Name: LocalConnection, Net: "unix"}

	conn, err := net.DialUnix("unix", nil, unixaddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write(msg); err != nil {
		return nil, err
	}
	conn.CloseWrite()

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, conn, 8192); err != nil && err != io.EOF {
		return nil, err
	}
	return buf.Bytes(), nil
}
