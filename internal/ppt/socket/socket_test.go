package socket_test

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opendap-hyrax/besd/internal/ppt/socket"
)

func freeTCPAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())
	defer func() { _ = l.Close() }()
	return l.Addr().String()
}

var _ = Describe("TCP socket", func() {
	var addr string

	BeforeEach(func() {
		addr = freeTCPAddr()
	})

	It("accepts a connection and echoes", func() {
		srv, err := socket.ListenTCP(addr)
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = srv.Close() }()

		done := make(chan struct{})
		go func() {
			defer close(done)
			peer, aerr := srv.Accept()
			Expect(aerr).ToNot(HaveOccurred())
			buf := make([]byte, 32)
			n, rerr := peer.Receive(buf)
			Expect(rerr).ToNot(HaveOccurred())
			Expect(peer.Send(buf[:n])).To(Succeed())
			_ = peer.Close()
		}()

		cli, err := socket.Dial("tcp", addr)
		Expect(err).ToNot(HaveOccurred())
		Expect(cli.Send([]byte("ping"))).To(Succeed())

		buf := make([]byte, 32)
		n, err := cli.Receive(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("ping"))

		Eventually(done, time.Second).Should(BeClosed())
		_ = cli.Close()
	})

	It("returns 0 on clean EOF", func() {
		srv, err := socket.ListenTCP(addr)
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = srv.Close() }()

		go func() {
			peer, _ := srv.Accept()
			_ = peer.Close()
		}()

		cli, err := socket.Dial("tcp", addr)
		Expect(err).ToNot(HaveOccurred())
		buf := make([]byte, 8)
		Eventually(func() (int, error) {
			return cli.Receive(buf)
		}, time.Second).Should(Equal(0))
	})

	It("closes idempotently", func() {
		srv, err := socket.ListenTCP(addr)
		Expect(err).ToNot(HaveOccurred())
		Expect(srv.Close()).To(Succeed())
		Expect(srv.Close()).To(Succeed())
	})
})

var _ = Describe("Unix socket", func() {
	It("unlinks its path on close", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "besd.sock")

		srv, err := socket.ListenUnix(path)
		Expect(err).ToNot(HaveOccurred())

		_, statErr := os.Stat(path)
		Expect(statErr).ToNot(HaveOccurred())

		Expect(srv.Close()).To(Succeed())

		_, statErr = os.Stat(path)
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	It("reports a fixed 65535 chunk size", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, fmt.Sprintf("besd-%d.sock", time.Now().UnixNano()))

		srv, err := socket.ListenUnix(path)
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = srv.Close() }()

		Expect(srv.RecvChunkSize()).To(Equal(65535))
		Expect(srv.SendChunkSize()).To(Equal(65535))
	})
})
