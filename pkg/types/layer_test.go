package types

import (
	"crypto/tls"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type kindCollector struct {
	kinds []LayerKind
}

func (c *kindCollector) VisitIP(*IPInfo)   { c.kinds = append(c.kinds, LayerIP) }
func (c *kindCollector) VisitTCP(*TCPInfo) { c.kinds = append(c.kinds, LayerTCP) }
func (c *kindCollector) VisitTLS(*TLSInfo) { c.kinds = append(c.kinds, LayerTLS) }

func TestTCPInfo(t *testing.T) {
	local := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4000}
	remote := &net.TCPAddr{IP: net.ParseIP("::1"), Port: 5000}
	info := NewTCPInfo(local, remote, DirOutbound)

	assert.Equal(t, LayerTCP, info.Kind())
	assert.True(t, info.Provides(LayerTCP))
	assert.True(t, info.Provides(LayerIP))
	assert.False(t, info.Provides(LayerTLS))
	assert.True(t, info.IsIPv6())
	assert.Equal(t, "127.0.0.1:4000", info.LocalAddr().String())
	assert.Equal(t, "[::1]:5000", info.RemoteAddr().String())
	assert.Equal(t, "127.0.0.1:4000 -> [::1]:5000", info.String())

	// 非 TCP 地址被忽略
	empty := NewTCPInfo(&net.UDPAddr{}, nil, DirInbound)
	assert.Zero(t, empty.LocalPort)
	assert.False(t, empty.IsIPv6())
}

func TestTLSInfo(t *testing.T) {
	info := NewTLSInfo(tls.ConnectionState{
		Version:     tls.VersionTLS13,
		CipherSuite: tls.TLS_AES_128_GCM_SHA256,
		ServerName:  "localhost",
	}, nil, true)

	assert.Equal(t, LayerTLS, info.Kind())
	assert.False(t, info.Provides(LayerIP))
	assert.Equal(t, "TLS 1.3", info.ProtocolName())
	assert.Equal(t, "TLS_AES_128_GCM_SHA256", info.CipherName())
	assert.True(t, info.IsServer)
	assert.Nil(t, info.LocalCertificate)
}

func TestLayerVisitor(t *testing.T) {
	c := &kindCollector{}
	for _, li := range []LayerInfo{&TLSInfo{}, &TCPInfo{}, &IPInfo{}} {
		li.Accept(c)
	}
	assert.Equal(t, []LayerKind{LayerTLS, LayerTCP, LayerIP}, c.kinds)
	assert.Equal(t, "unknown", LayerKind(0).String())
	assert.Equal(t, 3, Datagram{Data: []byte("abc")}.Len())
}
