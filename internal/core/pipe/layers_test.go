package pipe

import (
	"crypto/tls"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netpipe/pkg/types"
)

func tcpInfo(localPort, remotePort int) *types.TCPInfo {
	return types.NewTCPInfo(
		&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: localPort},
		&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: remotePort},
		types.DirOutbound,
	)
}

type countingVisitor struct {
	order []types.LayerKind
}

func (v *countingVisitor) VisitIP(*types.IPInfo)   { v.order = append(v.order, types.LayerIP) }
func (v *countingVisitor) VisitTCP(*types.TCPInfo) { v.order = append(v.order, types.LayerTCP) }
func (v *countingVisitor) VisitTLS(*types.TLSInfo) { v.order = append(v.order, types.LayerTLS) }

// TestLayerHierarchy_InstallOrder B 端安装在锚点之上，A 端安装在锚点之下
func TestLayerHierarchy_InstallOrder(t *testing.T) {
	a, b := NewPair(1024, 8)

	ha, err := a.Attach(AttachOptions{})
	require.NoError(t, err)
	hb, err := b.Attach(AttachOptions{})
	require.NoError(t, err)

	tcp := tcpInfo(4000, 5000)
	tlsInfo := types.NewTLSInfo(tls.ConnectionState{Version: tls.VersionTLS13}, nil, false)

	_, err = ha.SetLayerInfo(tcp, "tcp-stub", true)
	require.NoError(t, err)
	_, err = hb.SetLayerInfo(tlsInfo, "tls-stack", true)
	require.NoError(t, err)

	_, err = hb.SetLayerInfo(tlsInfo, "tls-stack", true)
	assert.ErrorIs(t, err, types.ErrLayerAlreadySet)

	all := a.Layers().All()
	require.Len(t, all, 2)
	assert.Equal(t, types.LayerTLS, all[0].Kind())
	assert.Equal(t, types.LayerTCP, all[1].Kind())

	// TCP 层同时回答 IP 查询
	require.Len(t, a.Layers().Values(types.LayerIP), 1)
	require.Len(t, a.Layers().IPInfos(), 1)
	assert.Equal(t, 5000, a.Layers().TCPInfos()[0].RemotePort)
	assert.Equal(t, "TLS 1.3", a.Layers().TLSInfos()[0].ProtocolName())

	v := &countingVisitor{}
	a.Layers().Walk(v)
	assert.Equal(t, []types.LayerKind{types.LayerTLS, types.LayerTCP}, v.order)

	// 释放时卸载
	require.NoError(t, hb.Close())
	assert.Empty(t, a.Layers().TLSInfos())
	require.NoError(t, ha.Close())
	assert.Equal(t, 0, a.Layers().Len())
}

// TestLayerHierarchy_Encounter 合并后下层节点排在上层节点之下，所有持有者共享视图
func TestLayerHierarchy_Encounter(t *testing.T) {
	lower := NewLayerHierarchy()
	upper := NewLayerHierarchy()

	tcp := NewLayerNode(tcpInfo(1, 2), nil)
	require.NoError(t, lower.Install(tcp, nil, false))
	tlsNode := NewLayerNode(types.NewTLSInfo(tls.ConnectionState{}, nil, true), nil)
	require.NoError(t, lower.Install(tlsNode, nil, true))
	app := NewLayerNode(&types.IPInfo{LocalIP: net.IPv6loopback, RemoteIP: net.IPv6loopback}, nil)
	require.NoError(t, upper.Install(app, nil, true))

	upper.Encounter(lower)
	upper.Encounter(lower)

	for _, h := range []*LayerHierarchy{upper, lower} {
		all := h.All()
		require.Len(t, all, 3)
		assert.Equal(t, types.LayerIP, all[0].Kind())
		assert.Equal(t, types.LayerTLS, all[1].Kind())
		assert.Equal(t, types.LayerTCP, all[2].Kind())
	}
	assert.True(t, upper.IPInfos()[0].IsIPv6())

	// 合并后通过任一视图安装都可见
	extra := NewLayerNode(tcpInfo(7, 8), nil)
	require.NoError(t, lower.Install(extra, lower.Anchor(), false))
	assert.Len(t, upper.TCPInfos(), 2)
	assert.True(t, upper.Installed(extra))

	require.NoError(t, upper.Uninstall(extra))
	assert.Len(t, lower.TCPInfos(), 1)
}

// TestLayerHierarchy_Errors 重复安装与卸载未安装节点
func TestLayerHierarchy_Errors(t *testing.T) {
	h := NewLayerHierarchy()
	other := NewLayerHierarchy()

	n := NewLayerNode(tcpInfo(1, 2), nil)
	require.NoError(t, h.Install(n, nil, true))
	assert.ErrorIs(t, h.Install(n, nil, true), types.ErrLayerAlreadyInstalled)

	foreign := NewLayerNode(tcpInfo(3, 4), nil)
	err := h.Install(foreign, other.Anchor(), true)
	assert.True(t, errors.Is(err, types.ErrLayerNotInstalled))
	require.NoError(t, other.Install(foreign, nil, true), "失败的安装不应占用节点")

	assert.ErrorIs(t, h.Uninstall(foreign), types.ErrLayerNotInstalled)
	assert.ErrorIs(t, h.Uninstall(h.Anchor()), types.ErrLayerNotInstalled)
	require.NoError(t, h.Uninstall(n))
	assert.ErrorIs(t, h.Uninstall(n), types.ErrLayerNotInstalled)
}
