package vault

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/util/logger"
	"github.com/dep2p/go-netpipe/pkg/types"
)

var log = logger.Logger("vault")

// Conn 管道流上的帧连接
//
// 读与写各自串行，读写之间可以并发。
type Conn struct {
	stream *pipe.Stream
	cfg    config.VaultConfig

	readMu  sync.Mutex
	writeMu sync.Mutex

	version atomic.Uint32
}

// NewConn 在 stream 上创建帧连接
func NewConn(stream *pipe.Stream, cfg config.VaultConfig) *Conn {
	if cfg.Version == 0 {
		cfg.Version = config.DefaultVaultConfig().Version
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = config.DefaultVaultConfig().MaxFrameSize
	}
	return &Conn{stream: stream, cfg: cfg}
}

// Stream 返回底层流
func (c *Conn) Stream() *pipe.Stream { return c.stream }

// Version 返回协商版本；握手前为 0
func (c *Conn) Version() uint32 { return c.version.Load() }

// handshake 发送本端 magic 与版本，读取并校验对端的
func (c *Conn) handshake(ctx context.Context) error {
	hello := make([]byte, 8)
	binary.BigEndian.PutUint32(hello[0:4], Magic)
	binary.BigEndian.PutUint32(hello[4:8], c.cfg.Version)

	c.writeMu.Lock()
	err := c.stream.Send(ctx, hello)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("vault handshake: %w", err)
	}

	c.readMu.Lock()
	peer, err := c.stream.ReceiveAll(ctx, 8)
	c.readMu.Unlock()
	if err != nil {
		return fmt.Errorf("vault handshake: %w", err)
	}

	if m := binary.BigEndian.Uint32(peer[0:4]); m != Magic {
		return types.NewFault(types.FaultProtocol, "vault handshake", fmt.Errorf("%w: %#08x", ErrBadMagic, m))
	}
	v := binary.BigEndian.Uint32(peer[4:8])
	if v == 0 {
		return types.NewFault(types.FaultProtocol, "vault handshake", fmt.Errorf("%w: %d", ErrBadVersion, v))
	}
	c.version.Store(min(v, c.cfg.Version))
	log.Debug("握手完成", "local", c.cfg.Version, "peer", v, "negotiated", c.Version())
	return nil
}

// WriteFrame 发送一帧
func (c *Conn) WriteFrame(ctx context.Context, f Frame) error {
	if c.Version() == 0 {
		return ErrNoHandshake
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(ctx, c.stream, f, c.cfg.MaxFrameSize)
}

// ReadFrame 读取一帧
func (c *Conn) ReadFrame(ctx context.Context) (Frame, error) {
	if c.Version() == 0 {
		return Frame{}, ErrNoHandshake
	}
	c.readMu.Lock()
	defer c.readMu.Unlock()
	return readFrame(ctx, c.stream, c.cfg.MaxFrameSize)
}

// Close 关闭底层流
func (c *Conn) Close() error {
	return c.stream.Close()
}
