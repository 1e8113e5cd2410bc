package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dep2p/go-netpipe/config"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// Client 客户端会话，请求串行执行
type Client struct {
	*Conn
	mu sync.Mutex
}

// NewClient 在 stream 上创建客户端会话
func NewClient(stream *pipe.Stream, cfg config.VaultConfig) *Client {
	return &Client{Conn: NewConn(stream, cfg)}
}

// Handshake 完成握手
func (c *Client) Handshake(ctx context.Context) error {
	return c.handshake(ctx)
}

func (c *Client) roundTrip(ctx context.Context, req Frame) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.WriteFrame(ctx, req); err != nil {
		return Frame{}, err
	}
	resp, err := c.ReadFrame(ctx)
	if err != nil {
		return Frame{}, err
	}
	if resp.Type == FrameError {
		return resp, fmt.Errorf("%w: %s", ErrRemote, resp.Payload)
	}
	return resp, nil
}

func unexpected(op string, f Frame) error {
	return types.NewFault(types.FaultProtocol, op, fmt.Errorf("%w: %s", ErrUnknownFrame, f.Type))
}

// Get 读取 key
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.roundTrip(ctx, Frame{Type: FrameGet, Payload: []byte(key)})
	if err != nil {
		return nil, err
	}
	switch resp.Type {
	case FrameValue:
		return resp.Payload, nil
	case FrameNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil, unexpected("vault get", resp)
}

// Put 写入 key
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	resp, err := c.roundTrip(ctx, Frame{Type: FramePut, Payload: MarshalRecord(Record{Key: key, Value: value})})
	if err != nil {
		return err
	}
	if resp.Type != FrameOK {
		return unexpected("vault put", resp)
	}
	return nil
}

// Delete 删除 key
func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.roundTrip(ctx, Frame{Type: FrameDelete, Payload: []byte(key)})
	if err != nil {
		return err
	}
	switch resp.Type {
	case FrameOK:
		return nil
	case FrameNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return unexpected("vault delete", resp)
}

// Ping 发送心跳并返回往返时间
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	resp, err := c.roundTrip(ctx, Frame{Type: FramePing})
	if err != nil {
		return 0, err
	}
	if resp.Type != FramePong {
		return 0, unexpected("vault ping", resp)
	}
	return time.Since(start), nil
}

// Bye 通知服务端结束会话
func (c *Client) Bye(ctx context.Context) error {
	resp, err := c.roundTrip(ctx, Frame{Type: FrameBye})
	if err != nil {
		return err
	}
	if resp.Type != FrameOK {
		return unexpected("vault bye", resp)
	}
	return nil
}
