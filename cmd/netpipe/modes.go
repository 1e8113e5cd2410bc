package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/dep2p/go-netpipe"
	"github.com/dep2p/go-netpipe/internal/core/netstack"
	"github.com/dep2p/go-netpipe/internal/core/pipe"
	"github.com/dep2p/go-netpipe/internal/protocol/vault"
	"github.com/dep2p/go-netpipe/pkg/types"
)

// handler 处理一条已建立的上层管道
type handler func(ctx context.Context, p *pipe.Point)

// dispatch 按模式运行
func dispatch(ctx context.Context, rt *netpipe.Runtime, cc cliConfig, out io.Writer) error {
	switch cc.mode {
	case modeEchoServer:
		return serve(ctx, rt, cc, nil, echoHandler(rt))
	case modeEchoClient:
		return echoClient(ctx, rt, cc, out)
	case modeVaultServer:
		return serve(ctx, rt, cc, nil, vaultHandler(rt, vault.NewMemoryStore(0)))
	case modeVaultClient:
		return vaultClient(ctx, rt, cc, out)
	}
	return fmt.Errorf("未知模式: %s", cc.mode)
}

// ============================================================================
//                              服务端
// ============================================================================

// serve 监听并为每个连接（或每个多路复用子流）运行 h，直到 ctx 结束
func serve(ctx context.Context, rt *netpipe.Runtime, cc cliConfig, ready chan<- net.Addr, h handler) error {
	l, err := rt.Listen(cc.addr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	log.Info("开始监听", "addr", l.Addr(), "tls", cc.tls, "mux", cc.mux)
	if ready != nil {
		ready <- l.Addr()
	}

	for {
		upper, err := acceptUpper(ctx, rt, l, cc.tls)
		if err != nil {
			if ctx.Err() != nil || l.State() == types.StateClosed {
				return nil
			}
			log.Warn("接受连接失败", "error", err)
			continue
		}
		if cc.mux {
			go serveMux(ctx, rt, upper, h)
		} else {
			go h(ctx, upper)
		}
	}
}

func acceptUpper(ctx context.Context, rt *netpipe.Runtime, l *netstack.TCPStub, useTLS bool) (*pipe.Point, error) {
	if useTLS {
		s, err := rt.AcceptTLS(ctx, l)
		if err != nil {
			return nil, err
		}
		return s.Upper(), nil
	}
	s, err := rt.Accept(ctx, l)
	if err != nil {
		return nil, err
	}
	return s.Upper(), nil
}

func serveMux(ctx context.Context, rt *netpipe.Runtime, upper *pipe.Point, h handler) {
	m, err := rt.Mux(upper, true)
	if err != nil {
		log.Warn("启动多路复用失败", "error", err)
		return
	}
	defer func() { _ = m.Close() }()
	for {
		sub, err := m.AcceptStream(ctx)
		if err != nil {
			return
		}
		go h(ctx, sub)
	}
}

func echoHandler(rt *netpipe.Runtime) handler {
	return func(ctx context.Context, p *pipe.Point) {
		app, err := rt.Attach(p)
		if err != nil {
			log.Warn("附着失败", "error", err)
			return
		}
		defer func() { _ = app.Close() }()

		s := app.Stream()
		for {
			b, err := s.Receive(ctx, 0)
			if err != nil {
				return
			}
			if err := s.Send(ctx, b); err != nil {
				return
			}
		}
	}
}

func vaultHandler(rt *netpipe.Runtime, store vault.Store) handler {
	return func(ctx context.Context, p *pipe.Point) {
		if err := rt.ServeVault(ctx, p, store); err != nil {
			log.Warn("vault 会话异常结束", "error", err)
		}
	}
}

// ============================================================================
//                              客户端
// ============================================================================

// dialUpper 建立连接并按参数叠加 TLS 与多路复用，返回最上层管道端点与底层协议栈
func dialUpper(ctx context.Context, rt *netpipe.Runtime, cc cliConfig) (*pipe.Point, io.Closer, error) {
	var (
		upper  *pipe.Point
		bottom io.Closer
	)
	if cc.tls {
		s, err := rt.DialTLS(ctx, cc.addr, cc.serverName)
		if err != nil {
			return nil, nil, err
		}
		upper, bottom = s.Upper(), s
	} else {
		s, err := rt.Dial(ctx, cc.addr)
		if err != nil {
			return nil, nil, err
		}
		upper, bottom = s.Upper(), s
	}

	if !cc.mux {
		return upper, bottom, nil
	}
	m, err := rt.Mux(upper, false)
	if err != nil {
		_ = bottom.Close()
		return nil, nil, err
	}
	sub, err := m.OpenStream(ctx)
	if err != nil {
		_ = m.Close()
		return nil, nil, err
	}
	return sub, m, nil
}

func echoClient(ctx context.Context, rt *netpipe.Runtime, cc cliConfig, out io.Writer) error {
	upper, bottom, err := dialUpper(ctx, rt, cc)
	if err != nil {
		return err
	}
	defer func() { _ = bottom.Close() }()

	app, err := rt.Attach(upper)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	s := app.Stream()
	for i := 0; i < cc.count; i++ {
		if err := s.Send(ctx, []byte(cc.message)); err != nil {
			return err
		}
		got, err := s.ReceiveAll(ctx, len(cc.message))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", got)
	}
	return nil
}

func vaultClient(ctx context.Context, rt *netpipe.Runtime, cc cliConfig, out io.Writer) error {
	upper, bottom, err := dialUpper(ctx, rt, cc)
	if err != nil {
		return err
	}
	defer func() { _ = bottom.Close() }()

	c, err := rt.VaultClient(ctx, upper)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := runVaultCommand(ctx, c, cc.args, out); err != nil {
		return err
	}
	return c.Bye(ctx)
}

// runVaultCommand 执行一条 vault 命令；无命令时发送心跳
func runVaultCommand(ctx context.Context, c *vault.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		args = []string{"ping"}
	}
	cmd, rest := strings.ToLower(args[0]), args[1:]

	switch {
	case cmd == "put" && len(rest) == 2:
		if err := c.Put(ctx, rest[0], []byte(rest[1])); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
	case cmd == "get" && len(rest) == 1:
		v, err := c.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", v)
	case cmd == "del" && len(rest) == 1:
		if err := c.Delete(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
	case cmd == "ping" && len(rest) == 0:
		rtt, err := c.Ping(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "PONG %s\n", rtt)
	default:
		return fmt.Errorf("无效命令: %s", strings.Join(args, " "))
	}
	return nil
}
