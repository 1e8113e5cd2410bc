// Package bandwidth 提供流量统计
//
// Counter 记录泵适配器与外部资源之间搬运的字节数，
// 同时维护总量与按协议层（tcp/tls/mux）划分的计量器。
// 速率使用指数加权移动平均 (EWMA) 计算。
//
// 使用方式：
//
//	c := bandwidth.NewCounter(cfg.Bandwidth, clock.New())
//	opts.Recorder = c.Layer("tcp")
//	...
//	stats := c.Totals()
package bandwidth
