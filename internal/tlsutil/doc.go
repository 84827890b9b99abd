// Package tlsutil 构造出站 HTTP 客户端的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件），
// 支持额外信任自签名引擎证书。
package tlsutil
