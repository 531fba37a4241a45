package pyc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderSize 为 magic(4) + flags(4) + 失效描述符(8) 的固定长度。
const HeaderSize = 16

const (
	FlagHashBased uint32 = 1 << 0
	FlagCheckHash uint32 = 1 << 1

	knownFlags = FlagHashBased | FlagCheckHash
)

// Descriptor 是失效描述符的封闭变体：Timestamp 或 Hash。
type Descriptor interface {
	flags() uint32
	put(dst []byte)
	Mode() Mode
}

// Timestamp 记录源文件 mtime 与大小，二者均截断为 32 位。
type Timestamp struct {
	SourceMtime uint32 `json:"source_mtime"`
	SourceSize  uint32 `json:"source_size"`
}

func (Timestamp) flags() uint32 { return 0 }

func (t Timestamp) put(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], t.SourceMtime)
	binary.LittleEndian.PutUint32(dst[4:8], t.SourceSize)
}

// Mode implements Descriptor.
func (Timestamp) Mode() Mode { return ModeTimestamp }

// Hash 记录源码的 64 位哈希；Checked 决定 loader 是否每次重新校验。
type Hash struct {
	Digest  uint64 `json:"digest"`
	Checked bool   `json:"checked"`
}

func (h Hash) flags() uint32 {
	if h.Checked {
		return FlagHashBased | FlagCheckHash
	}
	return FlagHashBased
}

func (h Hash) put(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], h.Digest)
}

// Mode implements Descriptor.
func (h Hash) Mode() Mode {
	if h.Checked {
		return ModeCheckedHash
	}
	return ModeUncheckedHash
}

// Header 是缓存文件的固定头部。
type Header struct {
	Magic      [4]byte
	Flags      uint32
	Descriptor Descriptor
}

// Mode 返回头部声明的失效策略。
func (h Header) Mode() Mode {
	if h.Descriptor == nil {
		return ""
	}
	return h.Descriptor.Mode()
}

// Encode 按宿主布局拼接 magic || flags || descriptor || payload。
func Encode(magic [4]byte, desc Descriptor, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	copy(out[0:4], magic[:])
	binary.LittleEndian.PutUint32(out[4:8], desc.flags())
	desc.put(out[8:16])
	copy(out[HeaderSize:], payload)
	return out
}

// Decode 解析固定头部并返回 payload 切片（与 data 共享底层数组）。
func Decode(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, corruptCache("cache file truncated: %d bytes, header needs %d", len(data), HeaderSize)
	}

	var header Header
	copy(header.Magic[:], data[0:4])
	if !bytes.Equal(header.Magic[2:], []byte("\r\n")) {
		return Header{}, nil, corruptCache("bad magic number %x", header.Magic)
	}

	header.Flags = binary.LittleEndian.Uint32(data[4:8])
	if header.Flags&^knownFlags != 0 {
		return Header{}, nil, corruptCache("invalid flags %#x", header.Flags)
	}
	if header.Flags&FlagCheckHash != 0 && header.Flags&FlagHashBased == 0 {
		return Header{}, nil, corruptCache("check_source flag without hash-based flag: %#x", header.Flags)
	}

	if header.Flags&FlagHashBased != 0 {
		header.Descriptor = Hash{
			Digest:  binary.LittleEndian.Uint64(data[8:16]),
			Checked: header.Flags&FlagCheckHash != 0,
		}
	} else {
		header.Descriptor = Timestamp{
			SourceMtime: binary.LittleEndian.Uint32(data[8:12]),
			SourceSize:  binary.LittleEndian.Uint32(data[12:16]),
		}
	}
	return header, data[HeaderSize:], nil
}

// MagicString 以十六进制展示 magic，便于日志与诊断接口输出。
func MagicString(magic [4]byte) string {
	return fmt.Sprintf("%x", magic[:])
}

func hashString(digest uint64) string {
	return fmt.Sprintf("%016x", digest)
}

// CheckMagic 校验头部 magic 是否属于目标宿主，不匹配视为外来缓存。
func CheckMagic(header Header, rt Runtime) error {
	if header.Magic != rt.Magic() {
		return corruptCache("cache magic %s does not match runtime %s (%s)",
			MagicString(header.Magic), rt.Name, MagicString(rt.Magic()))
	}
	return nil
}

// SourceUnavailable 包装源文件访问错误，供导出器在 Find 流程中复用同一错误码。
func SourceUnavailable(err error, path string) error {
	return sourceUnavailable(err, path)
}
