package pyc

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/jmgilman/go/errors"
)

// Encoder 将序列化后的代码对象与源文件状态组合成完整的缓存文件内容。
type Encoder struct {
	FS      billy.Filesystem
	Runtime Runtime
	Paths   PathOptions
}

// NewEncoder 构造绑定到指定文件系统与宿主的编码器。
func NewEncoder(fs billy.Filesystem, rt Runtime, paths PathOptions) *Encoder {
	return &Encoder{FS: fs, Runtime: rt, Paths: paths}
}

// Encode 在导出时读取源文件状态（而非内存中的产物）生成缓存字节。
// Timestamp 模式 stat 源文件；哈希模式读取源码全文并按宿主算法求哈希。
func (e *Encoder) Encode(code []byte, sourcePath string, mode Mode) ([]byte, error) {
	desc, err := e.Describe(sourcePath, mode)
	if err != nil {
		return nil, err
	}
	return Encode(e.Runtime.Magic(), desc, code), nil
}

// Describe 根据当前源文件计算失效描述符，Find 校验时复用同一逻辑。
func (e *Encoder) Describe(sourcePath string, mode Mode) (Descriptor, error) {
	switch mode {
	case ModeTimestamp:
		info, err := e.FS.Stat(sourcePath)
		if err != nil {
			return nil, sourceUnavailable(err, sourcePath)
		}
		return Timestamp{
			SourceMtime: uint32(info.ModTime().Unix()),
			SourceSize:  uint32(info.Size()),
		}, nil
	case ModeCheckedHash, ModeUncheckedHash:
		source, err := util.ReadFile(e.FS, sourcePath)
		if err != nil {
			return nil, sourceUnavailable(err, sourcePath)
		}
		return Hash{
			Digest:  e.Runtime.HashSource(source),
			Checked: mode.Checked(),
		}, nil
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown invalidation mode %q", mode)
	}
}

// CachePathFor 返回宿主 loader 会查找的缓存位置。
func (e *Encoder) CachePathFor(sourcePath string) (string, error) {
	return CacheFromSource(sourcePath, e.Runtime, e.Paths)
}
