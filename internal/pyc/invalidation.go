package pyc

import (
	"fmt"
	"os"
	"strings"
)

// Mode 描述缓存文件的失效判定方式，与 py_compile.PycInvalidationMode 一一对应。
type Mode string

const (
	ModeTimestamp     Mode = "timestamp"
	ModeCheckedHash   Mode = "checked-hash"
	ModeUncheckedHash Mode = "unchecked-hash"
)

// ReproducibleBuildEnv 为可复现构建约定的环境变量，非空时切换到哈希失效。
const ReproducibleBuildEnv = "SOURCE_DATE_EPOCH"

// Decide 根据环境选择失效策略：可复现构建信号存在且非空时返回 CheckedHash，否则 Timestamp。
// lookup 与 os.LookupEnv 签名一致，方便测试注入。
func Decide(lookup func(string) (string, bool)) Mode {
	if lookup == nil {
		return ModeTimestamp
	}
	if value, ok := lookup(ReproducibleBuildEnv); ok && value != "" {
		return ModeCheckedHash
	}
	return ModeTimestamp
}

// DecideFromEnv 读取当前进程环境，应只在启动阶段调用一次。
func DecideFromEnv() Mode {
	return Decide(os.LookupEnv)
}

// ParseMode 解析配置中的失效策略写法，兼容下划线与大小写。
func ParseMode(raw string) (Mode, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch Mode(normalized) {
	case ModeTimestamp, ModeCheckedHash, ModeUncheckedHash:
		return Mode(normalized), nil
	default:
		return "", fmt.Errorf("unsupported invalidation mode: %q", raw)
	}
}

// HashBased 返回该模式是否以源码哈希作为失效依据。
func (m Mode) HashBased() bool {
	return m == ModeCheckedHash || m == ModeUncheckedHash
}

// Checked 返回 loader 是否需要在每次加载时重新校验源码哈希。
func (m Mode) Checked() bool {
	return m == ModeCheckedHash
}

func (m Mode) String() string {
	return string(m)
}
