// Package pyc 复刻 CPython 私有的字节码缓存格式（__pycache__/*.pyc），让宏展开后的
// 编译产物能被宿主解释器自己的 loader 直接识别。
//
// 包内只处理纯格式问题：16 字节固定头（magic + flags + 失效描述符）、缓存路径推导、
// 失效策略选择，以及按宿主算法计算源码哈希。写盘由 internal/cache 负责，
// 导出流程由 internal/exporter/pycache 负责编排。
package pyc
