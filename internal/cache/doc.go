// Package cache 负责把编码好的缓存文件原子地落到磁盘（或任意 billy 文件系统）。
// 写入始终遵循“同目录临时文件 + rename”：并发读者只会看到旧的完整文件或新的完整文件，
// 失败时清理临时文件并保留原文件。Store 同时暴露 Get/Remove，供 Find 流程读取
// 缓存并比较 mtime；权限位由 SourceMode 按宿主约定从源文件推导。
package cache
