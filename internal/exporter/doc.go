// Package exporter 定义宏展开结果的导出契约，以及封闭的导出器类型注册表。
//
// 导入钩子在模块展开、编译成功后调用 Exporter.ExportTransformed；之后可调用 Find
// 尝试直接复用已有缓存。内置三种实现，各自位于子包并在 init() 中注册：
//
//  1. null：两个操作均为空操作，默认类型；
//  2. mirror：把 Root 镜像到 TargetDirectory，并用 unparse 结果覆盖对应源文件；
//  3. pyc：按宿主格式写 __pycache__ 缓存，Find 可跳过宏展开直接加载。
//
// 使用方需要导入对应子包以完成注册（main.go 统一导入）；internal/config 不导入子包，避免循环依赖。
package exporter
