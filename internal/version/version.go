// 包 version：构建期注入的版本信息
package version

// Commit 由构建脚本通过 -ldflags 注入，默认 dev
var Commit = "dev"
