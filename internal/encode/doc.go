// Package encode 把 ENCODE 下载目录建模为 Catalogue → Collection → File 三层结构。
//
// Catalogue 在打开时从根索引页（或缓存的 collections.json 快照）发现集合名；
// Collection 在首次访问文件时才下载并解析 files.txt；File 负责把单个远端文件
// 镜像到磁盘缓存，或以二进制/文本流的形式读取，必要时解析为区间索引。
package encode
