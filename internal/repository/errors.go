package repository

import "errors"

// 账本存储层哨兵错误，调用方用 errors.Is 区分处理
var (
	// ErrAlreadyInitialized 对非空账本重复执行日期范围初始化
	ErrAlreadyInitialized = errors.New("账本日期范围已初始化")
	// ErrNotInitialized 账本日期范围尚未初始化
	ErrNotInitialized = errors.New("账本日期范围未初始化")
	// ErrDuplicateFingerprint 文件指纹已存在（唯一约束兜底，正常流程先查后插不应触发）
	ErrDuplicateFingerprint = errors.New("文件指纹已存在")
	// ErrUnknownDate 日期落在账本范围之外
	ErrUnknownDate = errors.New("日期超出账本范围")
)
