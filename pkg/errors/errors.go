package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：会话已被其他请求修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrNotFound 存储层未找到记录
var ErrNotFound = errors.New("记录不存在")
