package model

import "time"

// VersionedState 支持乐观锁的存储元数据（所有会话状态嵌入）
// 每次成功保存 Version+1，保存时版本不一致即视为并发冲突
type VersionedState struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
