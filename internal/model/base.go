package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel 提供统一的基础字段：UUID、CreatedAt、UpdatedAt。
// 约定与特性：
//  1. UUID 为主键，BeforeCreate 钩子自动生成，多消费进程并发写入时不依赖数据库自增。
//  2. CreatedAt/UpdatedAt 由 GORM 自动维护时间戳。
type BaseModel struct {
	UUID      string    `json:"uuid" gorm:"type:char(36);primaryKey;comment:主键UUID"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;comment:创建时间"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime;comment:更新时间"`
}

// BeforeCreate 创建前自动生成UUID
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == "" {
		m.UUID = uuid.NewString()
	}
	return nil
}
