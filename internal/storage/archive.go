package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ArchivedHeadline 是头条的历史归档，缓存文件只保留最新快照，归档保留全部出现过的头条
type ArchivedHeadline struct {
	ID          string    `gorm:"primaryKey;size:40" json:"id"`
	Title       string    `gorm:"size:512" json:"title"`
	URL         string    `gorm:"size:1024;index" json:"url"`
	Source      string    `gorm:"size:255;index" json:"source"`
	PublishedAt time.Time `gorm:"index" json:"publishedAt"`
	LastSeenAt  time.Time `gorm:"index" json:"lastSeenAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (ArchivedHeadline) TableName() string {
	return "headlines"
}

// Archive 把每轮快照写入 PostgreSQL，仅在配置了 POSTGRES_DSN 时启用
type Archive struct {
	DB *gorm.DB
}

func NewArchive(dsn string) (*Archive, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ArchivedHeadline{}); err != nil {
		return nil, err
	}
	return &Archive{DB: db}, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunes 按 rune 数截断，确保不会超过字段长度
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func archiveRow(h collector.Headline, seenAt time.Time) ArchivedHeadline {
	return ArchivedHeadline{
		ID:          h.ID,
		Title:       truncateRunes(toValidUTF8(h.Title), 512),
		URL:         truncateRunes(toValidUTF8(h.URL), 1024),
		Source:      truncateRunes(toValidUTF8(h.Source), 255),
		PublishedAt: time.UnixMilli(h.TS),
		LastSeenAt:  seenAt,
	}
}

// SaveBatch 以 ID 为幂等键写入；已存在时只刷新标题与最近出现时间
func (a *Archive) SaveBatch(items []collector.Headline) error {
	now := time.Now()
	for _, it := range items {
		row := archiveRow(it, now)
		if err := a.DB.Where("id = ?", row.ID).FirstOrCreate(&row).Error; err != nil {
			return err
		}
		if err := a.DB.Model(&row).Updates(map[string]any{
			"title":        row.Title,
			"last_seen_at": now,
		}).Error; err != nil {
			return fmt.Errorf("refresh archived headline %s: %w", row.ID, err)
		}
	}
	return nil
}

func (a *Archive) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
