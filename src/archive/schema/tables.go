// 归档库表结构，1:N信息（错误列表）json化存储
package schema

import (
	"time"
)

type RegionResult struct {
	ID              uint64    `xorm:"bigint pk autoincr 'id'"`
	Region          string    `xorm:"varchar(64) notnull unique(uk_region) 'region'"`
	Website         string    `xorm:"varchar(512) 'website'"`
	Success         bool      `xorm:"bool 'success'"`
	ReportsFound    int       `xorm:"int 'reports_found'"`
	FilesDownloaded int       `xorm:"int 'files_downloaded'"`
	Errors          string    `xorm:"text 'errors'"`
	CreatedAt       time.Time `xorm:"created notnull 'created_at'"`
	UpdatedAt       time.Time `xorm:"updated notnull 'updated_at'"`
}

func (r *RegionResult) TableName() string {
	return "region_results"
}

type Artifact struct {
	ID        uint64    `xorm:"bigint pk autoincr 'id'"`
	Region    string    `xorm:"varchar(64) notnull 'region'"`
	Title     string    `xorm:"varchar(512) 'title'"`
	SourceURL string    `xorm:"varchar(2048) 'source_url'"`
	FileURL   string    `xorm:"varchar(2048) notnull unique(uk_file_url) 'file_url'"`
	Path      string    `xorm:"varchar(1024) 'path'"`
	CreatedAt time.Time `xorm:"created notnull 'created_at'"`
}

func (a *Artifact) TableName() string {
	return "artifacts"
}
