package model

type SnapshotEntry struct {
	CapturedAt  string  `gorm:"column:captured_at;size:40;primaryKey"`
	AccountID   string  `gorm:"column:account_id;size:36;primaryKey"`
	Username    string  `gorm:"column:username;size:128;not null"`
	Email       *string `gorm:"column:email;size:256"`
	DisplayName *string `gorm:"column:display_name;size:200"`
	Company     *string `gorm:"column:company;size:100"`
	Department  *string `gorm:"column:department;size:100"`
}

func (SnapshotEntry) TableName() string {
	return "directory_snapshot_entries"
}
