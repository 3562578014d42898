package model

// MetaEntry mirrors the external metadata table. The table name is chosen at
// runtime (db.Table), TableName is only the default.
type MetaEntry struct {
	Key   string  `gorm:"column:KEY;size:255;primaryKey"`
	Name  string  `gorm:"column:meta_name;size:100;primaryKey"`
	Value *string `gorm:"column:meta_value"`
}

func (MetaEntry) TableName() string {
	return "MADB_Meta"
}
