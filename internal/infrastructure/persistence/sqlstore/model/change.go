package model

type Change struct {
	AccountID        string  `gorm:"column:account_id;size:36;primaryKey"`
	Status           string  `gorm:"column:status;size:16;not null;index"`
	DetectedAt       string  `gorm:"column:detected_at;size:40;not null"`
	EmployeeNumber   *string `gorm:"column:employee_number;size:50"`
	DisplayName      string  `gorm:"column:display_name;size:200;not null"`
	Company          *string `gorm:"column:company;size:100"`
	Department       *string `gorm:"column:department;size:100"`
	PreviousUsername *string `gorm:"column:previous_username;size:128"`
	Username         string  `gorm:"column:username;size:128;not null"`
	PreviousEmail    *string `gorm:"column:previous_email;size:256"`
	Email            string  `gorm:"column:email;size:256;not null"`
	CreatedAt        string  `gorm:"column:created_at;size:40;not null"`
	UpdatedAt        string  `gorm:"column:updated_at;size:40;not null;index"`
}

func (Change) TableName() string {
	return "directory_changes"
}
