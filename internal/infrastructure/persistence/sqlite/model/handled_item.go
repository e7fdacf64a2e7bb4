package model

type HandledItem struct {
	Key      string `gorm:"column:key;type:text;primaryKey"`
	MarkedAt string `gorm:"column:marked_at;type:text;not null"`
}

func (HandledItem) TableName() string {
	return "handled_items"
}
