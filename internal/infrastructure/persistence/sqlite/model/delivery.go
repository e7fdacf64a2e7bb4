package model

type Delivery struct {
	ID         uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	DeliveryID string `gorm:"column:delivery_id;type:text;not null"`
	Event      string `gorm:"column:event;type:text;not null"`
	Action     string `gorm:"column:action;type:text"`
	PRNumber   int    `gorm:"column:pr_number"`
	ReceivedAt string `gorm:"column:received_at;type:text;not null"`
}

func (Delivery) TableName() string {
	return "deliveries"
}
