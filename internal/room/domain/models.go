package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Room is a billable rental unit with its energy quota and tariff.
type Room struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	Number     string          `json:"number" gorm:"type:text;not null;uniqueIndex:ux_rooms_number"`
	QuotaKWh   decimal.Decimal `json:"quota_kwh" gorm:"column:quota_kwh;type:numeric(18,3);not null;default:0"`
	TariffRate decimal.Decimal `json:"tariff_rate" gorm:"column:tariff_rate;type:numeric(18,6);not null;default:0"`
	OccupantID *string         `json:"occupant_id,omitempty" gorm:"column:occupant_id;type:text;uniqueIndex:ux_rooms_occupant"`
	Switch1On  bool            `json:"switch1_on" gorm:"column:switch1_on;not null;default:false"`
	Switch2On  bool            `json:"switch2_on" gorm:"column:switch2_on;not null;default:false"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"not null"`
}

func (Room) TableName() string { return "rooms" }

// Scales of the stored columns. Input with more decimal places is rejected.
const (
	QuotaScale  int32 = 3
	TariffScale int32 = 6
)
