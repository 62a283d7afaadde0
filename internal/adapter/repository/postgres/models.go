package postgres

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/delivery"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/source"
)

// EventModel is the database DTO with Gorm tags.
type EventModel struct {
	ID            int64  `gorm:"primaryKey"`
	ProjectID     int64  `gorm:"index;not null"`
	SourceID      *int64 `gorm:"index"`
	EventName     string `gorm:"type:varchar(255);not null"`
	ClientEventID string `gorm:"type:varchar(255);not null;index"`
	EventTime     int64  `gorm:"not null"`
	SourceTag     string `gorm:"type:varchar(255)"`
	UserAttrs     datatypes.JSONMap `gorm:"type:jsonb"`
	CustomAttrs   datatypes.JSONMap `gorm:"type:jsonb"`
	RawPayload    datatypes.JSON    `gorm:"type:jsonb"`
	QualityScore  int
	QualityFlags  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"index"`
}

func (EventModel) TableName() string {
	return "events"
}

type DestinationModel struct {
	ID           int64             `gorm:"primaryKey"`
	ProjectID    int64             `gorm:"index;not null"`
	Type         string            `gorm:"type:varchar(50);not null"`
	Config       datatypes.JSONMap `gorm:"type:jsonb"`
	IsActive     bool              `gorm:"index;not null;default:true"`
	HealthStatus string            `gorm:"type:varchar(50)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (DestinationModel) TableName() string {
	return "destinations"
}

type DeliveryLogModel struct {
	ID            int64  `gorm:"primaryKey"`
	EventID       int64  `gorm:"index;not null"`
	DestinationID int64  `gorm:"index;not null"`
	Status        string `gorm:"type:varchar(20);index;not null"`
	Attempts      int    `gorm:"not null;default:0"`
	LastResponse  string `gorm:"type:text"`
	LastError     string `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

func (DeliveryLogModel) TableName() string {
	return "delivery_logs"
}

type SourceModel struct {
	ID        int64          `gorm:"primaryKey"`
	ProjectID int64          `gorm:"index;not null"`
	Name      string         `gorm:"type:varchar(255);not null"`
	EventKey  string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	Type      string         `gorm:"type:varchar(50)"`
	Mapping   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SourceModel) TableName() string {
	return "sources"
}

type APIKeyModel struct {
	ID         int64  `gorm:"primaryKey"`
	ProjectID  int64  `gorm:"index;not null"`
	Key        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	IsActive   bool   `gorm:"not null;default:true"`
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

func (APIKeyModel) TableName() string {
	return "api_keys"
}

// Mappers

func eventToModel(d *event.Event) EventModel {
	var flags datatypes.JSON
	if len(d.QualityFlags) > 0 {
		if b, err := json.Marshal(d.QualityFlags); err == nil {
			flags = datatypes.JSON(b)
		}
	}
	return EventModel{
		ID:            d.ID,
		ProjectID:     d.ProjectID,
		SourceID:      d.SourceID,
		EventName:     d.EventName,
		ClientEventID: d.ClientEventID,
		EventTime:     d.EventTime,
		SourceTag:     d.SourceTag,
		UserAttrs:     datatypes.JSONMap(d.UserAttrs),
		CustomAttrs:   datatypes.JSONMap(d.CustomAttrs),
		RawPayload:    datatypes.JSON(d.RawPayload),
		QualityScore:  d.QualityScore,
		QualityFlags:  flags,
		CreatedAt:     d.CreatedAt,
	}
}

func eventToDomain(m EventModel) *event.Event {
	var flags []string
	if len(m.QualityFlags) > 0 {
		_ = json.Unmarshal(m.QualityFlags, &flags)
	}
	return &event.Event{
		ID:            m.ID,
		ProjectID:     m.ProjectID,
		SourceID:      m.SourceID,
		EventName:     m.EventName,
		ClientEventID: m.ClientEventID,
		EventTime:     m.EventTime,
		SourceTag:     m.SourceTag,
		UserAttrs:     map[string]any(m.UserAttrs),
		CustomAttrs:   map[string]any(m.CustomAttrs),
		RawPayload:    json.RawMessage(m.RawPayload),
		QualityScore:  m.QualityScore,
		QualityFlags:  flags,
		CreatedAt:     m.CreatedAt,
	}
}

func destinationToDomain(m DestinationModel) *destination.Destination {
	return &destination.Destination{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		Type:         destination.Type(m.Type),
		Config:       destination.ProviderConfig(m.Config),
		IsActive:     m.IsActive,
		HealthStatus: m.HealthStatus,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func deliveryToModel(d *delivery.Log) DeliveryLogModel {
	return DeliveryLogModel{
		ID:            d.ID,
		EventID:       d.EventID,
		DestinationID: d.DestinationID,
		Status:        string(d.Status),
		Attempts:      d.Attempts,
		LastResponse:  d.LastResponse,
		LastError:     d.LastError,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func deliveryToDomain(m DeliveryLogModel) *delivery.Log {
	return &delivery.Log{
		ID:            m.ID,
		EventID:       m.EventID,
		DestinationID: m.DestinationID,
		Status:        delivery.Status(m.Status),
		Attempts:      m.Attempts,
		LastResponse:  m.LastResponse,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func sourceToDomain(m SourceModel) (*source.Source, error) {
	var mapping *source.Mapping
	if len(m.Mapping) > 0 {
		mapping = &source.Mapping{}
		if err := json.Unmarshal(m.Mapping, mapping); err != nil {
			return nil, err
		}
	}
	return &source.Source{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Name:      m.Name,
		EventKey:  m.EventKey,
		Type:      m.Type,
		Mapping:   mapping,
		CreatedAt: m.CreatedAt,
	}, nil
}
