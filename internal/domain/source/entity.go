package source

import "time"

// Mapping is the field-remapping specification for mapped-mode ingestion.
// Each group maps internalKey -> sourcePayloadKey; pairs whose source key is
// absent from the inbound payload are simply omitted.
type Mapping struct {
	EventName string            `json:"event_name"`
	SourceTag string            `json:"source_tag"`
	User      map[string]string `json:"user"`
	Data      map[string]string `json:"data"`
	Meta      map[string]string `json:"meta"`
}

// Source associates an opaque event key with a mapping specification.
// Sources are managed by the administration layer and read-only here.
type Source struct {
	ID        int64     `json:"id,string"`
	ProjectID int64     `json:"project_id,string"`
	Name      string    `json:"name"`
	EventKey  string    `json:"event_key"`
	Type      string    `json:"type,omitempty"`
	Mapping   *Mapping  `json:"mapping,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
