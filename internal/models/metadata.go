package model

// Metadata is a per-project key/value row. The registry stamps the project
// id and schema version here on first open.
type Metadata struct {
	Key   string `gorm:"primaryKey;size:256" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

func (Metadata) TableName() string {
	return "metadata"
}

// Well-known metadata keys.
const (
	MetaProjectID     = "project_id"
	MetaSchemaVersion = "schema_version"
)
