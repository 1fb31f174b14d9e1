package domain

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DocumentStatus tracks ingestion progress. Only ready documents are used
// for retrieval.
type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentFailed     DocumentStatus = "failed"
)

// Document is a file attached to a lesson's mentor for retrieval.
type Document struct {
	ID             string         `json:"id"                       gorm:"type:char(36);primaryKey"`
	MentorLessonID string         `json:"mentor_lesson_id"         gorm:"type:char(36);not null;index"`
	LessonID       string         `json:"lesson_id"                gorm:"type:char(36);not null;index"`
	UploadedBy     string         `json:"uploaded_by"              gorm:"type:varchar(64);not null"`
	Name           string         `json:"name"                     gorm:"type:varchar(255);not null"`
	Type           string         `json:"type"                     gorm:"type:varchar(128);not null"`
	Size           int64          `json:"size"                     gorm:"not null"`
	StorageKey     string         `json:"-"                        gorm:"type:varchar(512);not null"`
	Status         DocumentStatus `json:"status"                   gorm:"type:varchar(16);not null;default:'processing';index;check:status IN ('processing','ready','failed')"`
	FailureReason  string         `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// PageLoc locates a chunk inside its source document.
type PageLoc struct {
	PageNumber *int `json:"pageNumber,omitempty"`
}

// ChunkMetadata mirrors the extraction metadata carried by a page record.
type ChunkMetadata struct {
	Loc *PageLoc `json:"loc,omitempty"`
}

// PageNumber returns the source page, if known.
func (m ChunkMetadata) PageNumber() (int, bool) {
	if m.Loc == nil || m.Loc.PageNumber == nil {
		return 0, false
	}
	return *m.Loc.PageNumber, true
}

// Chunk is one embedded unit of a document. Position is the zero-based
// order within the document and is preserved for citations.
type Chunk struct {
	ID         string                            `json:"id"          gorm:"type:char(36);primaryKey"`
	DocumentID string                            `json:"document_id" gorm:"type:char(36);not null;uniqueIndex:ux_doc_position,priority:1"`
	Position   int                               `json:"position"    gorm:"not null;uniqueIndex:ux_doc_position,priority:2"`
	Content    string                            `json:"content"     gorm:"type:text;not null"`
	Metadata   datatypes.JSONType[ChunkMetadata] `json:"metadata"`
	Embedding  pgvector.Vector                   `json:"-"           gorm:"type:vector"`
	TokenCount int                               `json:"token_count" gorm:"not null;default:0"`
	CreatedAt  time.Time                         `json:"created_at"`

	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Chunk.
func (Chunk) TableName() string { return "document_chunks" }
