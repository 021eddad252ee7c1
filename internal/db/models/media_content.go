package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MediaType represents the content type of a media row.
// This is the only fixed enumeration in the data model: it is business
// logic, not dynamic data.
type MediaType string

const (
	// MediaTypeImage is an image asset (flyer, photo).
	MediaTypeImage MediaType = "IMAGE"
	// MediaTypeVideo is a video asset.
	MediaTypeVideo MediaType = "VIDEO"
	// MediaTypeCopywriting is a text-only content item.
	MediaTypeCopywriting MediaType = "COPYWRITING"
)

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeImage, MediaTypeVideo, MediaTypeCopywriting:
		return true
	default:
		return false
	}
}

// MediaContent is the main media storage for flyers, videos and copywriting.
// Validation rules enforced at the API boundary:
//   - COPYWRITING: description required, file URL optional
//   - IMAGE/VIDEO: file URL required, description optional
type MediaContent struct {
	ID    string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title string `gorm:"size:255;not null" json:"title"`
	// Description is required for COPYWRITING content.
	Description *string   `gorm:"type:text" json:"description"`
	Type        MediaType `gorm:"type:varchar(20);not null;index" json:"type"`
	// FileURL is required for IMAGE and VIDEO content.
	FileURL       *string `gorm:"type:text" json:"fileUrl"`
	FileSizeBytes *int64  `json:"fileSizeBytes"`
	ThumbnailURL  *string `gorm:"type:text" json:"thumbnailUrl"`
	CategoryID    *string `gorm:"type:varchar(36);column:category_id" json:"categoryId"`
	Category      *MediaCategory `gorm:"foreignKey:CategoryID;references:ID" json:"category,omitempty"`
	// UploadedBy references the user who created the row.
	UploadedBy string `gorm:"type:varchar(36);column:uploaded_by;not null;index" json:"uploadedBy"`
	Uploader   *User  `gorm:"foreignKey:UploadedBy;references:ID" json:"uploader,omitempty"`
	// KordaID scopes the row to a branch; nil means national (DPP) content.
	KordaID    *string    `gorm:"type:varchar(36);column:korda_id;index" json:"kordaId"`
	Korda      *Korda     `gorm:"foreignKey:KordaID;references:ID" json:"korda,omitempty"`
	IsFeatured bool       `gorm:"default:false;not null" json:"isFeatured"`
	IsArchived bool       `gorm:"default:false;not null;index" json:"isArchived"`
	ArchivedAt *time.Time `json:"archivedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the database table name for the MediaContent model.
func (MediaContent) TableName() string {
	return "media_contents"
}

// BeforeCreate assigns a UUID primary key when none is set.
func (m *MediaContent) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	return nil
}
