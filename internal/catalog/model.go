package catalog

import "time"

type Recipient struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
	Notes *string `json:"notes"`
}

type MediaItem struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	MediaType     string    `json:"media_type"` // "audio" or "video"
	Filename      string    `json:"filename"`
	CoverFilename *string   `json:"cover_filename"`
	CreatedAt     time.Time `json:"created_at"`
}

type Album struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	CoverFilename *string   `json:"cover_filename"`
	CreatedAt     time.Time `json:"created_at"`
}

// AlbumWithMedia is the admin listing shape: an album and its items.
type AlbumWithMedia struct {
	Album
	MediaItems []MediaItem `json:"media_items"`
}

// Assignment grants one recipient token-addressed access to one album.
type Assignment struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	AlbumID     int64     `json:"album_id"`
	Token       string    `json:"token"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssignmentView is everything the public viewer needs once a claim
// succeeds.
type AssignmentView struct {
	AssignmentID  int64
	RecipientName string
	AlbumTitle    string
	AlbumCover    *string
	Media         []MediaItem
}
