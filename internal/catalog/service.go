package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/db"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("catalog: not found")

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

// ----------------------------
// Recipients
// ----------------------------

func (s *Service) CreateRecipient(ctx context.Context, r Recipient) (Recipient, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO recipients (name, email, notes)
		VALUES ($1, $2, $3)
		RETURNING id
	`, r.Name, r.Email, r.Notes).Scan(&r.ID)
	return r, err
}

func (s *Service) ListRecipients(ctx context.Context) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, notes FROM recipients ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []Recipient{}
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Notes); err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

func (s *Service) DeleteRecipient(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "recipients", id)
}

// ----------------------------
// Media items
// ----------------------------

func (s *Service) CreateMediaItem(ctx context.Context, m MediaItem) (MediaItem, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO media_items (title, media_type, filename)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, m.Title, m.MediaType, m.Filename).Scan(&m.ID, &m.CreatedAt)
	return m, err
}

func (s *Service) ListMedia(ctx context.Context) ([]MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, media_type, filename, cover_filename, created_at
		FROM media_items ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMediaItems(rows)
}

// DeleteMediaItem removes the row and returns the filenames it owned so
// the caller can drop the blobs.
func (s *Service) DeleteMediaItem(ctx context.Context, id int64) ([]string, error) {
	var (
		filename string
		cover    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM media_items WHERE id = $1
		RETURNING filename, cover_filename
	`, id).Scan(&filename, &cover)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	files := []string{filename}
	if cover.Valid {
		files = append(files, cover.String)
	}
	return files, nil
}

func (s *Service) SetMediaCover(ctx context.Context, id int64, filename string) error {
	return s.setCover(ctx, "media_items", id, filename)
}

// ----------------------------
// Albums
// ----------------------------

func (s *Service) CreateAlbum(ctx context.Context, a Album) (Album, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO albums (title, description)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, a.Title, a.Description).Scan(&a.ID, &a.CreatedAt)
	return a, err
}

func (s *Service) ListAlbums(ctx context.Context) ([]AlbumWithMedia, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, cover_filename, created_at
		FROM albums ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	albums := []AlbumWithMedia{}
	for rows.Next() {
		var a AlbumWithMedia
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.CoverFilename, &a.CreatedAt); err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range albums {
		items, err := s.albumMedia(ctx, albums[i].ID)
		if err != nil {
			return nil, err
		}
		albums[i].MediaItems = items
	}
	return albums, nil
}

func (s *Service) DeleteAlbum(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "albums", id)
}

func (s *Service) SetAlbumCover(ctx context.Context, id int64, filename string) error {
	return s.setCover(ctx, "albums", id, filename)
}

func (s *Service) AddMediaToAlbum(ctx context.Context, albumID, mediaID int64) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO album_media_links (album_id, media_item_id)
		SELECT a.id, m.id
		FROM albums a, media_items m
		WHERE a.id = $1 AND m.id = $2
		ON CONFLICT DO NOTHING
	`, albumID, mediaID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Service) RemoveMediaFromAlbum(ctx context.Context, albumID, mediaID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM album_media_links
		WHERE album_id = $1 AND media_item_id = $2
	`, albumID, mediaID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ----------------------------
// Assignments
// ----------------------------

func (s *Service) CreateAssignment(ctx context.Context, recipientID, albumID int64) (Assignment, error) {
	a := Assignment{
		RecipientID: recipientID,
		AlbumID:     albumID,
		Token:       uuid.NewString(),
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO assignments (recipient_id, album_id, token)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, recipientID, albumID, a.Token).Scan(&a.ID, &a.CreatedAt)
	return a, err
}

func (s *Service) ListAssignments(ctx context.Context) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, album_id, token, created_at
		FROM assignments ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []Assignment{}
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.RecipientID, &a.AlbumID, &a.Token, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *Service) DeleteAssignment(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "assignments", id)
}

// ResolveToken maps a share token to its assignment ID; 0 means unknown.
func (s *Service) ResolveToken(ctx context.Context, token string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM assignments WHERE token = $1
	`, token).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Service) AssignmentExists(ctx context.Context, assignmentID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM assignments WHERE id = $1)
	`, assignmentID).Scan(&exists)
	return exists, err
}

// AssignmentView loads the full viewer payload for a share token.
func (s *Service) AssignmentView(ctx context.Context, token string) (*AssignmentView, error) {
	var (
		view    AssignmentView
		albumID int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, r.name, al.id, al.title, al.cover_filename
		FROM assignments a
		JOIN recipients r ON r.id = a.recipient_id
		JOIN albums al ON al.id = a.album_id
		WHERE a.token = $1
	`, token).Scan(&view.AssignmentID, &view.RecipientName, &albumID,
		&view.AlbumTitle, &view.AlbumCover)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	view.Media, err = s.albumMedia(ctx, albumID)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ReferencedFilenames returns every blob filename the catalog still
// points at, for the orphan cleanup sweep.
func (s *Service) ReferencedFilenames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename FROM media_items
		UNION
		SELECT cover_filename FROM media_items WHERE cover_filename IS NOT NULL
		UNION
		SELECT cover_filename FROM albums WHERE cover_filename IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = struct{}{}
	}
	return names, rows.Err()
}

// ----------------------------
// Helpers
// ----------------------------

func (s *Service) albumMedia(ctx context.Context, albumID int64) ([]MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.title, m.media_type, m.filename, m.cover_filename, m.created_at
		FROM album_media_links l
		JOIN media_items m ON m.id = l.media_item_id
		WHERE l.album_id = $1
		ORDER BY m.id
	`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMediaItems(rows)
}

func scanMediaItems(rows *sql.Rows) ([]MediaItem, error) {
	items := []MediaItem{}
	for rows.Next() {
		var m MediaItem
		if err := rows.Scan(&m.ID, &m.Title, &m.MediaType, &m.Filename,
			&m.CoverFilename, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *Service) setCover(ctx context.Context, table string, id int64, filename string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET cover_filename = $1 WHERE id = $2
	`, table), filename, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Service) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
