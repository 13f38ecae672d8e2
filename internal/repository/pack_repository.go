package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/packflow/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	uniqueViolation = "23505"
	blockIDLength   = 12
)

type PackRepository interface {
	Create(ctx context.Context, name string, ownerID int64) error
	AppendBlock(ctx context.Context, ownerID int64, packName, photoFileID string) (string, error)
	AppendAttachment(ctx context.Context, ownerID int64, packName, blockID string, a models.Attachment) error
	ListNames(ctx context.Context, ownerID int64) ([]string, error)
	GetForPublish(ctx context.Context, ownerID int64, name string) ([]models.ContentBlock, error)
	GetForEdit(ctx context.Context, name string, ownerID int64) (*models.Pack, error)
	Exists(ctx context.Context, name string, ownerID int64) (bool, error)
	Delete(ctx context.Context, name string, ownerID int64) (bool, error)
	DeleteBlock(ctx context.Context, ownerID int64, name, blockID string) (bool, error)
}

type packRepository struct {
	db    *sql.DB
	newID func() (string, error)
}

func NewPackRepository(db *sql.DB) PackRepository {
	return &packRepository{
		db: db,
		newID: func() (string, error) {
			return gonanoid.New(blockIDLength)
		},
	}
}

func (r *packRepository) Create(ctx context.Context, name string, ownerID int64) error {
	query := `INSERT INTO packs (name, owner_id) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, name, ownerID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrDuplicateName
		}
		slog.Error("create pack", "pack", name, "error", err)
		return err
	}
	return nil
}

func (r *packRepository) AppendBlock(ctx context.Context, ownerID int64, packName, photoFileID string) (string, error) {
	blockID, err := r.newID()
	if err != nil {
		return "", fmt.Errorf("generate block id: %w", err)
	}

	query := `
		INSERT INTO pack_blocks (pack_id, block_id, photo_file_id)
		SELECT id, $3, $4 FROM packs
		WHERE name = $1 AND owner_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, packName, ownerID, blockID, photoFileID)
	if err != nil {
		slog.Error("append block", "pack", packName, "error", err)
		return "", err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		return "", models.ErrPackNotFound
	}
	return blockID, nil
}

// AppendAttachment inserts the attachment in a single statement so concurrent
// appends to the same block never overwrite each other.
func (r *packRepository) AppendAttachment(ctx context.Context, ownerID int64, packName, blockID string, a models.Attachment) error {
	query := `
		INSERT INTO block_attachments (block_id, file_id, caption, file_name)
		SELECT b.id, $4, $5, $6
		FROM pack_blocks b
		JOIN packs p ON p.id = b.pack_id
		WHERE p.name = $1 AND p.owner_id = $2 AND b.block_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, packName, ownerID, blockID, a.FileID, a.Caption, a.FileName)
	if err != nil {
		slog.Error("append attachment", "pack", packName, "block", blockID, "error", err)
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrBlockNotFound
	}
	return nil
}

func (r *packRepository) ListNames(ctx context.Context, ownerID int64) ([]string, error) {
	query := `SELECT name FROM packs WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func (r *packRepository) GetForPublish(ctx context.Context, ownerID int64, name string) ([]models.ContentBlock, error) {
	pack, err := r.GetForEdit(ctx, name, ownerID)
	if err != nil || pack == nil {
		return nil, err
	}
	return pack.Content, nil
}

func (r *packRepository) GetForEdit(ctx context.Context, name string, ownerID int64) (*models.Pack, error) {
	query := `SELECT id, name, owner_id, created_at FROM packs WHERE name = $1 AND owner_id = $2`

	var pack models.Pack
	err := r.db.QueryRowContext(ctx, query, name, ownerID).Scan(&pack.ID, &pack.Name, &pack.OwnerID, &pack.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	content, err := r.loadContent(ctx, pack.ID)
	if err != nil {
		return nil, err
	}
	pack.Content = content
	return &pack, nil
}

func (r *packRepository) loadContent(ctx context.Context, packID int64) ([]models.ContentBlock, error) {
	query := `
		SELECT b.block_id, b.photo_file_id, a.file_id, a.caption, a.file_name
		FROM pack_blocks b
		LEFT JOIN block_attachments a ON a.block_id = b.id
		WHERE b.pack_id = $1
		ORDER BY b.id, a.id
	`
	rows, err := r.db.QueryContext(ctx, query, packID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	content := []models.ContentBlock{}
	for rows.Next() {
		var (
			blockID, photoFileID      string
			fileID, caption, fileName sql.NullString
		)
		if err := rows.Scan(&blockID, &photoFileID, &fileID, &caption, &fileName); err != nil {
			slog.Info(err.Error())
			return nil, err
		}

		if n := len(content); n == 0 || content[n-1].BlockID != blockID {
			content = append(content, models.ContentBlock{
				BlockID:     blockID,
				PhotoFileID: photoFileID,
				Attachments: []models.Attachment{},
			})
		}
		if fileID.Valid {
			last := &content[len(content)-1]
			last.Attachments = append(last.Attachments, models.Attachment{
				FileID:   fileID.String,
				Caption:  caption.String,
				FileName: fileName.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return content, nil
}

func (r *packRepository) Exists(ctx context.Context, name string, ownerID int64) (bool, error) {
	query := `SELECT 1 FROM packs WHERE name = $1 AND owner_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, name, ownerID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

// Delete removes the pack; blocks and attachments go with it through the
// foreign key cascade. Scheduled jobs are the caller's responsibility.
func (r *packRepository) Delete(ctx context.Context, name string, ownerID int64) (bool, error) {
	query := `DELETE FROM packs WHERE name = $1 AND owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, name, ownerID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *packRepository) DeleteBlock(ctx context.Context, ownerID int64, name, blockID string) (bool, error) {
	query := `
		DELETE FROM pack_blocks b
		USING packs p
		WHERE p.id = b.pack_id AND p.name = $1 AND p.owner_id = $2 AND b.block_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, name, ownerID, blockID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
