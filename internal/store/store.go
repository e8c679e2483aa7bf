// Package store persists elements, uploaded files and dataset entries in
// Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// Element statuses.
const (
	StatusDraft     = "draft"
	StatusValidated = "validated"
)

// Analysis methods an element may be configured with. Only reasoning and
// extraction are runnable; direct is accepted for configuration but has no
// execution path.
const (
	MethodReasoning  = "reasoning"
	MethodExtraction = "extraction"
	MethodDirect     = "direct"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Element is a saved analysis configuration.
type Element struct {
	ID          string
	Name        string
	Prompt      string
	AIModel     string
	Method      *string
	FileType    string
	DataSources []string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// File is metadata for one uploaded document. ElementID is nil for files
// uploaded before being attached to an element.
type File struct {
	ID               string
	Filename         string
	OriginalFilename string
	Path             string
	Size             int64
	ContentType      string
	ElementID        *string
	CreatedAt        time.Time
}

// DatasetEntry is a validated element snapshot: the full configuration at
// validation time plus the output it produced.
type DatasetEntry struct {
	ID          string
	ElementID   string
	ElementName string
	Config      json.RawMessage
	AIOutput    string
	CreatedAt   time.Time
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Element operations

func (s *Store) CreateElement(ctx context.Context, e Element) (Element, error) {
	e.ID = uuid.NewString()
	if e.Status == "" {
		e.Status = StatusDraft
	}
	sources, err := json.Marshal(e.DataSources)
	if err != nil {
		return Element{}, fmt.Errorf("encoding data_sources: %w", err)
	}
	err = s.DB.QueryRowContext(ctx,
		`INSERT INTO dynamic_elements (id, name, prompt, ai_model, method, file_type, data_sources, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING created_at, updated_at`,
		e.ID, e.Name, e.Prompt, e.AIModel, e.Method, e.FileType, string(sources), e.Status,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Element{}, err
	}
	return e, nil
}

func (s *Store) GetElement(ctx context.Context, id string) (Element, error) {
	var e Element
	var sources string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, prompt, ai_model, method, file_type, data_sources, status, created_at, updated_at
		 FROM dynamic_elements WHERE id=$1`, id,
	).Scan(&e.ID, &e.Name, &e.Prompt, &e.AIModel, &e.Method, &e.FileType, &sources, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Element{}, ErrNotFound
	}
	if err != nil {
		return Element{}, err
	}
	if err := json.Unmarshal([]byte(sources), &e.DataSources); err != nil {
		return Element{}, fmt.Errorf("decoding data_sources: %w", err)
	}
	return e, nil
}

func (s *Store) ListElements(ctx context.Context, skip, limit int) ([]Element, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, prompt, ai_model, method, file_type, data_sources, status, created_at, updated_at
		 FROM dynamic_elements ORDER BY created_at DESC OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Element
	for rows.Next() {
		var e Element
		var sources string
		if err := rows.Scan(&e.ID, &e.Name, &e.Prompt, &e.AIModel, &e.Method, &e.FileType, &sources, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sources), &e.DataSources); err != nil {
			return nil, fmt.Errorf("decoding data_sources: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateElement overwrites the mutable fields of an element. Callers load
// the current row, merge changes and pass the result back. Any edit drops
// the element back to draft.
func (s *Store) UpdateElement(ctx context.Context, e Element) (Element, error) {
	sources, err := json.Marshal(e.DataSources)
	if err != nil {
		return Element{}, fmt.Errorf("encoding data_sources: %w", err)
	}
	err = s.DB.QueryRowContext(ctx,
		`UPDATE dynamic_elements
		 SET name=$2, prompt=$3, ai_model=$4, method=$5, file_type=$6, data_sources=$7, status=$8, updated_at=now()
		 WHERE id=$1 RETURNING created_at, updated_at`,
		e.ID, e.Name, e.Prompt, e.AIModel, e.Method, e.FileType, string(sources), StatusDraft,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Element{}, ErrNotFound
	}
	if err != nil {
		return Element{}, err
	}
	e.Status = StatusDraft
	return e, nil
}

func (s *Store) SetElementStatus(ctx context.Context, id, status string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE dynamic_elements SET status=$2, updated_at=now() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteElement(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM dynamic_elements WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// File operations

func (s *Store) CreateFile(ctx context.Context, f File) (File, error) {
	f.ID = uuid.NewString()
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO uploaded_files (id, filename, original_filename, file_path, file_size, content_type, element_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at`,
		f.ID, f.Filename, f.OriginalFilename, f.Path, f.Size, f.ContentType, f.ElementID,
	).Scan(&f.CreatedAt)
	if err != nil {
		return File{}, err
	}
	return f, nil
}

func (s *Store) GetFile(ctx context.Context, id string) (File, error) {
	var f File
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, filename, original_filename, file_path, file_size, content_type, element_id, created_at
		 FROM uploaded_files WHERE id=$1`, id,
	).Scan(&f.ID, &f.Filename, &f.OriginalFilename, &f.Path, &f.Size, &f.ContentType, &f.ElementID, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, err
	}
	return f, nil
}

// ListFiles returns uploaded files, newest first. A non-empty elementID
// restricts the list to that element's files.
func (s *Store) ListFiles(ctx context.Context, elementID string, skip, limit int) ([]File, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, filename, original_filename, file_path, file_size, content_type, element_id, created_at
		 FROM uploaded_files ORDER BY created_at DESC OFFSET $1 LIMIT $2`
	args := []interface{}{skip, limit}
	if elementID != "" {
		query = `SELECT id, filename, original_filename, file_path, file_size, content_type, element_id, created_at
		 FROM uploaded_files WHERE element_id=$3 ORDER BY created_at DESC OFFSET $1 LIMIT $2`
		args = append(args, elementID)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Filename, &f.OriginalFilename, &f.Path, &f.Size, &f.ContentType, &f.ElementID, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM uploaded_files WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Dataset operations

func (s *Store) CreateDatasetEntry(ctx context.Context, d DatasetEntry) (DatasetEntry, error) {
	d.ID = uuid.NewString()
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO dataset_entries (id, element_id, element_name, json_config, ai_output)
		 VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		d.ID, d.ElementID, d.ElementName, string(d.Config), d.AIOutput,
	).Scan(&d.CreatedAt)
	if err != nil {
		return DatasetEntry{}, err
	}
	return d, nil
}

func (s *Store) GetDatasetEntry(ctx context.Context, id string) (DatasetEntry, error) {
	var d DatasetEntry
	var cfg string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, element_id, element_name, json_config, ai_output, created_at
		 FROM dataset_entries WHERE id=$1`, id,
	).Scan(&d.ID, &d.ElementID, &d.ElementName, &cfg, &d.AIOutput, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DatasetEntry{}, ErrNotFound
	}
	if err != nil {
		return DatasetEntry{}, err
	}
	d.Config = json.RawMessage(cfg)
	return d, nil
}

func (s *Store) ListDatasetEntries(ctx context.Context, elementID string, skip, limit int) ([]DatasetEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, element_id, element_name, json_config, ai_output, created_at
		 FROM dataset_entries ORDER BY created_at DESC OFFSET $1 LIMIT $2`
	args := []interface{}{skip, limit}
	if elementID != "" {
		query = `SELECT id, element_id, element_name, json_config, ai_output, created_at
		 FROM dataset_entries WHERE element_id=$3 ORDER BY created_at DESC OFFSET $1 LIMIT $2`
		args = append(args, elementID)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DatasetEntry
	for rows.Next() {
		var d DatasetEntry
		var cfg string
		if err := rows.Scan(&d.ID, &d.ElementID, &d.ElementName, &cfg, &d.AIOutput, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Config = json.RawMessage(cfg)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDatasetEntry(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM dataset_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
