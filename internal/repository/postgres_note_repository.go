package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/notes-service/internal/domain"
)

const noteColumns = `id, user_id, title, content, content_html, tags, reminder, todo_items,
               is_pinned, is_archived, color, version, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type postgresNoteRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresNoteRepository instantiates repository.
func NewPostgresNoteRepository(pool *pgxpool.Pool) NoteRepository {
	return &postgresNoteRepository{pool: pool}
}

func (r *postgresNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	const query = `
        INSERT INTO notes (user_id, title, content, content_html, tags, reminder, todo_items, is_pinned, is_archived, color)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		note.UserID,
		note.Title,
		note.Content,
		note.ContentHTML,
		nonNilTags(note.Tags),
		note.Reminder,
		nonNilTodos(note.TodoItems),
		note.IsPinned,
		note.IsArchived,
		note.Color,
	).Scan(&note.ID, &note.Version, &note.CreatedAt, &note.UpdatedAt)
}

func (r *postgresNoteRepository) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id=$1`
	note, err := scanNote(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (r *postgresNoteRepository) List(ctx context.Context, filter NoteFilter) ([]domain.Note, error) {
	if _, err := uuid.Parse(filter.UserID); err != nil {
		return nil, nil
	}
	clauses := []string{"user_id=$1"}
	args := []any{filter.UserID}

	if filter.Tag != "" {
		args = append(args, filter.Tag)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if filter.HasReminder {
		clauses = append(clauses, "reminder IS NOT NULL")
	}
	if filter.IsPinned != nil {
		args = append(args, *filter.IsPinned)
		clauses = append(clauses, fmt.Sprintf("is_pinned=$%d", len(args)))
	}
	if filter.IsArchived != nil {
		args = append(args, *filter.IsArchived)
		clauses = append(clauses, fmt.Sprintf("is_archived=$%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, containsPattern(search))
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			`(LOWER(title) LIKE $%[1]d ESCAPE '\' OR LOWER(content_html) LIKE $%[1]d ESCAPE '\'`+
				` OR EXISTS (SELECT 1 FROM unnest(tags) t WHERE LOWER(t) LIKE $%[1]d ESCAPE '\'))`,
			n))
	}

	query := fmt.Sprintf(`SELECT %s FROM notes WHERE %s ORDER BY is_pinned DESC, updated_at DESC`,
		noteColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}
	return notes, rows.Err()
}

func (r *postgresNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	if _, err := uuid.Parse(note.ID); err != nil {
		return ErrNotFound
	}
	const query = `
        UPDATE notes SET title=$1, content=$2, content_html=$3, tags=$4, reminder=$5, todo_items=$6,
            is_pinned=$7, is_archived=$8, color=$9, version=version+1, updated_at=NOW()
        WHERE id=$10 AND user_id=$11 AND version=$12
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		note.Title,
		note.Content,
		note.ContentHTML,
		nonNilTags(note.Tags),
		note.Reminder,
		nonNilTodos(note.TodoItems),
		note.IsPinned,
		note.IsArchived,
		note.Color,
		note.ID,
		note.UserID,
		note.Version,
	).Scan(&note.Version, &note.UpdatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notes WHERE id=$1 AND user_id=$2)`, note.ID, note.UserID,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func (r *postgresNoteRepository) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresNoteRepository) TagCounts(ctx context.Context, userID string) ([]domain.TagCount, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []domain.TagCount{}, nil
	}
	const query = `
        SELECT tag, COUNT(*) FROM notes, unnest(tags) AS tag
        WHERE user_id=$1
        GROUP BY tag
        ORDER BY COUNT(*) DESC, tag ASC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []domain.TagCount{}
	for rows.Next() {
		var tc domain.TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

func scanNote(row pgx.Row) (*domain.Note, error) {
	var note domain.Note
	if err := row.Scan(
		&note.ID,
		&note.UserID,
		&note.Title,
		&note.Content,
		&note.ContentHTML,
		&note.Tags,
		&note.Reminder,
		&note.TodoItems,
		&note.IsPinned,
		&note.IsArchived,
		&note.Color,
		&note.Version,
		&note.CreatedAt,
		&note.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &note, nil
}

// containsPattern builds a case-insensitive LIKE pattern that matches search literally.
func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
}
