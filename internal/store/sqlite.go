package store

import (
	"context"
	"database/sql"
	"fmt"

	"labtrack/internal/domain"
)

// SQLStore is the sqlite backend. Errors propagate to the caller; mutations
// that fail leave the database untouched.
type SQLStore struct {
	DB *sql.DB
}

const taskColumns = `id, title, description, priority, effort, status,
	assigned_to, assigned_role, category, risk_analysis, mitigation_plan,
	tokens_spent, cost, user_story_id, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var t domain.Task
	var assignedRole sql.NullString
	var storyID sql.NullInt64
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Effort,
		&t.Status, &t.AssignedTo, &assignedRole, &t.Category, &t.RiskAnalysis,
		&t.MitigationPlan, &t.TokensSpent, &t.Cost, &storyID,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	t.AssignedRole = assignedRole.String
	if storyID.Valid {
		t.StoryID = &storyID.Int64
	}
	return t, nil
}

func nullableStoryID(t domain.Task) any {
	if t.StoryID == nil {
		return nil
	}
	return *t.StoryID
}

func (s *SQLStore) ListTasks(ctx context.Context) ([]domain.TaskWithStory, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT t.id, t.title, t.description, t.priority, t.effort, t.status,
		       t.assigned_to, t.assigned_role, t.category, t.risk_analysis,
		       t.mitigation_plan, t.tokens_spent, t.cost, t.user_story_id,
		       t.created_at, t.updated_at,
		       COALESCE(s.project, ''), COALESCE(s.role, ''),
		       COALESCE(s.goal, ''), COALESCE(s.reason, ''),
		       COALESCE(s.priority, ''), COALESCE(s.description, '')
		FROM tasks t
		LEFT JOIN user_stories s ON s.id = t.user_story_id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []domain.TaskWithStory{}
	for rows.Next() {
		var t domain.Task
		var tw domain.TaskWithStory
		var assignedRole sql.NullString
		var storyID sql.NullInt64
		err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Priority,
			&t.Effort, &t.Status, &t.AssignedTo, &assignedRole, &t.Category,
			&t.RiskAnalysis, &t.MitigationPlan, &t.TokensSpent, &t.Cost,
			&storyID, &t.CreatedAt, &t.UpdatedAt,
			&tw.StoryProject, &tw.StoryRole, &tw.StoryGoal, &tw.StoryReason,
			&tw.StoryPriority, &tw.StoryDescription)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.AssignedRole = assignedRole.String
		if storyID.Valid {
			t.StoryID = &storyID.Int64
		}
		tw.Task = t
		out = append(out, tw)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return domain.Task{}, ErrNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (s *SQLStore) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO tasks (title, description, priority, effort, status,
			assigned_to, assigned_role, category, risk_analysis,
			mitigation_plan, tokens_spent, cost, user_story_id,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Priority, t.Effort, t.Status,
		t.AssignedTo, t.AssignedRole, t.Category, t.RiskAnalysis,
		t.MitigationPlan, t.TokensSpent, t.Cost, nullableStoryID(t),
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Task{}, fmt.Errorf("create task id: %w", err)
	}
	t.ID = id
	return t, nil
}

func (s *SQLStore) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE tasks SET title=?, description=?, priority=?, effort=?,
			status=?, assigned_to=?, assigned_role=?, category=?,
			risk_analysis=?, mitigation_plan=?, tokens_spent=?, cost=?,
			user_story_id=?, updated_at=?
		WHERE id = ?`,
		t.Title, t.Description, t.Priority, t.Effort, t.Status,
		t.AssignedTo, t.AssignedRole, t.Category, t.RiskAnalysis,
		t.MitigationPlan, t.TokensSpent, t.Cost, nullableStoryID(t),
		t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
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

func (s *SQLStore) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
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

func (s *SQLStore) TasksByStory(ctx context.Context, storyID int64) ([]domain.Task, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_story_id = ? ORDER BY created_at DESC, id DESC`,
		storyID)
	if err != nil {
		return nil, fmt.Errorf("tasks by story %d: %w", storyID, err)
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListStories(ctx context.Context) ([]domain.UserStory, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, project, role, goal, reason, description, priority,
		       story_points, effort_hours, created_at
		FROM user_stories ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	out := []domain.UserStory{}
	for rows.Next() {
		var st domain.UserStory
		err := rows.Scan(&st.ID, &st.Project, &st.Role, &st.Goal, &st.Reason,
			&st.Description, &st.Priority, &st.StoryPoints, &st.EffortHours,
			&st.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetStory(ctx context.Context, id int64) (domain.UserStory, error) {
	var st domain.UserStory
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, project, role, goal, reason, description, priority,
		       story_points, effort_hours, created_at
		FROM user_stories WHERE id = ?`, id).
		Scan(&st.ID, &st.Project, &st.Role, &st.Goal, &st.Reason,
			&st.Description, &st.Priority, &st.StoryPoints, &st.EffortHours,
			&st.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.UserStory{}, ErrNotFound
	}
	if err != nil {
		return domain.UserStory{}, fmt.Errorf("get story %d: %w", id, err)
	}
	return st, nil
}

func (s *SQLStore) CreateStory(ctx context.Context, st domain.UserStory) (domain.UserStory, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO user_stories (project, role, goal, reason, description,
			priority, story_points, effort_hours, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.Project, st.Role, st.Goal, st.Reason, st.Description,
		st.Priority, st.StoryPoints, st.EffortHours, st.CreatedAt)
	if err != nil {
		return domain.UserStory{}, fmt.Errorf("create story: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.UserStory{}, fmt.Errorf("create story id: %w", err)
	}
	st.ID = id
	return st, nil
}

// DeleteStory clears the story link on its tasks, then removes the story.
// Both steps run in one transaction.
func (s *SQLStore) DeleteStory(ctx context.Context, id int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET user_story_id = NULL WHERE user_story_id = ?`, id); err != nil {
		return fmt.Errorf("unlink story %d tasks: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM user_stories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete story %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
