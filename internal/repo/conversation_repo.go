package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/logsage/logsage/internal/model"
	"github.com/logsage/logsage/internal/pkg/dbutil"
)

const tableConversationTurns = "conversation_turns"

var turnFields = []string{"id", "file_id", "conversation_id", "turn_index", "role",
	"content", "used_fallback", "ctime"}

// ConversationSummary is one conversation of a file, for listings.
type ConversationSummary struct {
	ConversationID string `json:"conversation_id"`
	TurnCount      int    `json:"turn_count"`
	LastActive     int64  `json:"last_active"`
}

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Append(ctx context.Context, turns []*model.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(turns))
	for _, t := range turns {
		data = append(data, map[string]interface{}{
			"file_id":         t.FileID,
			"conversation_id": t.ConversationID,
			"turn_index":      t.TurnIndex,
			"role":            t.Role,
			"content":         t.Content,
			"used_fallback":   t.UsedFallback,
			"ctime":           t.Ctime,
		})
	}
	query, args, err := builder.BuildInsert(tableConversationTurns, data)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert conversation turns: %w", err)
	}
	return nil
}

// NextTurnIndex returns the index the next appended turn should carry.
func (r *ConversationRepo) NextTurnIndex(ctx context.Context, fileID, conversationID string) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx,
		`select coalesce(max(turn_index) + 1, 0) from conversation_turns
		 where file_id = $1 and conversation_id = $2`,
		fileID, conversationID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("query next turn index: %w", err)
	}
	return next, nil
}

// ListRecent returns the latest limit turns in chronological order.
func (r *ConversationRepo) ListRecent(ctx context.Context, fileID, conversationID string, limit uint) ([]*model.ConversationTurn, error) {
	where := map[string]interface{}{
		"file_id":         fileID,
		"conversation_id": conversationID,
		"_orderby":        "turn_index desc",
		"_limit":          []uint{0, limit},
	}
	turns, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (r *ConversationRepo) ListAll(ctx context.Context, fileID, conversationID string) ([]*model.ConversationTurn, error) {
	where := map[string]interface{}{
		"file_id":         fileID,
		"conversation_id": conversationID,
		"_orderby":        "turn_index asc",
	}
	return r.query(ctx, where)
}

func (r *ConversationRepo) ListConversations(ctx context.Context, fileID string) ([]*ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`select conversation_id, count(1), max(ctime) from conversation_turns
		 where file_id = $1 group by conversation_id order by max(ctime) desc`,
		fileID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()
	var summaries []*ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ConversationID, &s.TurnCount, &s.LastActive); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}

func (r *ConversationRepo) DeleteConversation(ctx context.Context, fileID, conversationID string) error {
	query, args, err := builder.BuildDelete(tableConversationTurns, map[string]interface{}{
		"file_id":         fileID,
		"conversation_id": conversationID,
	})
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) DeleteByFile(ctx context.Context, fileID string) error {
	query, args, err := builder.BuildDelete(tableConversationTurns, map[string]interface{}{"file_id": fileID})
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete conversation turns: %w", err)
	}
	return nil
}

func (r *ConversationRepo) query(ctx context.Context, where map[string]interface{}) ([]*model.ConversationTurn, error) {
	query, args, err := builder.BuildSelect(tableConversationTurns, where, turnFields)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}
	defer rows.Close()
	var turns []*model.ConversationTurn
	for rows.Next() {
		var t model.ConversationTurn
		if err := rows.Scan(&t.ID, &t.FileID, &t.ConversationID, &t.TurnIndex,
			&t.Role, &t.Content, &t.UsedFallback, &t.Ctime); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}
